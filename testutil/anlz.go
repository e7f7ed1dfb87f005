package testutil

import "encoding/binary"

// AnlzCue is one cue point for a synthetic analysis file.
type AnlzCue struct {
	HotCue  uint32
	TimeMS  uint32
	ColorID uint8
	Comment string
}

// AnlzFile renders a minimal analysis file: a PMAI header, a PPTH path
// section and a PCUE cue list with the given active memory cues.
func AnlzFile(trackPath string, cues ...AnlzCue) []byte {
	return anlzFile(trackPath, "PCUE", 44, cues)
}

// AnlzFileExt renders the extended flavor: the cue list is a PCX2 section
// whose entries carry color and comment data.
func AnlzFileExt(trackPath string, cues ...AnlzCue) []byte {
	return anlzFile(trackPath, "PCX2", 64, cues)
}

func anlzFile(trackPath, cueTag string, entrySize int, cues []AnlzCue) []byte {
	out := make([]byte, 28)
	binary.BigEndian.PutUint32(out[0:], 0x504d4149) // PMAI
	binary.BigEndian.PutUint32(out[4:], 28)

	if trackPath != "" {
		encoded := utf16beNul(trackPath)
		body := make([]byte, 4+len(encoded))
		binary.BigEndian.PutUint32(body, uint32(len(encoded)))
		copy(body[4:], encoded)
		out = append(out, anlzSection("PPTH", body)...)
	}

	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, uint32(len(cues)))
	for _, c := range cues {
		size := entrySize
		var comment []byte
		if c.Comment != "" && entrySize > 44 {
			comment = utf16beNul(c.Comment)
			size = 60 + len(comment) + 4
		}
		e := make([]byte, size)
		copy(e[0:], "PCPT")
		binary.BigEndian.PutUint32(e[4:], 12)
		binary.BigEndian.PutUint32(e[8:], uint32(size))
		binary.BigEndian.PutUint32(e[12:], c.HotCue)
		binary.BigEndian.PutUint32(e[16:], 1) // active
		binary.BigEndian.PutUint32(e[36:], c.TimeMS)
		if entrySize > 44 {
			e[44] = c.ColorID
			if comment != nil {
				binary.BigEndian.PutUint32(e[56:], uint32(len(comment)))
				copy(e[60:], comment)
			}
		}
		body = append(body, e...)
	}
	out = append(out, anlzSection(cueTag, body)...)

	binary.BigEndian.PutUint32(out[8:], uint32(len(out)))
	return out
}

func anlzSection(tag string, body []byte) []byte {
	out := make([]byte, 12+len(body))
	copy(out[0:], tag)
	binary.BigEndian.PutUint32(out[4:], 12)
	binary.BigEndian.PutUint32(out[8:], uint32(len(out)))
	copy(out[12:], body)
	return out
}

func utf16beNul(s string) []byte {
	out := make([]byte, 0, 2*len(s)+2)
	for i := 0; i < len(s); i++ {
		out = append(out, 0, s[i])
	}
	return append(out, 0, 0)
}
