// Package anlz parses rekordbox analysis files (ANLZ0000.DAT / .EXT).
//
// ANLZ files are big-endian and built from tagged sections behind a fixed
// "PMAI" header. Only the sections needed for cue point extraction are
// decoded: the cue lists (standard and extended) and the embedded track
// path. Every other section is skipped by its declared length, so beat
// grids, waveforms and song structure data pass through untouched.
package anlz

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"slices"

	"golang.org/x/text/encoding/unicode"
)

// Section and entry tags (big-endian ASCII).
const (
	magicPMAI = 0x504d4149 // file header

	tagCueList    = 0x50435545 // "PCUE" cue list
	tagCueList2   = 0x50435532 // "PCU2" cue list, newer layout
	tagExtCueList = 0x50435832 // "PCX2" extended cue list with colors
	tagPath       = 0x50505448 // "PPTH" track path

	entryMagicPCPT = 0x50435054
	entryMagicPCP2 = 0x50435032

	fileHeaderSize    = 28
	sectionHeaderSize = 12
	stdCueEntrySize   = 44
	extCueEntrySize   = 64
)

// ErrBadMagic indicates that the file does not start with a PMAI header.
var ErrBadMagic = errors.New("anlz: bad magic")

// CueType classifies a cue point.
type CueType uint8

const (
	CueTypeCue CueType = iota
	CueTypeFadeIn
	CueTypeFadeOut
	CueTypeLoad
	CueTypeLoop
)

func (t CueType) String() string {
	switch t {
	case CueTypeCue:
		return "cue"
	case CueTypeFadeIn:
		return "fade_in"
	case CueTypeFadeOut:
		return "fade_out"
	case CueTypeLoad:
		return "load"
	case CueTypeLoop:
		return "loop"
	default:
		return "unknown"
	}
}

func cueTypeFromRaw(raw uint8) CueType {
	if raw > uint8(CueTypeLoop) {
		return CueTypeCue
	}
	return CueType(raw)
}

// CuePoint is one memory cue or hot cue.
type CuePoint struct {
	HotCue     uint32 // 0 = memory cue, 1-8 = hot cue number
	Type       CueType
	TimeMS     uint32
	LoopTimeMS uint32 // loop end, 0 unless Type is CueTypeLoop
	ColorID    uint8  // extended lists only
	Comment    string // extended lists only
}

// File is a parsed analysis file.
type File struct {
	trackPath string
	cues      []CuePoint
}

// TrackPath returns the audio file path embedded in the analysis file,
// or "" if the file carries no PPTH section.
func (f *File) TrackPath() string { return f.trackPath }

// CuePoints returns the active cue points sorted by time.
func (f *File) CuePoints() []CuePoint { return f.cues }

// Open reads and parses the analysis file at path.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes an in-memory analysis file image.
func Parse(data []byte) (*File, error) {
	if len(data) < fileHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is below the minimum header size", ErrBadMagic, len(data))
	}
	if magic := binary.BigEndian.Uint32(data); magic != magicPMAI {
		return nil, fmt.Errorf("%w: %#08x", ErrBadMagic, magic)
	}

	f := &File{}
	offset := int64(binary.BigEndian.Uint32(data[4:]))

	for offset+sectionHeaderSize <= int64(len(data)) {
		sectionType := binary.BigEndian.Uint32(data[offset:])
		headerLen := int64(binary.BigEndian.Uint32(data[offset+4:]))
		sectionLen := int64(binary.BigEndian.Uint32(data[offset+8:]))

		if sectionLen == 0 || offset+sectionLen > int64(len(data)) {
			break
		}
		if headerLen > sectionLen {
			offset += sectionLen
			continue
		}
		body := data[offset+headerLen : offset+sectionLen]

		switch sectionType {
		case tagCueList, tagCueList2:
			f.parseCueList(body, false)
		case tagExtCueList:
			f.parseCueList(body, true)
		case tagPath:
			f.trackPath = parsePathSection(body)
		}

		offset += sectionLen
	}

	slices.SortStableFunc(f.cues, func(a, b CuePoint) int {
		return int(int64(a.TimeMS) - int64(b.TimeMS))
	})
	return f, nil
}

func (f *File) parseCueList(b []byte, extended bool) {
	if len(b) < 4 {
		return
	}
	count := binary.BigEndian.Uint32(b)
	offset := int64(4)

	for i := uint32(0); i < count && offset < int64(len(b)); i++ {
		if offset+sectionHeaderSize > int64(len(b)) {
			break
		}
		entryMagic := binary.BigEndian.Uint32(b[offset:])
		entryLen := int64(binary.BigEndian.Uint32(b[offset+8:]))
		if entryLen == 0 || offset+entryLen > int64(len(b)) {
			break
		}
		if entryMagic != entryMagicPCPT && entryMagic != entryMagicPCP2 {
			offset += entryLen
			continue
		}

		e := b[offset:]
		var cue CuePoint
		active := false

		switch {
		case extended && entryLen >= extCueEntrySize:
			cue.HotCue = binary.BigEndian.Uint32(e[12:])
			active = binary.BigEndian.Uint32(e[16:]) != 0
			cue.Type = cueTypeFromRaw(e[32])
			cue.TimeMS = binary.BigEndian.Uint32(e[36:])
			cue.LoopTimeMS = binary.BigEndian.Uint32(e[40:])
			cue.ColorID = e[44]
			if entryLen > 60 {
				commentLen := int64(binary.BigEndian.Uint32(e[56:]))
				if commentLen > 0 && 60+commentLen <= entryLen {
					cue.Comment = decodeUTF16BE(e[60 : 60+commentLen])
				}
			}
		case entryLen >= stdCueEntrySize:
			cue.HotCue = binary.BigEndian.Uint32(e[12:])
			active = binary.BigEndian.Uint32(e[16:]) != 0
			cue.Type = cueTypeFromRaw(e[32])
			cue.TimeMS = binary.BigEndian.Uint32(e[36:])
			cue.LoopTimeMS = binary.BigEndian.Uint32(e[40:])
		}

		if active {
			f.cues = append(f.cues, cue)
		}
		offset += entryLen
	}
}

func parsePathSection(b []byte) string {
	if len(b) < 4 {
		return ""
	}
	pathLen := int(binary.BigEndian.Uint32(b))
	if pathLen == 0 || 4+pathLen > len(b) {
		return ""
	}
	return decodeUTF16BE(b[4 : 4+pathLen])
}

var utf16beDecoder = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

func decodeUTF16BE(b []byte) string {
	b = b[:len(b)&^1]
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			b = b[:i]
			break
		}
	}
	out, err := utf16beDecoder.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return string(bytes.ToValidUTF8(out, []byte("�")))
}
