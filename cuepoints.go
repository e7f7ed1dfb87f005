package cratedigger

import (
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/daitomanabe/cratedigger/anlz"
)

// anlzScanConcurrency bounds the number of analysis files parsed at once
// during a directory scan.
const anlzScanConcurrency = 8

// CuePointManager indexes the cue points found in rekordbox analysis
// files, keyed by the track path embedded in each file. Extended (.EXT)
// analysis files carry color and comment data the base (.DAT) files lack,
// so when both exist for a track the extended cue list wins.
type CuePointManager struct {
	mu     sync.RWMutex
	byPath map[uint64]*trackCues
	logger *Logger
}

type trackCues struct {
	path     string
	cues     []anlz.CuePoint
	extended bool
}

// NewCuePointManager returns an empty manager.
func NewCuePointManager(logger *Logger) *CuePointManager {
	if logger == nil {
		logger = NoopLogger()
	}
	return &CuePointManager{
		byPath: make(map[uint64]*trackCues),
		logger: logger,
	}
}

func pathKey(trackPath string) uint64 {
	return xxh3.HashString(strings.ToLower(trackPath))
}

// ScanDirectory walks dir recursively, parses every .DAT and .EXT
// analysis file and indexes the cue points it finds. Files that fail to
// parse are skipped; only the walk itself can fail.
func (m *CuePointManager) ScanDirectory(dir string) error {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToUpper(filepath.Ext(path)) {
		case ".DAT", ".EXT":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(anlzScanConcurrency)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			f, err := anlz.Open(path)
			if err != nil {
				return nil
			}
			m.addFile(path, f)
			return nil
		})
	}
	g.Wait()

	m.mu.RLock()
	tracks := len(m.byPath)
	m.mu.RUnlock()
	m.logger.LogCueScan(dir, len(paths), tracks)
	return nil
}

// AddFile indexes the cue points of a single parsed analysis file.
func (m *CuePointManager) AddFile(path string, f *anlz.File) {
	m.addFile(path, f)
}

func (m *CuePointManager) addFile(path string, f *anlz.File) {
	trackPath := f.TrackPath()
	if trackPath == "" {
		return
	}
	extended := strings.EqualFold(filepath.Ext(path), ".EXT")

	m.mu.Lock()
	defer m.mu.Unlock()

	key := pathKey(trackPath)
	prev := m.byPath[key]
	if prev != nil && prev.extended && !extended {
		return
	}
	m.byPath[key] = &trackCues{path: trackPath, cues: f.CuePoints(), extended: extended}
}

// CuePoints returns the cue points recorded for the given track path,
// sorted by position. The match is case-insensitive on the full path.
func (m *CuePointManager) CuePoints(trackPath string) []anlz.CuePoint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if tc := m.byPath[pathKey(trackPath)]; tc != nil {
		return tc.cues
	}
	return nil
}

// FindByFilename returns the cue points of the first indexed track whose
// path ends with the given file name. It is a fallback for callers that
// only know the media file name, not the device path.
func (m *CuePointManager) FindByFilename(name string) ([]anlz.CuePoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = strings.ToLower(name)
	for _, tc := range m.byPath {
		if strings.HasSuffix(strings.ToLower(tc.path), name) {
			return tc.cues, true
		}
	}
	return nil, false
}

// TrackCount returns the number of tracks with indexed cue points.
func (m *CuePointManager) TrackCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byPath)
}
