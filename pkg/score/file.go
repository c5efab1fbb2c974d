package score

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/util"
)

// MemoryStore is an in memory score store. It backs the "file" backend and
// is handy in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	scores map[uint32]float64
}

// NewMemoryStore creates a store holding entries
func NewMemoryStore(entries []Entry) *MemoryStore {
	m := &MemoryStore{}
	m.load(entries)
	return m
}

func (m *MemoryStore) load(entries []Entry) {
	scores := make(map[uint32]float64, len(entries))
	for _, entry := range entries {
		scores[entry.Key] = entry.Score
	}
	m.mu.Lock()
	m.scores = scores
	m.mu.Unlock()
}

// Score implements Store
func (m *MemoryStore) Score(ctx context.Context, key uint32) (float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scores[key]
	return s, ok, nil
}

// Replace implements Loader
func (m *MemoryStore) Replace(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	m.load(entries)
	return nil
}

// Len returns the number of scored addresses
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.scores)
}

// Close implements Store
func (m *MemoryStore) Close() error { return nil }

// FileStore serves the scores held in a score file. The file is reloaded
// whenever its modification time or size changes.
type FileStore struct {
	*MemoryStore
	path string

	statMu  sync.Mutex
	modTime time.Time
	size    int64
}

// OpenFileStore loads a score file into memory. A missing file yields an
// empty store which fills once the file is written.
func OpenFileStore(path string) (*FileStore, error) {
	f := &FileStore{
		MemoryStore: NewMemoryStore(nil),
		path:        path,
	}
	if err := f.refresh(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return f, nil
}

// refresh reloads the score file if it changed since the last load
func (f *FileStore) refresh() error {
	f.statMu.Lock()
	defer f.statMu.Unlock()

	info, err := os.Stat(f.path)
	if err != nil {
		return err
	}
	if info.ModTime().Equal(f.modTime) && info.Size() == f.size {
		return nil
	}

	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer file.Close()

	entries, err := ParseScoreFile(file)
	if err != nil {
		return fmt.Errorf("could not parse %s: %w", f.path, err)
	}
	f.load(entries)
	f.modTime = info.ModTime()
	f.size = info.Size()
	return nil
}

// Score implements Store. A score file which vanished or became unreadable
// keeps serving the last good contents.
func (f *FileStore) Score(ctx context.Context, key uint32) (float64, bool, error) {
	f.refresh()
	return f.MemoryStore.Score(ctx, key)
}

// Replace implements Loader by atomically rewriting the score file
func (f *FileStore) Replace(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, entry := range entries {
		buf.WriteString(util.Uint32ToIPv4(entry.Key))
		buf.WriteByte(',')
		buf.WriteString(strconv.FormatFloat(entry.Score, 'g', -1, 64))
		buf.WriteByte('\n')
	}

	f.statMu.Lock()
	defer f.statMu.Unlock()
	if err := util.WriteFileAtomic(f.path, buf.Bytes(), 0644); err != nil {
		return err
	}
	info, err := os.Stat(f.path)
	if err != nil {
		return err
	}
	f.load(entries)
	f.modTime = info.ModTime()
	f.size = info.Size()
	return nil
}

// ParseScoreFile reads ip,score rows. Comment lines and lines which do not
// begin with a digit are skipped.
func ParseScoreFile(r io.Reader) ([]Entry, error) {
	return parseRows(r, 0, 1)
}

// ParseLabelFile reads label,ip rows of analyst assigned labels
func ParseLabelFile(r io.Reader) ([]Entry, error) {
	return parseRows(r, 1, 0)
}

func parseRows(r io.Reader, ipCol, scoreCol int) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if len(line) == 0 || line[0] < '0' || line[0] > '9' {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 2 {
			continue
		}

		key, ok := util.ParseIPv4(strings.TrimSpace(fields[ipCol]))
		if !ok {
			return nil, fmt.Errorf("line %d: invalid IPv4 address %q", lineNum, fields[ipCol])
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(fields[scoreCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid score %q", lineNum, fields[scoreCol])
		}
		entries = append(entries, Entry{Key: key, Score: value})
	}
	return entries, scanner.Err()
}

// Merge overlays labels on scores. Labelled addresses keep the label value
// and any model score for them is dropped. Labels come first in the result.
func Merge(labels, scores []Entry) []Entry {
	merged := make([]Entry, 0, len(labels)+len(scores))
	labelled := make(map[uint32]bool, len(labels))
	for _, label := range labels {
		if labelled[label.Key] {
			continue
		}
		labelled[label.Key] = true
		merged = append(merged, label)
	}
	for _, entry := range scores {
		if labelled[entry.Key] {
			continue
		}
		merged = append(merged, entry)
	}
	return merged
}
