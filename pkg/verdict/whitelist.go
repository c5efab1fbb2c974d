package verdict

import (
	"bufio"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/util"
	log "github.com/sirupsen/logrus"
)

// Set is a parsed static whitelist of addresses and CIDR blocks
type Set struct {
	nets []*net.IPNet
}

// Contains reports whether ip is listed or falls in a listed block
func (s *Set) Contains(ip string) bool {
	if s == nil || len(s.nets) == 0 {
		return false
	}
	addr := net.ParseIP(ip)
	if addr == nil {
		return false
	}
	return util.ContainsIP(s.nets, addr)
}

// Len returns the number of entries
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.nets)
}

// ParseWhitelist reads one address or CIDR block per line. Blank lines and
// lines starting with # are skipped. Entries which fail to parse are
// returned separately.
func ParseWhitelist(r io.Reader) (*Set, []string, error) {
	set := &Set{}
	var invalid []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		nets, err := util.ParseSubnets([]string{line})
		if err != nil {
			invalid = append(invalid, line)
			continue
		}
		set.nets = append(set.nets, nets...)
	}
	return set, invalid, scanner.Err()
}

// Whitelist caches the parsed static whitelist file, re-reading it when the
// file's modification time or size changes
type Whitelist struct {
	path string
	log  *log.Logger

	mu      sync.Mutex
	set     *Set
	modTime time.Time
	size    int64
}

// NewWhitelist creates a cache over the file at path
func NewWhitelist(path string, logger *log.Logger) *Whitelist {
	return &Whitelist{path: path, log: logger}
}

// Load returns the current whitelist. An unreadable file yields an empty set.
func (w *Whitelist) Load() *Set {
	if w == nil || w.path == "" {
		return &Set{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	info, err := os.Stat(w.path)
	if err != nil {
		w.log.WithFields(log.Fields{
			"path":  w.path,
			"error": err.Error(),
		}).Warn("Could not read static whitelist")
		w.set, w.modTime, w.size = nil, time.Time{}, 0
		return &Set{}
	}
	if w.set != nil && info.ModTime().Equal(w.modTime) && info.Size() == w.size {
		return w.set
	}

	f, err := os.Open(w.path)
	if err != nil {
		w.log.WithFields(log.Fields{
			"path":  w.path,
			"error": err.Error(),
		}).Warn("Could not read static whitelist")
		return &Set{}
	}
	defer f.Close()

	set, invalid, err := ParseWhitelist(f)
	if err != nil {
		w.log.WithFields(log.Fields{
			"path":  w.path,
			"error": err.Error(),
		}).Warn("Could not read static whitelist")
		return &Set{}
	}
	for _, entry := range invalid {
		w.log.WithFields(log.Fields{
			"path":  w.path,
			"entry": entry,
		}).Warn("Ignoring invalid static whitelist entry")
	}

	w.set, w.modTime, w.size = set, info.ModTime(), info.Size()
	w.log.WithFields(log.Fields{
		"path":    w.path,
		"entries": set.Len(),
	}).Debug("Loaded static whitelist")
	return set
}
