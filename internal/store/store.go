// Package store persists one JSON document per course plus derived
// markdown exports under a data directory:
//
//	<data>/courses/<key>.json
//	<data>/history/<key>.md
//
// A key is the creation timestamp followed by the sanitized display name,
// so renaming a course renames its files. Every record also carries a
// stable UUID that never changes.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jorge-barreto/syllabot/internal/course"
)

// ErrNotFound is returned when no record matches an identity.
var ErrNotFound = errors.New("course not found")

// Record is the persisted state of one course.
type Record struct {
	ID           string          `json:"id"`
	Config       course.Config   `json:"config"`
	Outline      *course.Outline `json:"outline,omitempty"`
	CourseName   string          `json:"courseName,omitempty"`
	CreatedAt    string          `json:"createdAt"`
	MarkdownFile string          `json:"markdownFile,omitempty"`
	Timing       *Timing         `json:"timing,omitempty"`

	// Key is the storage key the record was last loaded from or saved as.
	Key string `json:"-"`
}

// Summary describes a stored course for listings.
type Summary struct {
	ID           string    `json:"id"`
	UUID         string    `json:"uuid"`
	Topic        string    `json:"topic"`
	CourseName   string    `json:"courseName,omitempty"`
	MarkdownFile string    `json:"markdownFile,omitempty"`
	MDStatus     string    `json:"mdStatus"`
	Timestamp    time.Time `json:"timestamp"`
	Chapters     int       `json:"chapters"`
	Completed    int       `json:"completed"`
}

type Store struct {
	root    string
	courses string
	history string
	logger  *zap.Logger
	locks   *Locker
	now     func() time.Time
}

// Open prepares dir for use, creating its subdirectories and moving stray
// records from dir itself into courses/.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		root:    dir,
		courses: filepath.Join(dir, "courses"),
		history: filepath.Join(dir, "history"),
		logger:  logger,
		locks:   NewLocker(),
		now:     time.Now,
	}
	for _, d := range []string{s.root, s.courses, s.history} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", d, err)
		}
	}
	s.migrate()
	return s, nil
}

func (s *Store) CoursesDir() string { return s.courses }
func (s *Store) HistoryDir() string { return s.history }

func (s *Store) recordPath(key string) string {
	return filepath.Join(s.courses, key+".json")
}

func (s *Store) migrate() {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		s.logger.Warn("migration: reading data dir", zap.Error(err))
		return
	}
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		from := filepath.Join(s.root, e.Name())
		to := filepath.Join(s.courses, e.Name())
		if err := os.Rename(from, to); err != nil {
			s.logger.Warn("migration: moving record", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		s.logger.Info("migrated record into courses/", zap.String("file", e.Name()))
	}
}

func (s *Store) recordFiles() ([]string, error) {
	entries, err := os.ReadDir(s.courses)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (s *Store) read(key string) (*Record, error) {
	data, err := os.ReadFile(s.recordPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", key, err)
	}
	r.Key = key
	return &r, nil
}

// storedID reads only the id field of a record file.
func (s *Store) storedID(key string) string {
	data, err := os.ReadFile(s.recordPath(key))
	if err != nil {
		return ""
	}
	var head struct {
		ID string `json:"id"`
	}
	json.Unmarshal(data, &head)
	return head.ID
}

// Save writes r under its derived key and returns that key. An existing
// file for the same course under another key (the display name changed, or
// the course predates timestamp keys) is removed, and history artifacts
// under the old key are renamed to match.
func (s *Store) Save(identity string, r *Record) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = NormalizeTimestamp(r.CreatedAt, s.now())

	unlock := s.locks.Lock(r.ID)
	defer unlock()

	key := Key(r)
	previous := s.findExisting(key, identity, r.ID)
	if previous != "" && previous != key {
		r.MarkdownFile = strings.Replace(r.MarkdownFile, previous, key, 1)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(s.recordPath(key), data, 0644); err != nil {
		return "", fmt.Errorf("writing course %s: %w", key, err)
	}
	r.Key = key

	if previous != "" && previous != key {
		if err := os.Remove(s.recordPath(previous)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("removing renamed record", zap.String("key", previous), zap.Error(err))
		} else {
			s.logger.Info("renamed course", zap.String("from", previous), zap.String("to", key))
		}
		s.renameArtifacts(previous, key)
	}
	return key, nil
}

// findExisting returns the key of the file currently holding this course:
// the exact key, else a file with the same timestamp prefix that belongs
// to this course, else a legacy file whose name contains identity.
func (s *Store) findExisting(key, identity, id string) string {
	names, err := s.recordFiles()
	if err != nil {
		return ""
	}
	target := key + ".json"
	prefix := key[:len(timestampLayout)] + "_"
	var sameTS, legacy string
	for _, n := range names {
		k := strings.TrimSuffix(n, ".json")
		switch {
		case n == target:
			return key
		case sameTS == "" && strings.HasPrefix(n, prefix):
			if other := s.storedID(k); other == "" || other == id {
				sameTS = k
			}
		case legacy == "" && identity != "" && strings.Contains(n, identity):
			legacy = k
		}
	}
	if sameTS != "" {
		return sameTS
	}
	return legacy
}

// isArtifact reports whether name is a history file of key: the key
// followed by a single extension. A longer key that merely starts with key
// belongs to another course.
func isArtifact(name, key string) bool {
	rest, ok := strings.CutPrefix(name, key)
	if !ok || !strings.HasPrefix(rest, ".") {
		return false
	}
	ext := rest[1:]
	return ext != "" && !strings.Contains(ext, ".")
}

func (s *Store) renameArtifacts(from, to string) {
	entries, err := os.ReadDir(s.history)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !isArtifact(e.Name(), from) {
			continue
		}
		newName := to + strings.TrimPrefix(e.Name(), from)
		if err := os.Rename(filepath.Join(s.history, e.Name()), filepath.Join(s.history, newName)); err != nil {
			s.logger.Warn("renaming artifact", zap.String("file", e.Name()), zap.Error(err))
		}
	}
}

// resolve finds the key for identity: an exact key, then any key
// containing identity, then a record whose stable ID equals identity.
func (s *Store) resolve(identity string) (string, error) {
	if !validIdentity(identity) {
		return "", ErrNotFound
	}
	if _, err := os.Stat(s.recordPath(identity)); err == nil {
		return identity, nil
	}
	names, err := s.recordFiles()
	if err != nil {
		return "", err
	}
	for _, n := range names {
		if strings.Contains(n, identity) {
			return strings.TrimSuffix(n, ".json"), nil
		}
	}
	for _, n := range names {
		k := strings.TrimSuffix(n, ".json")
		if s.storedID(k) == identity {
			return k, nil
		}
	}
	return "", ErrNotFound
}

// Load returns the record for identity, which may be a key, part of a
// legacy file name, or a stable ID.
func (s *Store) Load(identity string) (*Record, error) {
	key, err := s.resolve(identity)
	if err != nil {
		return nil, err
	}
	return s.read(key)
}

// List returns every stored course, newest first.
func (s *Store) List() ([]Summary, error) {
	s.migrate()
	names, err := s.recordFiles()
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(names))
	for _, n := range names {
		key := strings.TrimSuffix(n, ".json")
		r, err := s.read(key)
		if err != nil {
			s.logger.Warn("skipping unreadable record", zap.String("file", n), zap.Error(err))
			continue
		}
		sum := Summary{
			ID:         key,
			UUID:       r.ID,
			Topic:      r.Config.Topic,
			CourseName: r.CourseName,
			MDStatus:   "missing",
		}
		if sum.Topic == "" {
			sum.Topic = "Untitled"
		}
		switch {
		case fileExists(filepath.Join(s.history, key+".md")):
			sum.MDStatus, sum.MarkdownFile = "exists", key+".md"
		case r.MarkdownFile != "" && fileExists(filepath.Join(s.history, r.MarkdownFile)):
			sum.MDStatus, sum.MarkdownFile = "exists", r.MarkdownFile
		}
		if t, ok := ParseKeyTime(key); ok {
			sum.Timestamp = t
		} else if info, err := os.Stat(s.recordPath(key)); err == nil {
			sum.Timestamp = info.ModTime()
		}
		if r.Outline != nil {
			sum.Chapters = len(r.Outline.Chapters)
			for _, ch := range r.Outline.Chapters {
				if ch.Status == course.StatusCompleted {
					sum.Completed++
				}
			}
		}
		out = append(out, sum)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// Delete removes the record for identity and every history artifact whose
// name starts with its key. It reports whether a record was removed.
func (s *Store) Delete(identity string) (bool, error) {
	key, err := s.resolve(identity)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if id := s.storedID(key); id != "" {
		unlock := s.locks.Lock(id)
		defer unlock()
	}

	if err := os.Remove(s.recordPath(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	entries, err := os.ReadDir(s.history)
	if err != nil {
		return true, nil
	}
	for _, e := range entries {
		if isArtifact(e.Name(), key) {
			if err := os.Remove(filepath.Join(s.history, e.Name())); err != nil {
				s.logger.Warn("removing artifact", zap.String("file", e.Name()), zap.Error(err))
			}
		}
	}
	return true, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
