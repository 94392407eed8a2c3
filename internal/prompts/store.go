package prompts

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// validKeyPattern matches valid prompt keys (alphanumeric with dots, underscores).
var validKeyPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9._]*$`)

const overrideExt = ".tmpl"

// Store reads prompt overrides from a directory, one <key>.tmpl per prompt.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a store over dir. The directory need not exist.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the override directory.
func (s *Store) Dir() string { return s.dir }

// Get returns the override text for key, or "" and false when none exists.
func (s *Store) Get(key string) (string, bool, error) {
	if !validKeyPattern.MatchString(key) {
		return "", false, fmt.Errorf("invalid prompt key: %s", key)
	}
	b, err := os.ReadFile(filepath.Join(s.dir, key+overrideExt))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read prompt override %s: %w", key, err)
	}
	return string(b), true, nil
}

// Keys lists the keys that have an override file.
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, overrideExt) {
			continue
		}
		key := strings.TrimSuffix(name, overrideExt)
		if validKeyPattern.MatchString(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
