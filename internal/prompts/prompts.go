// Package prompts manages the system prompt files the plugin can prepend
// to a query.
package prompts

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultFile is always offered, even before it exists on disk.
const DefaultFile = "default.txt"

var logger = logrus.New()

// Library is a directory of plain-text prompt files.
type Library struct {
	dir string
}

func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

func (l *Library) Dir() string {
	return l.dir
}

func (l *Library) ensureDir() {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		logger.WithError(err).WithField("dir", l.dir).Warn("could not create prompts directory")
	}
}

// Load returns the text of a prompt file. A missing or unreadable file
// resolves to the empty string, not an error. Filenames are flattened to
// their base so lookups cannot leave the directory.
func (l *Library) Load(filename string) string {
	l.ensureDir()

	if filename == "" {
		filename = DefaultFile
	}

	path := filepath.Join(l.dir, filepath.Base(filename))

	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WithError(err).WithField("path", path).Warn("prompt file unreadable")
		}
		return ""
	}

	return strings.TrimSpace(string(content))
}

// List returns the available prompt filenames, sorted, always including
// the default filename.
func (l *Library) List() []string {
	l.ensureDir()

	names := []string{DefaultFile}
	seen := map[string]struct{}{DefaultFile: {}}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		logger.WithError(err).WithField("dir", l.dir).Warn("could not list prompts directory")
		return names
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".txt") {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}

		seen[name] = struct{}{}
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
