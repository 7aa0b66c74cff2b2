// Package filesystem routes every file access of reelplay through a swappable afero backend, so tests
// can run against memory.
package filesystem

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

var (
	mu      sync.RWMutex
	backend = afero.Afero{Fs: afero.NewOsFs()}
)

// API returns the active backend.
func API() afero.Afero {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

func set(fs afero.Fs) {
	mu.Lock()
	defer mu.Unlock()
	backend = afero.Afero{Fs: fs}
}

// SetOsFs selects the operating system filesystem.
func SetOsFs() {
	set(afero.NewOsFs())
}

// SetMemMapFs selects a fresh in-memory filesystem.
func SetMemMapFs() {
	set(afero.NewMemMapFs())
}

// LocalPath returns the path of a media uri that names a local file, either a plain path or a
// file:// uri. Other schemes report false.
func LocalPath(uri string) (string, bool) {
	if path, ok := strings.CutPrefix(uri, "file://"); ok {
		return path, true
	}
	if strings.Contains(uri, "://") {
		return "", false
	}
	return uri, true
}

// GacheFs lets gache caches persist through the active backend.
type GacheFs struct{}

func (GacheFs) OpenFile(name string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	return API().OpenFile(name, flag, perm)
}

func (GacheFs) MkdirAll(path string, perm os.FileMode) error {
	return API().MkdirAll(path, perm)
}
