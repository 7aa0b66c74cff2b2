// Package cache keeps the results of expensive lookups, such as probing a remote file, on disk for a
// week.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/anisan-cli/reelplay/filesystem"
	"github.com/anisan-cli/reelplay/log"
	"github.com/anisan-cli/reelplay/where"
	"github.com/spf13/afero"
)

const TTL = 7 * 24 * time.Hour

// now is replaced in tests.
var now = time.Now

func dir() string {
	path := filepath.Join(where.Cache(), "probe")
	_ = filesystem.API().MkdirAll(path, 0o755)
	return path
}

// Key returns a deterministic identifier for a lookup of subject by kind.
func Key(subject, kind string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(subject) + "\x00" + kind))
	return hex.EncodeToString(hash[:])
}

// Read decodes the entry stored under key into target. It reports false for missing, expired or
// unreadable entries.
func Read(key string, target any) bool {
	path := filepath.Join(dir(), key)

	info, err := filesystem.API().Stat(path)
	if err != nil || now().Sub(info.ModTime()) > TTL {
		return false
	}

	data, err := filesystem.API().ReadFile(path)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, target) == nil
}

// Write stores data under key, replacing the previous entry atomically.
func Write(key string, data any) error {
	path := filepath.Join(dir(), key)
	tmpPath := path + ".tmp"

	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if err := filesystem.API().WriteFile(tmpPath, encoded, 0o644); err != nil {
		return err
	}
	return filesystem.API().Rename(tmpPath, path)
}

// CollectGarbage removes expired entries.
func CollectGarbage() {
	fsys := filesystem.API()
	removed := 0
	_ = afero.Walk(fsys, dir(), func(path string, info fs.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if now().Sub(info.ModTime()) > TTL {
			if fsys.Remove(path) == nil {
				removed++
			}
		}
		return nil
	})

	if removed > 0 {
		log.Debugf("removed %d expired cache entries", removed)
	}
}
