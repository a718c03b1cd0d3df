package ical

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	ics "github.com/arran4/golang-ical"

	appLog "untiscal/internal/log"
)

// ErrNoArtifact indicates there is no usable prior artifact at the given
// path. Callers treat it as "no prior state" rather than a failure.
var ErrNoArtifact = errors.New("no calendar artifact")

// Save writes the serialized calendar atomically (temp file + rename) with
// 0600 permissions, unconditionally overwriting any prior artifact.
func Save(path string, cal *ics.Calendar) error {
	if path == "" {
		return errors.New("artifact path is empty")
	}
	if cal == nil {
		return errors.New("calendar is nil")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".untiscal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(cal.Serialize()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Load reads a persisted calendar artifact. A missing or corrupt file
// yields ErrNoArtifact after a warning; first runs and damaged state both
// degrade to an empty prior snapshot.
func Load(path string) (*ics.Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			appLog.Info("no prior calendar artifact", "path", path)
			return nil, ErrNoArtifact
		}
		appLog.Warn("prior calendar artifact unreadable", "path", path, "err", err)
		return nil, ErrNoArtifact
	}

	cal, err := ics.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		appLog.Warn("prior calendar artifact corrupt", "path", path, "err", err)
		return nil, ErrNoArtifact
	}
	return cal, nil
}
