// Package output stores rendered interval files, either on the local
// filesystem or in an S3 bucket.
package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/rewired-gh/fisdef/internal/logger"
)

// ErrFileCreate is returned when neither the requested nor the fallback
// location could be written.
var ErrFileCreate = errors.New("failed to create output file")

// Sink stores one output file.
type Sink interface {
	// Write stores data at path. defaultName is used when path cannot be
	// created. It returns where the data ended up and whether a fallback
	// was used.
	Write(ctx context.Context, path, defaultName string, data []byte) (location string, fallback bool, err error)
}

// Path builds "<dir>/<stem>_<index>.<ext>" from the user supplied output
// prefix. Only the file stem of the prefix is kept, so "out/run.json" gives
// "out/run_0.json". An empty stem becomes "step".
func Path(prefix string, index int, ext string) string {
	dir, file := filepath.Split(prefix)
	stem := strings.TrimSuffix(file, filepath.Ext(file))
	if stem == "" {
		stem = "step"
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%d.%s", stem, index, ext))
}

// FileSink writes to the local filesystem.
type FileSink struct {
	filePermissions os.FileMode
	dirPermissions  os.FileMode
}

// NewFileSink creates a FileSink.
func NewFileSink(filePermissions, dirPermissions os.FileMode) *FileSink {
	return &FileSink{filePermissions: filePermissions, dirPermissions: dirPermissions}
}

// Write creates parent directories of path and writes data. If the
// directories cannot be created it writes the bare file name into the working
// directory instead; if the file still cannot be created it writes
// defaultName.
func (s *FileSink) Write(_ context.Context, path, defaultName string, data []byte) (string, bool, error) {
	target := path
	fallback := false

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, s.dirPermissions); err != nil {
			logger.Warn("%v. Falling back to working directory.", err)
			target = filepath.Base(path)
			fallback = true
		}
	}

	if err := os.WriteFile(target, data, s.filePermissions); err != nil {
		logger.Warn("%v. Falling back to %q.", err, defaultName)
		if err := os.WriteFile(defaultName, data, s.filePermissions); err != nil {
			return "", true, fmt.Errorf("%w: %s: %v", ErrFileCreate, defaultName, err)
		}
		target = defaultName
		fallback = true
	}

	logger.Debug("Wrote %s to %s", humanize.Bytes(uint64(len(data))), target)
	return target, fallback, nil
}
