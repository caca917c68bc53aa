// Package output writes generated files, or compares them with what is on disk
// in check mode.
package output

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/akedrou/textdiff"
	"github.com/toejough/go-reorder"
	"go.uber.org/zap"
)

// FileSystem reads and writes generated files.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
}

// OSFileSystem is the FileSystem of the running process.
type OSFileSystem struct{}

// ReadFile implements FileSystem.
func (OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name) //nolint:gosec // paths come from the package being generated
}

// WriteFile implements FileSystem.
func (OSFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

// File is one generated file.
type File struct {
	Path   string
	Source []byte
}

// Options controls how generated files are written.
type Options struct {
	// Check compares instead of writing; stale files are an error.
	Check bool
	// Dump receives every generated file when set.
	Dump io.Writer
}

// ErrStale reports generated files that differ from what would be generated.
var ErrStale = errors.New("generated files are out of date")

// WriteGeneratedCode reorders each file's declarations and writes it, or in
// check mode returns ErrStale with a unified diff of every stale file.
func WriteGeneratedCode(files []File, fsys FileSystem, opts Options, log *zap.Logger, out io.Writer) error {
	const generatedFilePermissions = 0o600

	var diffs []string

	for _, file := range files {
		code := reordered(file, log)

		if opts.Dump != nil {
			_, _ = fmt.Fprintf(opts.Dump, "// ==== %s ====\n%s\n", file.Path, code)
		}

		current, err := fsys.ReadFile(file.Path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error reading %s: %w", file.Path, err)
		}

		if err == nil && string(current) == code {
			log.Debug("generated file is up to date", zap.String("file", file.Path))

			continue
		}

		if opts.Check {
			diffs = append(diffs, textdiff.Unified(file.Path+" (current)", file.Path+" (generated)", string(current), code))

			continue
		}

		err = fsys.WriteFile(file.Path, []byte(code), generatedFilePermissions)
		if err != nil {
			return fmt.Errorf("error writing %s: %w", file.Path, err)
		}

		_, _ = fmt.Fprintf(out, "%s written successfully.\n", file.Path)
	}

	if len(diffs) > 0 {
		return fmt.Errorf("%w:\n%s", ErrStale, strings.Join(diffs, "\n"))
	}

	return nil
}

// reordered puts a file's declarations in canonical order. A file the
// reorderer cannot handle is kept as generated.
func reordered(file File, log *zap.Logger) string {
	code, err := reorder.Source(string(file.Source))
	if err != nil {
		log.Warn("failed to reorder generated file", zap.String("file", file.Path), zap.Error(err))

		return string(file.Source)
	}

	return code
}
