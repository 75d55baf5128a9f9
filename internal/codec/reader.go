package codec

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-billy/v5"
)

// LineReader streams the records of a dump file
type LineReader struct {
	fs   billy.Filesystem
	path string
}

// NewLineReader returns a reader for path on fs. The file is opened lazily.
func NewLineReader(fs billy.Filesystem, path string) *LineReader {
	return &LineReader{fs: fs, path: path}
}

// Count returns the number of non-blank lines in the file
func (r *LineReader) Count() (int, error) {
	count := 0
	err := r.scan(context.Background(), func(_ int, _ string) error {
		count++
		return nil
	})
	return count, err
}

// ReadLines calls fn for every non-blank line with its 1-based line number and
// the line stripped of surrounding whitespace. Intake is paused while fn runs,
// so a blocking fn throttles the reader. An error from fn stops the read and
// is returned unchanged.
func (r *LineReader) ReadLines(ctx context.Context, fn func(index int, line string) error) error {
	return r.scan(ctx, fn)
}

func (r *LineReader) scan(ctx context.Context, fn func(int, string) error) error {
	f, err := r.fs.Open(r.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", r.path, err)
	}
	defer f.Close() //nolint:errcheck

	rd := bufio.NewReaderSize(f, 256*1024)
	index := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := rd.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read %s: %w", r.path, err)
		}
		eof := err != nil

		if raw != "" {
			index++
			if text := strings.TrimSpace(raw); text != "" {
				if ferr := fn(index, text); ferr != nil {
					return ferr
				}
			}
		}

		if eof {
			return nil
		}
	}
}
