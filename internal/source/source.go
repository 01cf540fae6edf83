// Package source implements a forward byte cursor over one of three input
// variants — a memory-mapped plain file, a memory-mapped alignment file,
// or a streamed decompressed plain file. Each variant exposes the same
// Cursor interface so the tokenizer never needs to know which one it's
// reading from.
package source

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/gzip"

	"fqcstat/internal/engineerr"
)

// Cursor is a forward-only byte reader with a format-dependent field
// separator, plus an explicit newline-terminated read used for the
// quality line.
type Cursor interface {
	// ReadField returns the bytes up to (not including) the format
	// separator and advances past it. terminated is false if the input
	// ended before the separator was found (the field still holds
	// whatever bytes remained).
	ReadField() (field []byte, terminated bool)

	// ReadLine returns the bytes up to (not including) '\n' and advances
	// past it, or to end of input. terminated is false only if input
	// ended with no trailing newline (still a valid final quality line).
	ReadLine() (line []byte, terminated bool)

	// More reports whether any unread input remains.
	More() bool

	// Close releases the underlying resource (mapping, file, decompressor).
	Close() error
}

// mmapCursor walks a memory mapping in place.
type mmapCursor struct {
	file *os.File
	mp   mmap.MMap
	data []byte
	pos  int
	sep  byte
}

// OpenMappedPlain opens path read-only and memory-maps it, using '\n' as
// the field separator (plain four-line record layout).
func OpenMappedPlain(path string) (Cursor, error) {
	return openMapped(path, '\n')
}

// OpenMappedAlign opens path read-only and memory-maps it, using '\t' as
// the field separator (tab-delimited alignment record layout).
func OpenMappedAlign(path string) (Cursor, error) {
	return openMapped(path, '\t')
}

func openMapped(path string, sep byte) (Cursor, error) {
	f, err := os.Open(path) //nolint:gosec // operator-specified input path
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, engineerr.ErrIO)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck
		return nil, fmt.Errorf("stat %s: %w", path, engineerr.ErrIO)
	}
	if st.Size() == 0 {
		return &mmapCursor{file: f, data: nil, sep: sep}, nil
	}

	mp, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close() //nolint:errcheck
		return nil, fmt.Errorf("mmap %s: %w", path, engineerr.ErrIO)
	}

	return &mmapCursor{file: f, mp: mp, data: mp, sep: sep}, nil
}

func (c *mmapCursor) More() bool {
	return c.pos < len(c.data)
}

func (c *mmapCursor) ReadField() ([]byte, bool) {
	return c.readUntil(c.sep)
}

func (c *mmapCursor) ReadLine() ([]byte, bool) {
	return c.readUntil('\n')
}

func (c *mmapCursor) readUntil(delim byte) ([]byte, bool) {
	start := c.pos
	for c.pos < len(c.data) {
		if c.data[c.pos] == delim {
			field := c.data[start:c.pos]
			c.pos++
			return field, true
		}
		c.pos++
	}
	return c.data[start:c.pos], false
}

func (c *mmapCursor) Close() error {
	var err error
	if c.mp != nil {
		err = c.mp.Unmap()
	}
	if cerr := c.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("closing mapped source: %w", engineerr.ErrIO)
	}
	return nil
}

// streamCursor pulls decompressed bytes from a gzip stream through a
// bounded buffer. The field separator for the streamed plain-record
// variant is always '\n'.
type streamCursor struct {
	file *os.File
	gz   *gzip.Reader
	br   *bufio.Reader
}

// maxChunk bounds a single buffered read from the decompressor.
const maxChunk = 16 * 1024

// OpenStreamDecompressed opens path and wraps it in a gzip reader,
// streaming decompressed chunks rather than mapping the whole file.
func OpenStreamDecompressed(path string) (Cursor, error) {
	f, err := os.Open(path) //nolint:gosec // operator-specified input path
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, engineerr.ErrIO)
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close() //nolint:errcheck
		return nil, fmt.Errorf("opening gzip stream %s: %w", path, engineerr.ErrIO)
	}

	return &streamCursor{file: f, gz: gz, br: bufio.NewReaderSize(gz, maxChunk)}, nil
}

func (c *streamCursor) More() bool {
	_, err := c.br.Peek(1)
	return err == nil
}

func (c *streamCursor) ReadField() ([]byte, bool) {
	return c.readLine()
}

func (c *streamCursor) ReadLine() ([]byte, bool) {
	return c.readLine()
}

func (c *streamCursor) readLine() ([]byte, bool) {
	line, err := c.br.ReadSlice('\n')
	if err == nil {
		return line[:len(line)-1], true
	}
	// Short read at end of stream: whatever we got is the final,
	// non-newline-terminated line.
	return line, false
}

func (c *streamCursor) Close() error {
	gzErr := c.gz.Close()
	fErr := c.file.Close()
	if gzErr != nil || fErr != nil {
		return fmt.Errorf("closing stream source: %w", engineerr.ErrIO)
	}
	return nil
}

// DetectGzipMagic reports whether the first two bytes of r look like a
// gzip header, for deciding whether an input stream needs gzip
// decompression before the cursor reads it.
func DetectGzipMagic(r *bufio.Reader) (bool, error) {
	header, err := r.Peek(2)
	if err != nil {
		if err == io.EOF { //nolint:errorlint // bufio.Peek returns io.EOF directly
			return false, nil
		}
		return false, err
	}
	return len(header) == 2 && header[0] == 0x1f && header[1] == 0x8b, nil
}
