package source

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMappedPlain_ReadFieldAndLine(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "reads.fastq")
	require.NoError(t, os.WriteFile(path, []byte("@SEQ_1\nACGT\n+\nIIII\n"), 0o600))

	c, err := OpenMappedPlain(path)
	require.NoError(t, err)
	defer c.Close() //nolint:errcheck

	header, ok := c.ReadField()
	assert.True(t, ok)
	assert.Equal(t, "@SEQ_1", string(header))

	seq, ok := c.ReadField()
	assert.True(t, ok)
	assert.Equal(t, "ACGT", string(seq))

	plus, ok := c.ReadField()
	assert.True(t, ok)
	assert.Equal(t, "+", string(plus))

	qual, ok := c.ReadLine()
	assert.True(t, ok)
	assert.Equal(t, "IIII", string(qual))

	assert.False(t, c.More())
}

func TestMappedPlain_NoTrailingNewline(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "reads.fastq")
	require.NoError(t, os.WriteFile(path, []byte("@SEQ_1\nACGT\n+\nIIII"), 0o600))

	c, err := OpenMappedPlain(path)
	require.NoError(t, err)
	defer c.Close() //nolint:errcheck

	c.ReadField()
	c.ReadField()
	c.ReadField()
	qual, terminated := c.ReadLine()
	assert.False(t, terminated)
	assert.Equal(t, "IIII", string(qual))
}

func TestMappedAlign_TabSeparator(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "reads.sam")
	require.NoError(t, os.WriteFile(path, []byte("QNAME\tFLAG\tRNAME\n"), 0o600))

	c, err := OpenMappedAlign(path)
	require.NoError(t, err)
	defer c.Close() //nolint:errcheck

	f1, ok := c.ReadField()
	assert.True(t, ok)
	assert.Equal(t, "QNAME", string(f1))

	f2, ok := c.ReadField()
	assert.True(t, ok)
	assert.Equal(t, "FLAG", string(f2))
}

func TestMappedPlain_EmptyFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.fastq")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	c, err := OpenMappedPlain(path)
	require.NoError(t, err)
	defer c.Close() //nolint:errcheck

	assert.False(t, c.More())
}

func TestStreamDecompressed(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "reads.fastq.gz")

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("@SEQ_1\nACGT\n+\nIIII\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	c, err := OpenStreamDecompressed(path)
	require.NoError(t, err)
	defer c.Close() //nolint:errcheck

	header, ok := c.ReadField()
	assert.True(t, ok)
	assert.Equal(t, "@SEQ_1", string(header))

	seq, ok := c.ReadField()
	assert.True(t, ok)
	assert.Equal(t, "ACGT", string(seq))
}

func TestDetectGzipMagic(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte("hello")) //nolint:errcheck
	gz.Close()                //nolint:errcheck

	r := bufio.NewReader(bytes.NewReader(buf.Bytes()))
	ok, err := DetectGzipMagic(r)
	require.NoError(t, err)
	assert.True(t, ok)

	r2 := bufio.NewReader(bytes.NewReader([]byte("plain text")))
	ok2, err := DetectGzipMagic(r2)
	require.NoError(t, err)
	assert.False(t, ok2)
}
