package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fqcstat/internal/config"
)

func TestOpenInput_UnknownFormat(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "reads.fastq")
	require.NoError(t, os.WriteFile(path, []byte("@A\nACGT\n+\nIIII\n"), 0o600))

	_, _, err := openInput(runOptions{inPath: path, format: "bogus"}, config.Default())
	require.Error(t, err)
}

func TestOpenInput_PlainMapped(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "reads.fastq")
	require.NoError(t, os.WriteFile(path, []byte("@A\nACGT\n+\nIIII\n"), 0o600))

	cur, tok, err := openInput(runOptions{inPath: path, format: "plain"}, config.Default())
	require.NoError(t, err)
	defer cur.Close() //nolint:errcheck
	assert.NotNil(t, tok)
}

func TestOpenInput_AlignFormat(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "reads.sam")
	require.NoError(t, os.WriteFile(path, []byte("Q\t0\tc\t1\t60\t4M\t*\t0\t0\tACGT\tIIII\n"), 0o600))

	cur, tok, err := openInput(runOptions{inPath: path, format: "align"}, config.Default())
	require.NoError(t, err)
	defer cur.Close() //nolint:errcheck
	assert.NotNil(t, tok)
}

func TestLoadConfig_NoLimitsPathUsesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := loadConfig(context.Background(), runOptions{kmerLength: 7, qualityOffset: 33})
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.KmerLength)
	assert.Len(t, cfg.Limits, len(config.MetricNames))
}

func TestSniffQualityEncoding_Phred64(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "reads.fastq")
	require.NoError(t, os.WriteFile(path, []byte("@A\nACGT\n+\nghij\n@B\nACGT\n+\nhhhh\n"), 0o600))

	enc, ok := sniffQualityEncoding(runOptions{inPath: path, format: "plain"})
	require.True(t, ok)
	assert.Equal(t, "Phred+64", enc.String())
}

func TestSniffQualityEncoding_AlignFormat(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "reads.sam")
	require.NoError(t, os.WriteFile(path, []byte("Q\t0\tc\t1\t60\t4M\t*\t0\t0\tACGT\t!III\n"), 0o600))

	enc, ok := sniffQualityEncoding(runOptions{inPath: path, format: "align"})
	require.True(t, ok)
	assert.Equal(t, "Phred+33", enc.String())
}

func TestSniffQualityEncoding_MissingFile(t *testing.T) {
	t.Parallel()
	_, ok := sniffQualityEncoding(runOptions{inPath: filepath.Join(t.TempDir(), "missing.fastq"), format: "plain"})
	assert.False(t, ok)
}
