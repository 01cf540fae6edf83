// Package config loads the three on-disk configuration artifacts the
// analyzer consumes: the metric limits file, the adapter table, and the
// contaminants table.
package config

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"fqcstat/internal/engineerr"
)

// MetricNames is the closed set of metric names the limits file must cover.
var MetricNames = []string{
	"duplication",
	"kmer",
	"n_content",
	"overrepresented",
	"quality_base_lower",
	"quality_base_median",
	"quality_sequence",
	"sequence",
	"gc_sequence",
	"tile",
	"sequence_length",
	"adapter",
}

// Default magic numbers, matching the reference tool's conventions.
const (
	DefaultKmerLength           = 7
	DefaultPoorQualityThreshold = 20
	DefaultOverrepMinFrac       = 0.001
	DefaultQualityOffset        = 33
)

// AdapterEntry is an adapter's name and its K-length 2-bit prefix hash.
type AdapterEntry struct {
	Name string
	Hash uint64
}

// ContaminantEntry is a contaminant's name and literal subsequence.
type ContaminantEntry struct {
	Name     string
	Sequence string
}

// Limits is the parsed {metric -> {instruction -> threshold}} table.
type Limits map[string]map[string]float64

// Ignore reports whether a metric's "ignore" instruction is non-zero.
func (l Limits) Ignore(metric string) bool {
	return l[metric]["ignore"] != 0
}

// Config is the full configuration record the engine consumes.
type Config struct {
	KmerLength           int
	PoorQualityThreshold int
	OverrepMinFrac       float64
	QualityOffset        int
	Limits               Limits
	Adapters             []AdapterEntry
	Contaminants         []ContaminantEntry
}

// Default returns a Config with the reference tool's magic defaults and no
// limits, adapters, or contaminants loaded.
func Default() *Config {
	return &Config{
		KmerLength:           DefaultKmerLength,
		PoorQualityThreshold: DefaultPoorQualityThreshold,
		OverrepMinFrac:       DefaultOverrepMinFrac,
		QualityOffset:        DefaultQualityOffset,
	}
}

// actgTo2Bit mirrors the engine's nucleotide bit-extraction quirk so that
// adapter hashes are computed the same way the accumulator would classify
// the same bytes.
func actgTo2Bit(c byte) uint64 {
	return uint64(c>>1) & 3
}

// Load reads the limits file, then — unless adapter analysis is ignored —
// loads the adapters and contaminants tables concurrently. A non-zero
// "adapter" ignore flag skips loading both lists, since the reference tool
// conflates them under one flag.
func Load(ctx context.Context, limitsPath, adaptersPath, contaminantsPath string, kmerLength int) (*Config, error) {
	cfg := Default()
	cfg.KmerLength = kmerLength

	limits, err := ReadLimits(limitsPath)
	if err != nil {
		return nil, err
	}
	cfg.Limits = limits

	if limits.Ignore("adapter") {
		return cfg, nil
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		adapters, err := ReadAdapters(adaptersPath, kmerLength)
		if err != nil {
			return err
		}
		cfg.Adapters = adapters
		return nil
	})
	g.Go(func() error {
		contaminants, err := ReadContaminants(contaminantsPath)
		if err != nil {
			return err
		}
		cfg.Contaminants = contaminants
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ReadLimits parses the limits file: line-oriented, '#'-prefixed comments,
// each data line "<metric> <warn|error|ignore> <number>". Every metric in
// the closed set must appear or ConfigError is returned.
func ReadLimits(path string) (Limits, error) {
	f, err := os.Open(path) //nolint:gosec // operator-specified config path
	if err != nil {
		return nil, fmt.Errorf("opening limits file %s: %w", path, engineerr.ErrConfig)
	}
	defer f.Close() //nolint:errcheck

	limits := make(Limits, len(MetricNames))
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("%s: malformed limits line %q: %w", path, line, engineerr.ErrConfig)
		}
		metric, instruction, valueStr := fields[0], fields[1], fields[2]

		if !isKnownMetric(metric) {
			return nil, fmt.Errorf("%s: unknown limit option %q: %w", path, metric, engineerr.ErrConfig)
		}
		if instruction != "warn" && instruction != "error" && instruction != "ignore" {
			return nil, fmt.Errorf("%s: unknown instruction %q for limit %q: %w", path, instruction, metric, engineerr.ErrConfig)
		}
		value, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad threshold value %q for limit %q: %w", path, valueStr, metric, engineerr.ErrConfig)
		}

		if limits[metric] == nil {
			limits[metric] = make(map[string]float64, 3)
		}
		limits[metric][instruction] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading limits file %s: %w", path, err)
	}

	for _, m := range MetricNames {
		if _, ok := limits[m]; !ok {
			return nil, fmt.Errorf("%s: instruction for limit %q not found: %w", path, m, engineerr.ErrConfig)
		}
	}

	return limits, nil
}

func isKnownMetric(metric string) bool {
	for _, m := range MetricNames {
		if m == metric {
			return true
		}
	}
	return false
}

// ReadAdapters parses the adapter table: whitespace-separated tokens per
// line, last token is the literal adapter sequence (A/C/T/G only),
// truncated to kmerLength bases and encoded as a 2-bit hash.
func ReadAdapters(path string, kmerLength int) ([]AdapterEntry, error) {
	f, err := os.Open(path) //nolint:gosec // operator-specified config path
	if err != nil {
		return nil, fmt.Errorf("opening adapters file %s: %w", path, engineerr.ErrConfig)
	}
	defer f.Close() //nolint:errcheck

	var entries []AdapterEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		name := strings.Join(fields[:len(fields)-1], " ")
		seq := fields[len(fields)-1]
		if len(seq) > kmerLength {
			seq = seq[:kmerLength]
		}

		var hash uint64
		for i := 0; i < len(seq); i++ {
			c := seq[i]
			if c != 'A' && c != 'C' && c != 'T' && c != 'G' {
				return nil, fmt.Errorf("%s: bad adapter (non-ATGC characters) %q: %w", path, seq, engineerr.ErrConfig)
			}
			hash = (hash << 2) | actgTo2Bit(c)
		}

		entries = append(entries, AdapterEntry{Name: name, Hash: hash})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading adapters file %s: %w", path, err)
	}

	return entries, nil
}

// ReadContaminants parses the contaminants table: same shape as adapters,
// but the literal subsequence is not alphabet-validated.
func ReadContaminants(path string) ([]ContaminantEntry, error) {
	f, err := os.Open(path) //nolint:gosec // operator-specified config path
	if err != nil {
		return nil, fmt.Errorf("opening contaminants file %s: %w", path, engineerr.ErrConfig)
	}
	defer f.Close() //nolint:errcheck

	var entries []ContaminantEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		name := strings.Join(fields[:len(fields)-1], " ")
		seq := fields[len(fields)-1]
		entries = append(entries, ContaminantEntry{Name: name, Sequence: seq})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading contaminants file %s: %w", path, err)
	}

	return entries, nil
}

// MatchingContaminant returns the name of the first contaminant whose
// sequence either contains, or is contained by, seq — "No Hit" if none
// match. Mirrors the reference tool's substring-either-way convention.
func MatchingContaminant(contaminants []ContaminantEntry, seq string) string {
	for _, c := range contaminants {
		if len(seq) > len(c.Sequence) {
			if strings.Contains(seq, c.Sequence) {
				return c.Name
			}
		} else if strings.Contains(c.Sequence, seq) {
			return c.Name
		}
	}
	return "No Hit"
}
