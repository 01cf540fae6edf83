// Command fqcstat runs a single-pass quality-control scan over a FASTQ or
// alignment file and writes a structured text report and an HTML report.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fqcstat/internal/accumulator"
	"fqcstat/internal/config"
	"fqcstat/internal/engineerr"
	"fqcstat/internal/qualityenc"
	"fqcstat/internal/report"
	"fqcstat/internal/source"
	"fqcstat/internal/summary"
	"fqcstat/internal/tokenizer"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

func main() {
	var (
		inPath           string
		outPath          string
		format           string
		kmerLength       int
		qualityOffset    int
		limitsPath       string
		adaptersPath     string
		contaminantsPath string
		htmlTemplate     string
		verbose          bool
	)

	helpFunc := func(cmd *cobra.Command, args []string) {
		fmt.Printf(`
%s

%s
  %s
  %s

%s
  %s
  %s
  %s
  %s
  %s
  %s

`,
			bold(cyan("fqcstat")+" - single-pass FASTQ/SAM quality-control analyzer"),
			bold(yellow("Formats:")),
			cyan("plain")+":     four-line FASTQ records, gzip-compressed or not",
			cyan("align")+":     tab-delimited alignment records",
			bold(yellow("Flags:")),
			cyan("-i, --in")+" <string>      : Input file (required)",
			cyan("-o, --out")+" <string>     : Output report path prefix (required)",
			cyan("-f, --format")+" <string>  : Record format: plain or align (default plain)",
			cyan("-k, --kmer")+" <int>       : K-mer length, 2-10 (default 7)",
			cyan("--limits")+" <string>      : Metric limits file",
			cyan("--adapters")+" <string>    : Adapter table file")
	}

	rootCmd := &cobra.Command{
		Use:   "fqcstat",
		Short: bold("Single-pass FASTQ/SAM quality-control analyzer"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if inPath == "" || outPath == "" {
				helpFunc(cmd, args)
				return nil
			}
			return run(runOptions{
				inPath:           inPath,
				outPath:          outPath,
				format:           format,
				kmerLength:       kmerLength,
				qualityOffset:    qualityOffset,
				qualityOffsetSet: cmd.Flags().Changed("quality-offset"),
				limitsPath:       limitsPath,
				adaptersPath:     adaptersPath,
				contaminantsPath: contaminantsPath,
				htmlTemplate:     htmlTemplate,
				verbose:          verbose,
			})
		},
	}

	rootCmd.SetHelpFunc(helpFunc)

	flags := rootCmd.Flags()
	flags.StringVarP(&inPath, "in", "i", "", "Input file (required)")
	flags.StringVarP(&outPath, "out", "o", "", "Output report path prefix (required)")
	flags.StringVarP(&format, "format", "f", "plain", "Record format: plain or align")
	flags.IntVarP(&kmerLength, "kmer", "k", config.DefaultKmerLength, "K-mer length, 2-10")
	flags.IntVar(&qualityOffset, "quality-offset", config.DefaultQualityOffset, "Quality byte offset")
	flags.StringVar(&limitsPath, "limits", "", "Metric limits file")
	flags.StringVar(&adaptersPath, "adapters", "", "Adapter table file")
	flags.StringVar(&contaminantsPath, "contaminants", "", "Contaminants table file")
	flags.StringVar(&htmlTemplate, "html-template", "", "HTML report template file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		os.Exit(1)
	}
}

type runOptions struct {
	inPath           string
	outPath          string
	format           string
	kmerLength       int
	qualityOffset    int
	qualityOffsetSet bool
	limitsPath       string
	adaptersPath     string
	contaminantsPath string
	htmlTemplate     string
	verbose          bool
}

func run(opts runOptions) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx := context.Background()
	cfg, err := loadConfig(ctx, opts)
	if err != nil {
		return err
	}
	logger.Debug("configuration loaded", "kmer_length", cfg.KmerLength, "adapters", len(cfg.Adapters))

	if !opts.qualityOffsetSet {
		if enc, ok := sniffQualityEncoding(opts); ok {
			offset := qualityenc.Phred33Offset
			if enc == qualityenc.EncodingPhred64 {
				offset = qualityenc.Phred64Offset
			}
			if offset != cfg.QualityOffset {
				logger.Info("detected quality encoding", "encoding", enc.String(), "offset", offset)
				cfg.QualityOffset = offset
			}
		}
	}

	cur, tok, err := openInput(opts, cfg)
	if err != nil {
		return err
	}
	defer cur.Close() //nolint:errcheck

	acc := accumulator.New(cfg.KmerLength)
	var numRecords uint64
	for {
		ok, err := tok.Next(acc)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		numRecords++
	}
	logger.Info("scan complete", "records", numRecords)

	result := summary.Summarize(acc, cfg)
	return writeReports(ctx, opts, result, logger)
}

func loadConfig(ctx context.Context, opts runOptions) (*config.Config, error) {
	if opts.limitsPath == "" {
		cfg := config.Default()
		cfg.KmerLength = opts.kmerLength
		cfg.QualityOffset = opts.qualityOffset
		cfg.Limits = make(config.Limits, len(config.MetricNames))
		for _, m := range config.MetricNames {
			cfg.Limits[m] = map[string]float64{"warn": 0, "error": 0}
		}
		return cfg, nil
	}
	cfg, err := config.Load(ctx, opts.limitsPath, opts.adaptersPath, opts.contaminantsPath, opts.kmerLength)
	if err != nil {
		return nil, err
	}
	cfg.QualityOffset = opts.qualityOffset
	return cfg, nil
}

func openInput(opts runOptions, cfg *config.Config) (source.Cursor, *tokenizer.Tokenizer, error) {
	var format tokenizer.Format
	switch strings.ToLower(opts.format) {
	case "plain":
		format = tokenizer.FormatPlain
	case "align":
		format = tokenizer.FormatAlign
	default:
		return nil, nil, fmt.Errorf("unknown format %q: %w", opts.format, engineerr.ErrConfig)
	}

	var cur source.Cursor
	var err error
	switch {
	case format == tokenizer.FormatAlign:
		cur, err = source.OpenMappedAlign(opts.inPath)
	case strings.HasSuffix(opts.inPath, ".gz"):
		cur, err = source.OpenStreamDecompressed(opts.inPath)
	default:
		cur, err = source.OpenMappedPlain(opts.inPath)
	}
	if err != nil {
		return nil, nil, err
	}

	return cur, tokenizer.New(cur, format, cfg.QualityOffset), nil
}

// sniffSampleLines bounds how much of the input sniffQualityEncoding reads
// before giving up on auto-detection.
const sniffSampleLines = 400

// sniffQualityEncoding reads a bounded prefix of the input and extracts
// whatever quality lines it can find, independent of the tokenizer's own
// pass, so that run can guess the Phred encoding after loadConfig and
// before the real scan commits to an offset. It reports ok=false if the
// input can't be opened
// or sampled, in which case the caller keeps its configured default.
func sniffQualityEncoding(opts runOptions) (qualityenc.Encoding, bool) {
	f, err := os.Open(opts.inPath) //nolint:gosec // operator-specified input path
	if err != nil {
		return 0, false
	}
	defer f.Close() //nolint:errcheck

	var r *bufio.Reader
	if strings.HasSuffix(opts.inPath, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return 0, false
		}
		defer gz.Close() //nolint:errcheck
		r = bufio.NewReader(gz)
	} else {
		r = bufio.NewReader(f)
	}

	var qualities [][]byte
	aligned := strings.EqualFold(opts.format, "align")
	lineNum := 0
	for lineNum < sniffSampleLines {
		line, err := r.ReadString('\n')
		if line == "" && err != nil {
			break
		}
		line = strings.TrimRight(line, "\n")
		if aligned {
			fields := strings.Split(line, "\t")
			if len(fields) >= 11 {
				qualities = append(qualities, []byte(fields[10]))
			}
		} else if lineNum%4 == 3 {
			qualities = append(qualities, []byte(line))
		}
		lineNum++
		if err != nil {
			break
		}
	}
	if len(qualities) == 0 {
		return 0, false
	}
	return qualityenc.DetectEncoding(qualities), true
}

func writeReports(ctx context.Context, opts runOptions, result *summary.Result, logger *slog.Logger) error {
	textPath := opts.outPath + ".txt"
	htmlPath := opts.outPath + ".html"

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := os.Create(textPath) //nolint:gosec // operator-specified output path
		if err != nil {
			return fmt.Errorf("creating %s: %w", textPath, engineerr.ErrIO)
		}
		defer f.Close() //nolint:errcheck
		tw := report.TextWriter{Filename: opts.inPath}
		if err := tw.Write(f, result); err != nil {
			logger.Error("text report write failed", "error", err)
			return nil
		}
		return nil
	})
	g.Go(func() error {
		var template string
		if opts.htmlTemplate != "" {
			data, err := os.ReadFile(opts.htmlTemplate) //nolint:gosec // operator-specified template path
			if err != nil {
				logger.Error("reading html template", "error", err)
				return nil
			}
			template = string(data)
		}
		f, err := os.Create(htmlPath) //nolint:gosec // operator-specified output path
		if err != nil {
			logger.Error("creating html report", "error", err)
			return nil
		}
		defer f.Close() //nolint:errcheck
		hw := report.HTMLWriter{Template: template}
		if err := hw.Write(f, result); err != nil {
			logger.Error("html report write failed", "error", err)
		}
		return nil
	})

	return g.Wait()
}
