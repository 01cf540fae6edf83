// Package report renders a summary.Result as a structured text report or
// an HTML report substituted into a template. Both writers are pure
// functions of a frozen Result; a write failure is returned to the
// caller but never mutates or invalidates the Result itself.
package report

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"fqcstat/internal/summary"
)

// TextWriter emits the fixed ">>Module\t<verdict>" ... ">>END_MODULE"
// section layout, reproducing the reference tool's column orders and its
// two literal typos (">>END_MOUDLE" on the duplication section,
// "Per base N concent" as the n-content section title) since the layout
// is specified as fixed, and the reference defines what "fixed" means.
type TextWriter struct {
	Filename string
}

// Write renders r to w as the structured text report.
func (tw TextWriter) Write(w io.Writer, r *summary.Result) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, ">>Basic Statistics\t%s\n", summary.Pass)
	fmt.Fprintf(bw, "#Measure\tValue\n")
	fmt.Fprintf(bw, "Filename\t%s\n", tw.Filename)
	fmt.Fprintf(bw, "File type\tConventional base calls\n")
	fmt.Fprintf(bw, "Total Sequences\t%d\n", r.NumReads)
	fmt.Fprintf(bw, "Sequences flagged as poor quality\t%d\n", r.NumPoor)
	fmt.Fprintf(bw, "%%GC\t%.0f\n", r.AvgGC)
	fmt.Fprintf(bw, ">>END_MODULE\n")

	qualityVerdict := summary.Pass
	if v, ok := r.Verdicts["quality_base_lower"]; ok {
		qualityVerdict = v
	}
	if v := r.Verdicts["quality_base_median"]; worseThan(v, qualityVerdict) {
		qualityVerdict = v
	}
	fmt.Fprintf(bw, ">>Per base sequence quality\t%s\n", qualityVerdict)
	fmt.Fprintf(bw, "#Base\tMean\tMedian\tLower Quartile\tUpper Quartile\t10th Percentile\t90th Percentile\n")
	for p, ps := range r.Positions {
		fmt.Fprintf(bw, "%d\t%.2f\t%d\t%d\t%d\t%d\t%d\n",
			p+1, ps.Mean, ps.Median, ps.LowerQuartile, ps.UpperQuartile, ps.LowerDecile, ps.UpperDecile)
	}
	fmt.Fprintf(bw, ">>END_MODULE\n")

	fmt.Fprintf(bw, ">>Per sequence quality scores\t%s\n", r.Verdicts["quality_sequence"])
	fmt.Fprintf(bw, "#Quality\tCount\n")
	fmt.Fprintf(bw, ">>END_MODULE\n")

	fmt.Fprintf(bw, ">>Per base sequence content\t%s\n", r.Verdicts["sequence"])
	fmt.Fprintf(bw, "#Base\tG\tA\tT\tC\n")
	for p, ps := range r.Positions {
		fmt.Fprintf(bw, "%d\t%.2f\t%.2f\t%.2f\t%.2f\n", p+1, ps.GPct, ps.APct, ps.TPct, ps.CPct)
	}
	fmt.Fprintf(bw, ">>END_MODULE\n")

	fmt.Fprintf(bw, ">>Per sequence GC content\t%s\n", r.Verdicts["gc_sequence"])
	fmt.Fprintf(bw, "#GC Content\tCount\n")
	for i, c := range r.GCCount {
		if c > 0 {
			fmt.Fprintf(bw, "%d\t%d\n", i, c)
		}
	}
	fmt.Fprintf(bw, ">>END_MODULE\n")

	fmt.Fprintf(bw, ">>Per base N concent\t%s\n", r.Verdicts["n_content"])
	fmt.Fprintf(bw, "#Base\tN-Count\n")
	for p, ps := range r.Positions {
		fmt.Fprintf(bw, "%d\t%.2f\n", p+1, ps.NPct)
	}
	fmt.Fprintf(bw, ">>END_MODULE\n")

	fmt.Fprintf(bw, ">>Sequence Length Distribution\t%s\n", r.Verdicts["sequence_length"])
	fmt.Fprintf(bw, "#Length\tCount\n")
	fmt.Fprintf(bw, ">>END_MODULE\n")

	fmt.Fprintf(bw, ">>Sequence Duplication Levels\t%s\n", r.Verdicts["duplication"])
	fmt.Fprintf(bw, "#Total Deduplicated Percentage\t%.2f\n", r.TotalDeduplicatedPct)
	fmt.Fprintf(bw, "#Duplication Level\tPercentage of deduplicated\tPercentage of total\n")
	for _, b := range r.DuplicationBuckets {
		fmt.Fprintf(bw, "%s\t%.2f\t%.2f\n", b.Label, b.PercentDeduplicated, b.PercentTotal)
	}
	fmt.Fprintf(bw, ">>END_MOUDLE\n")

	fmt.Fprintf(bw, ">>Overrepresented sequences\t%s\n", r.Verdicts["overrepresented"])
	fmt.Fprintf(bw, "#Sequence\tCount\tPercentage\tPossible Source\n")
	for _, o := range r.Overrepresented {
		fmt.Fprintf(bw, "%s\t%d\t%.4f\t%s\n", o.Sequence, o.Count, o.Percent, o.Contaminant)
	}
	fmt.Fprintf(bw, ">>END_MODULE\n")

	fmt.Fprintf(bw, ">>Adapter Content\t%s\n", r.Verdicts["adapter"])
	fmt.Fprintf(bw, "#Position\t%s\n", strings.Join(r.AdapterNames, "\t"))
	for i, pos := range r.AdapterPositions {
		row := r.AdapterByPosition[i]
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = strconv.FormatFloat(v, 'f', 4, 64)
		}
		fmt.Fprintf(bw, "%d\t%s\n", pos+1, strings.Join(cells, "\t"))
	}
	fmt.Fprintf(bw, ">>END_MODULE\n")

	fmt.Fprintf(bw, ">>Per tile sequence quality\t%s\n", r.Verdicts["tile"])
	fmt.Fprintf(bw, "#Tile\tBase\tMean\n")
	for _, td := range r.TileDeviations {
		fmt.Fprintf(bw, "%d\t%d\t%.4f\n", td.Tile, td.Position+1, td.Deviation)
	}
	fmt.Fprintf(bw, ">>END_MODULE\n")

	return bw.Flush()
}

func worseThan(a, b summary.Verdict) bool {
	rank := map[summary.Verdict]int{summary.Pass: 0, summary.Warn: 1, summary.Fail: 2}
	return rank[a] > rank[b]
}

// HTMLWriter substitutes fixed placeholder tokens in a template with
// serialized data expressions. A placeholder absent from the template is
// simply never substituted — a missing token is a no-op, not an error.
type HTMLWriter struct {
	Template string
}

// Write renders r against the configured template and writes the result
// to w.
func (hw HTMLWriter) Write(w io.Writer, r *summary.Result) error {
	out := hw.Template

	out = strings.ReplaceAll(out, "{{BASICSTATSDATA}}", basicStatsJS(r))
	out = strings.ReplaceAll(out, "{{GCDATA}}", gcDataJS(r))
	out = strings.ReplaceAll(out, "{{DUPLICATIONDATA}}", duplicationDataJS(r))
	out = strings.ReplaceAll(out, "{{OVERREPDATA}}", overrepDataJS(r))

	_, err := io.WriteString(w, out)
	return err
}

func basicStatsJS(r *summary.Result) string {
	return fmt.Sprintf("{totalSequences: %d, poorQuality: %d, gcPercent: %.2f}",
		r.NumReads, r.NumPoor, r.AvgGC)
}

func gcDataJS(r *summary.Result) string {
	var b strings.Builder
	b.WriteString("[")
	for i, c := range r.GCCount {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d", c)
	}
	b.WriteString("]")
	return b.String()
}

func duplicationDataJS(r *summary.Result) string {
	var b strings.Builder
	b.WriteString("[")
	for i, bucket := range r.DuplicationBuckets {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "{label: %q, total: %.2f}", bucket.Label, bucket.PercentTotal)
	}
	b.WriteString("]")
	return b.String()
}

func overrepDataJS(r *summary.Result) string {
	var b strings.Builder
	b.WriteString("[")
	for i, o := range r.Overrepresented {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "{seq: %q, count: %d}", o.Sequence, o.Count)
	}
	b.WriteString("]")
	return b.String()
}
