// Package summary runs the one-shot post-scan derivation: it turns a
// frozen accumulator.State plus a config.Config into a Result ready for
// the report writers. Every formula here mirrors the reference tool this
// analyzer's conventions are drawn from, including a couple of quirks
// (the long-tier tile deviation sign flip, the early-exit duplication
// correction) that are preserved rather than "fixed".
package summary

import (
	"math"
	"sort"

	"fqcstat/internal/accumulator"
	"fqcstat/internal/config"
)

// Verdict is one of the three labels a metric can carry.
type Verdict string

const (
	Pass Verdict = "pass"
	Warn Verdict = "warn"
	Fail Verdict = "fail"
)

// worse returns the more severe of two verdicts; fail dominates warn
// dominates pass, and a verdict never de-escalates once set.
func worse(a, b Verdict) Verdict {
	rank := map[Verdict]int{Pass: 0, Warn: 1, Fail: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// PositionStats holds the per-position derived values at one logical
// position (fixed or long tier, addressed uniformly by the caller).
type PositionStats struct {
	Mean                              float64
	LowerDecile, LowerQuartile        int
	Median                            int
	UpperQuartile, UpperDecile        int
	APct, CPct, TPct, GPct, NPct      float64
}

// DuplicationBucket is one of the 16 reporting buckets for sequence
// duplication levels.
type DuplicationBucket struct {
	Label                string
	PercentDeduplicated  float64
	PercentTotal         float64
}

// OverrepresentedSeq is one sequence whose observed frequency cleared the
// overrepresentation cutoff.
type OverrepresentedSeq struct {
	Sequence   string
	Count      uint64
	Percent    float64
	Contaminant string
}

// TileDeviation is the quality deviation for one (position, tile) pair.
type TileDeviation struct {
	Position   int
	Tile       uint32
	Deviation  float64
}

// Result is the frozen set of everything the report writers consume.
type Result struct {
	NumReads       uint64
	TotalBases     uint64
	AvgReadLength  uint64
	AvgGC          float64
	NumPoor        uint64
	MinReadLength  int
	MaxReadLength  int

	CumulativeLengthFreq []uint64 // indexed by position, length 0..MaxReadLength-1
	Positions            []PositionStats

	GCCount        [101]uint64
	GCTheoretical  [101]float64
	GCDeviation    float64

	DuplicationBuckets   []DuplicationBucket
	TotalDeduplicatedPct float64

	Overrepresented []OverrepresentedSeq

	AdapterNames       []string
	AdapterByPosition  [][]float64 // [position][adapter] cumulative percentage
	AdapterPositions   []int       // logical positions actually populated

	TileDeviations []TileDeviation

	Verdicts map[string]Verdict
}

// Summarize derives a Result from a frozen accumulator and configuration.
func Summarize(acc *accumulator.State, cfg *config.Config) *Result {
	r := &Result{
		NumReads:      acc.NumReads,
		MaxReadLength: acc.MaxReadLength,
		Verdicts:      make(map[string]Verdict, len(config.MetricNames)),
	}

	lengthFreq := func(p int) uint64 {
		if p < accumulator.B {
			return acc.ReadLengthFreq[p]
		}
		idx := p - accumulator.B
		if idx >= len(acc.LongReadLengthFreq) {
			return 0
		}
		return acc.LongReadLengthFreq[idx]
	}

	for p := 0; p < r.MaxReadLength; p++ {
		r.TotalBases += uint64(p) * lengthFreq(p)
	}
	if acc.NumReads > 0 {
		r.AvgReadLength = r.TotalBases / acc.NumReads
	}

	var gcBases uint64
	baseCountAt := func(p, idx int) uint64 {
		if p < accumulator.B {
			return acc.BaseCount[p][idx]
		}
		i := p - accumulator.B
		if i >= len(acc.LongBaseCount) {
			return 0
		}
		return acc.LongBaseCount[i][idx]
	}
	nCountAt := func(p int) uint64 {
		if p < accumulator.B {
			return acc.NBaseCount[p]
		}
		i := p - accumulator.B
		if i >= len(acc.LongNBaseCount) {
			return 0
		}
		return acc.LongNBaseCount[i]
	}
	for p := 0; p < r.MaxReadLength; p++ {
		gcBases += baseCountAt(p, 1) + baseCountAt(p, 3) // C, G
	}
	if r.TotalBases > 0 {
		r.AvgGC = 100 * float64(gcBases) / float64(r.TotalBases)
	}

	for q := 0; q < cfg.PoorQualityThreshold && q < accumulator.NumQuality; q++ {
		r.NumPoor += acc.QualityCount[q]
	}

	r.CumulativeLengthFreq = make([]uint64, r.MaxReadLength)
	var cumulative uint64
	for p := 0; p < r.MaxReadLength; p++ {
		cumulative += lengthFreq(p)
	}
	for p := 0; p < r.MaxReadLength; p++ {
		r.CumulativeLengthFreq[p] = cumulative
		if lengthFreq(p) > 0 && r.MinReadLength == 0 {
			r.MinReadLength = p
		}
		cumulative -= lengthFreq(p)
	}

	qualityCountAt := func(p, q int) uint64 {
		if p < accumulator.B {
			return acc.PositionQualityCount[p][q]
		}
		i := p - accumulator.B
		if i >= len(acc.LongPositionQualityCount) {
			return 0
		}
		return acc.LongPositionQualityCount[i][q]
	}

	r.Positions = make([]PositionStats, r.MaxReadLength)
	r.Verdicts["quality_base_lower"] = Pass
	r.Verdicts["quality_base_median"] = Pass
	for p := 0; p < r.MaxReadLength; p++ {
		total := r.CumulativeLengthFreq[p]
		ld := 0.1 * float64(total)
		lq := 0.25 * float64(total)
		md := 0.5 * float64(total)
		uq := 0.75 * float64(total)
		ud := 0.9 * float64(total)

		var counts uint64
		var mean float64
		var ldecile, lquartile, median, uquartile, udecile int
		for q := 0; q < accumulator.NumQuality; q++ {
			cur := qualityCountAt(p, q)
			fc := float64(counts)
			fcCur := float64(counts + cur)
			if fc < ld && fcCur >= ld {
				ldecile = q
			}
			if fc < lq && fcCur >= lq {
				lquartile = q
			}
			if fc < md && fcCur >= md {
				median = q
			}
			if fc < uq && fcCur >= uq {
				uquartile = q
			}
			if fc < ud && fcCur >= ud {
				udecile = q
			}
			mean += float64(cur) * float64(q)
			counts += cur
		}
		if total > 0 {
			mean /= float64(total)
		}

		a := baseCountAt(p, 0)
		c := baseCountAt(p, 1)
		t := baseCountAt(p, 2)
		g := baseCountAt(p, 3)
		n := nCountAt(p)
		rowTotal := float64(a + c + t + g + n)

		ps := PositionStats{
			Mean: mean, LowerDecile: ldecile, LowerQuartile: lquartile,
			Median: median, UpperQuartile: uquartile, UpperDecile: udecile,
		}
		if rowTotal > 0 {
			ps.APct = 100 * float64(a) / rowTotal
			ps.CPct = 100 * float64(c) / rowTotal
			ps.TPct = 100 * float64(t) / rowTotal
			ps.GPct = 100 * float64(g) / rowTotal
			ps.NPct = 100 * float64(n) / rowTotal
		}
		r.Positions[p] = ps

		lowerLim := cfg.Limits
		if float64(lquartile) < lowerLim["quality_base_lower"]["error"] {
			r.Verdicts["quality_base_lower"] = Fail
		} else if r.Verdicts["quality_base_lower"] != Fail && float64(lquartile) < lowerLim["quality_base_lower"]["warn"] {
			r.Verdicts["quality_base_lower"] = worse(r.Verdicts["quality_base_lower"], Warn)
		}
		if float64(median) < lowerLim["quality_base_median"]["error"] {
			r.Verdicts["quality_base_median"] = Fail
		} else if r.Verdicts["quality_base_median"] != Fail && float64(median) < lowerLim["quality_base_median"]["warn"] {
			r.Verdicts["quality_base_median"] = worse(r.Verdicts["quality_base_median"], Warn)
		}

		nPct := ps.NPct
		if nPct > lowerLim["n_content"]["error"] {
			r.Verdicts["n_content"] = Fail
		} else if nPct > lowerLim["n_content"]["warn"] {
			r.Verdicts["n_content"] = worse(r.Verdicts["n_content"], Warn)
		}

		// Reference behavior: the pairwise max is over raw per-base counts,
		// not percentages, compared against the limit scaled by 1/100.
		maxDiff := maxPairwiseDiff(float64(a), float64(c), float64(t), float64(g))
		if maxDiff > lowerLim["sequence"]["error"]/100 {
			r.Verdicts["sequence"] = Fail
		} else if maxDiff > lowerLim["sequence"]["warn"]/100 {
			r.Verdicts["sequence"] = worse(r.Verdicts["sequence"], Warn)
		}
	}
	if _, ok := r.Verdicts["n_content"]; !ok {
		r.Verdicts["n_content"] = Pass
	}
	if _, ok := r.Verdicts["sequence"]; !ok {
		r.Verdicts["sequence"] = Pass
	}

	gc := acc.GCCount
	for i := 1; i < 99; i++ {
		if gc[i] == 0 {
			gc[i] = (gc[i+1] + gc[i-1]) / 2
		}
	}
	r.GCCount = gc
	r.GCDeviation, r.GCTheoretical = gcDeviation(gc)
	if r.GCDeviation >= cfg.Limits["gc_sequence"]["error"] {
		r.Verdicts["gc_sequence"] = Fail
	} else if r.GCDeviation >= cfg.Limits["gc_sequence"]["warn"] {
		r.Verdicts["gc_sequence"] = Warn
	} else {
		r.Verdicts["gc_sequence"] = Pass
	}

	freqOfAvg := lengthFreq(int(r.AvgReadLength))
	r.Verdicts["sequence_length"] = Pass
	if cfg.Limits["sequence_length"]["error"] == 1 {
		if freqOfAvg != acc.NumReads {
			r.Verdicts["sequence_length"] = Warn
		}
		if lengthFreq(0) > 0 {
			r.Verdicts["sequence_length"] = Fail
		}
	}

	var modeVal uint64
	var modeInd int
	for i := 0; i < accumulator.NumQuality; i++ {
		if acc.QualityCount[i] > modeVal {
			modeVal = acc.QualityCount[i]
			modeInd = i
		}
	}
	r.Verdicts["quality_sequence"] = Pass
	if float64(modeInd) < cfg.Limits["quality_sequence"]["warn"] {
		r.Verdicts["quality_sequence"] = Warn
	} else if float64(modeInd) < cfg.Limits["quality_sequence"]["error"] {
		r.Verdicts["quality_sequence"] = Fail
	}

	r.DuplicationBuckets, r.TotalDeduplicatedPct = duplication(acc)
	r.Verdicts["duplication"] = Pass
	if len(r.DuplicationBuckets) > 0 {
		uniqueTotalPct := r.DuplicationBuckets[0].PercentTotal
		if uniqueTotalPct <= cfg.Limits["duplication"]["error"] {
			r.Verdicts["duplication"] = Fail
		} else if uniqueTotalPct <= cfg.Limits["duplication"]["warn"] {
			r.Verdicts["duplication"] = Warn
		}
	}

	r.Overrepresented = overrepresented(acc, cfg)
	r.Verdicts["overrepresented"] = Pass

	r.AdapterNames, r.AdapterByPosition, r.AdapterPositions = adapterContent(acc, cfg)
	r.Verdicts["adapter"] = Pass
	for _, row := range r.AdapterByPosition {
		for _, v := range row {
			if v > cfg.Limits["adapter"]["error"] {
				r.Verdicts["adapter"] = Fail
			} else if r.Verdicts["adapter"] != Fail && v > cfg.Limits["adapter"]["warn"] {
				r.Verdicts["adapter"] = Warn
			}
		}
	}

	r.TileDeviations = tileDeviations(acc, r.Positions)
	r.Verdicts["tile"] = Pass
	for _, td := range r.TileDeviations {
		limit := cfg.Limits["tile"]["error"]
		warnLimit := cfg.Limits["tile"]["warn"]
		threshold := limit
		warnThreshold := warnLimit
		if td.Position >= accumulator.B {
			threshold = -limit
			warnThreshold = -warnLimit
		}
		if td.Deviation <= threshold {
			r.Verdicts["tile"] = Fail
		} else if r.Verdicts["tile"] != Fail && td.Deviation <= warnThreshold {
			r.Verdicts["tile"] = Warn
		}
	}

	r.Verdicts["kmer"] = Pass

	return r
}

func maxPairwiseDiff(a, c, t, g float64) float64 {
	vals := []float64{a, c, t, g}
	max := 0.0
	for i := 0; i < len(vals); i++ {
		for j := i + 1; j < len(vals); j++ {
			d := math.Abs(vals[i] - vals[j])
			if d > max {
				max = d
			}
		}
	}
	return max
}

// gcDeviation computes the weighted-mean ("mode"), (N-1)-divisor stdev,
// a renormalized theoretical normal curve, and the fractional L1
// deviation between gc and that curve.
func gcDeviation(gc [101]uint64) (float64, [101]float64) {
	var mode, numReads float64
	for i := 0; i < 101; i++ {
		mode += float64(i) * float64(gc[i])
		numReads += float64(gc[i])
	}
	if numReads == 0 {
		return 0, [101]float64{}
	}
	mode /= numReads

	var stdev float64
	for i := 0; i < 101; i++ {
		d := mode - float64(i)
		stdev += d * d * float64(gc[i])
	}
	stdev = math.Sqrt(stdev / (numReads - 1))

	var theoretical [101]float64
	var theoreticalSum float64
	for i := 0; i < 101; i++ {
		z := float64(i) - mode
		theoretical[i] = math.Exp(-(z * z) / (2 * stdev * stdev))
		theoreticalSum += theoretical[i]
	}
	for i := 0; i < 101; i++ {
		theoretical[i] = theoretical[i] * numReads / theoreticalSum
	}

	var ans float64
	for i := 0; i < 101; i++ {
		ans += math.Abs(float64(gc[i]) - theoretical[i])
	}
	return ans / numReads, theoretical
}

// duplication groups sequence_count by raw observation frequency,
// applies the corrected-count extrapolation, and buckets the result into
// the 16 reporting slots.
func duplication(acc *accumulator.State) ([]DuplicationBucket, float64) {
	countsByFreq := make(map[uint64]uint64)
	for _, freq := range acc.SequenceCount {
		countsByFreq[freq]++
	}

	// The reference stores the corrected count back into an integer map
	// before summing into buckets, truncating the fractional part.
	corrected := make(map[uint64]float64, len(countsByFreq))
	for freq, numObs := range countsByFreq {
		corrected[freq] = math.Trunc(correctedCount(acc.CountAtLimit, acc.NumReads, freq, numObs))
	}

	labels := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9",
		">10", ">50", ">100", ">500", ">1k", ">5k", ">10k+"}
	buckets := make([]DuplicationBucket, 16)
	for i, l := range labels {
		buckets[i].Label = l
	}

	var seqTotal, seqDedup float64
	for freq, cnt := range corrected {
		slot := int(freq) - 1
		switch {
		case freq >= 10000:
			slot = 15
		case freq >= 5000:
			slot = 14
		case freq >= 1000:
			slot = 13
		case freq >= 500:
			slot = 12
		case freq >= 100:
			slot = 11
		case freq >= 50:
			slot = 10
		case freq >= 10:
			slot = 9
		}
		buckets[slot].PercentDeduplicated += cnt
		buckets[slot].PercentTotal += cnt * float64(freq)
		seqTotal += cnt * float64(freq)
		seqDedup += cnt
	}

	for i := range buckets {
		if seqDedup > 0 {
			buckets[i].PercentDeduplicated = 100 * buckets[i].PercentDeduplicated / seqDedup
		}
		if seqTotal > 0 {
			buckets[i].PercentTotal = 100 * buckets[i].PercentTotal / seqTotal
		}
	}

	var totalDedupPct float64
	if seqTotal > 0 {
		totalDedupPct = 100 * seqDedup / seqTotal
	}
	return buckets, totalDedupPct
}

// correctedCount is C(r, n_obs) from the reference tool's extrapolation:
// an early-exit bails once the running non-observation probability drops
// below the point where further precision stops mattering.
func correctedCount(countAtLimit, numReads, dupLevel, numObs uint64) float64 {
	if countAtLimit == numReads {
		return float64(numObs)
	}
	if numReads-numObs < countAtLimit {
		return float64(numObs)
	}

	nObs := float64(numObs)
	limitOfCaring := 1.0 - (nObs / (nObs + 0.01))
	pNotSeeingAtLimit := 1.0
	for i := uint64(0); i < countAtLimit; i++ {
		pNotSeeingAtLimit *= float64(numReads-i-dupLevel) / float64(numReads-i)
		if pNotSeeingAtLimit < limitOfCaring {
			pNotSeeingAtLimit = 0
			break
		}
	}
	return nObs / (1 - pNotSeeingAtLimit)
}

// overrepresented selects (sequence, count) pairs clearing the
// configured minimum fraction and sorts them by descending count.
func overrepresented(acc *accumulator.State, cfg *config.Config) []OverrepresentedSeq {
	cutoff := float64(acc.NumReads) * cfg.OverrepMinFrac
	var out []OverrepresentedSeq
	for seq, count := range acc.SequenceCount {
		if float64(count) > cutoff {
			out = append(out, OverrepresentedSeq{
				Sequence:    seq,
				Count:       count,
				Percent:     100 * float64(count) / float64(acc.NumReads),
				Contaminant: config.MatchingContaminant(cfg.Contaminants, seq),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// adapterContent builds, per sampled position with nonzero cumulative
// length frequency, the running total of k-mer hits for each configured
// adapter prefix, converted to a percentage of total reads.
func adapterContent(acc *accumulator.State, cfg *config.Config) ([]string, [][]float64, []int) {
	names := make([]string, len(cfg.Adapters))
	for i, a := range cfg.Adapters {
		names[i] = a.Name
	}
	if len(cfg.Adapters) == 0 {
		return names, nil, nil
	}

	span := int(acc.KmerMask) + 1
	limit := acc.KmerPositions

	var rows [][]float64
	var positions []int
	var prev []float64

	var cumulative uint64
	var lengthFreqSlice []uint64
	maxLen := acc.MaxReadLength
	lengthFreqSlice = make([]uint64, maxLen)
	for p := 0; p < maxLen; p++ {
		if p < accumulator.B {
			lengthFreqSlice[p] = acc.ReadLengthFreq[p]
		} else if p-accumulator.B < len(acc.LongReadLengthFreq) {
			lengthFreqSlice[p] = acc.LongReadLengthFreq[p-accumulator.B]
		}
	}
	for p := 0; p < maxLen; p++ {
		cumulative += lengthFreqSlice[p]
	}
	cumulativeAt := make([]uint64, maxLen)
	for p := 0; p < maxLen; p++ {
		cumulativeAt[p] = cumulative
		cumulative -= lengthFreqSlice[p]
	}

	for p := 0; p < limit && p < maxLen; p++ {
		if cumulativeAt[p] == 0 {
			continue
		}
		// raw holds the running cumulative k-mer hit count per adapter;
		// it carries forward position to position in raw units so the
		// percentage conversion below never compounds across positions.
		raw := make([]float64, len(cfg.Adapters))
		if prev != nil {
			copy(raw, prev)
		}
		for i, ad := range cfg.Adapters {
			idx := p*span + int(ad.Hash&acc.KmerMask)
			if idx < len(acc.KmerCount) {
				raw[i] += float64(acc.KmerCount[idx])
			}
		}

		row := make([]float64, len(cfg.Adapters))
		for i, v := range raw {
			if acc.NumReads > 0 {
				row[i] = v * 100 / float64(acc.NumReads)
			}
		}
		rows = append(rows, row)
		positions = append(positions, p)
		prev = raw
	}

	return names, rows, positions
}

// tileDeviations computes, for every tile with at least one sampled read
// and every position, the stored deviation observed/count - mean. The
// long-tier sign flip lives only in the verdict check in Summarize, not
// in this stored value.
func tileDeviations(acc *accumulator.State, positions []PositionStats) []TileDeviation {
	var out []TileDeviation
	// Every tile the run observed at least once gets a deviation entry at
	// every position, not just the positions it happened to reach — a
	// tile that never reached position p still reports 0/count - mean[p].
	for tile, count := range acc.TileCount {
		if count == 0 {
			continue
		}
		for p := range positions {
			sum := acc.TileQualitySum[accumulator.TileKey(p, tile)]
			dev := float64(sum)/float64(count) - positions[p].Mean
			out = append(out, TileDeviation{Position: p, Tile: tile, Deviation: dev})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Tile < out[j].Tile
	})
	return out
}
