package accumulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(s *State, seq, qual string, tile uint32, tileValid bool) {
	s.BeginRecord(tile, tileValid)
	for i := 0; i < len(seq); i++ {
		s.ObserveBase(seq[i])
	}
	s.EndSequence()
	for i := 0; i < len(qual); i++ {
		s.ObserveQuality(qual[i], 33)
	}
	s.EndQuality()
	s.EndRecord()
}

func TestNucIndex(t *testing.T) {
	t.Parallel()
	assert.Equal(t, uint64(0), NucIndex('A'))
	assert.Equal(t, uint64(1), NucIndex('C'))
	assert.Equal(t, uint64(2), NucIndex('T'))
	assert.Equal(t, uint64(3), NucIndex('G'))
}

func TestObserveBase_NResetsKmerRunAndSkipsKmerCount(t *testing.T) {
	t.Parallel()
	s := New(3)
	s.BeginRecord(0, false)
	for _, b := range []byte("ACN") {
		s.ObserveBase(b)
	}
	s.ObserveBase('A')
	s.ObserveBase('C')

	assert.Equal(t, uint64(1), s.NBaseCount[2])
	var total uint64
	for _, c := range s.KmerCount {
		total += c
	}
	assert.Zero(t, total, "the N reset leaves only 2 non-N bases since, short of the run length K=3")
}

func TestObserveBase_CompletesKmerAfterFullRun(t *testing.T) {
	t.Parallel()
	s := New(2)
	s.BeginRecord(0, false)
	for _, b := range []byte("ACGT") {
		s.ObserveBase(b)
	}
	var total uint64
	for _, c := range s.KmerCount {
		total += c
	}
	assert.Equal(t, uint64(3), total, "once the run reaches K, every subsequent position also completes a k-mer")
}

func TestSampleKmerAndSampleTile_Cadence(t *testing.T) {
	t.Parallel()
	s := New(4)
	for i := uint64(0); i < 64; i++ {
		wantKmer := i&kmerSampleMask == 0
		wantTile := i&tileSampleMask == 0
		assert.Equal(t, wantKmer, s.SampleKmer(), "record %d kmer sampling", i)
		assert.Equal(t, wantTile, s.SampleTile(), "record %d tile sampling", i)
		s.NumReads++
	}
}

func TestEndRecord_TileCountOnlyWhenSampledAndValid(t *testing.T) {
	t.Parallel()
	s := New(4)
	feed(s, "ACGT", "IIII", 7, true)
	assert.Equal(t, uint64(1), s.TileCount[7])

	feed(s, "ACGT", "IIII", 9, false)
	assert.Zero(t, s.TileCount[9])
}

func TestLongTier_GrowsInLockstepPastB(t *testing.T) {
	t.Parallel()
	s := New(4)
	length := B + 5
	seq := make([]byte, length)
	qual := make([]byte, length)
	for i := range seq {
		seq[i] = "ACGT"[i%4]
		qual[i] = 'I'
	}
	feed(s, string(seq), string(qual), 0, false)

	require.Len(t, s.LongReadLengthFreq, 5)
	require.Len(t, s.LongBaseCount, 5)
	require.Len(t, s.LongBaseQualitySum, 5)
	require.Len(t, s.LongPositionQualityCount, 5)

	assert.Equal(t, uint64(1), s.LongReadLengthFreq[4], "length-1005 read lands in the last long-tier slot")
	assert.Equal(t, length, s.MaxReadLength)

	lastIdx := NucIndex(seq[length-1])
	assert.Equal(t, uint64(1), s.LongBaseCount[4][lastIdx])
}

func TestAllNRecord_NoGCNoKmerCount(t *testing.T) {
	t.Parallel()
	s := New(3)
	feed(s, "NNNN", "IIII", 0, false)

	assert.Equal(t, uint64(4), s.NBaseCount[0]+s.NBaseCount[1]+s.NBaseCount[2]+s.NBaseCount[3])
	assert.Equal(t, uint64(1), s.GCCount[0], "an all-N read has zero GC bases out of its length")
	var total uint64
	for _, c := range s.KmerCount {
		total += c
	}
	assert.Zero(t, total)
}

func TestEndRecord_DuplicationBookkeepingUnderCutoff(t *testing.T) {
	t.Parallel()
	s := New(4)
	feed(s, "AAAA", "IIII", 0, false)
	assert.Equal(t, 1, s.NumUniqueSeen)
	assert.Equal(t, uint64(0), s.CountAtLimit, "CountAtLimit holds NumReads as observed before the increment")

	feed(s, "AAAA", "IIII", 0, false)
	assert.Equal(t, 1, s.NumUniqueSeen, "repeat key does not grow the unique count")
	assert.Equal(t, uint64(1), s.CountAtLimit, "repeat key under the cutoff still advances CountAtLimit")

	feed(s, "CCCC", "IIII", 0, false)
	assert.Equal(t, 2, s.NumUniqueSeen)
	assert.Equal(t, uint64(2), s.CountAtLimit)
}

func TestEndRecord_FreezesCountAtLimitOnceCutoffReached(t *testing.T) {
	t.Parallel()
	s := New(4)

	// Drive EndRecord's bookkeeping directly against distinct keys rather
	// than through the full per-base API, since DupUniqueCutoff is fixed
	// at 100000 and only the key/count bookkeeping is under test here.
	for i := 0; i < DupUniqueCutoff; i++ {
		key := []byte{byte(i), byte(i >> 8), byte(i >> 16)}
		s.recPos = len(key)
		copy(s.nucFixed[:len(key)], key)
		s.tileValid = false
		s.EndRecord()
	}
	require.Equal(t, DupUniqueCutoff, s.NumUniqueSeen)
	frozen := s.CountAtLimit

	// One more distinct key: the cutoff has been hit, so neither the
	// unique count nor CountAtLimit may move for a brand-new key.
	key := []byte{0xff, 0xff, 0xff}
	s.recPos = len(key)
	copy(s.nucFixed[:len(key)], key)
	s.EndRecord()
	assert.Equal(t, DupUniqueCutoff, s.NumUniqueSeen)
	assert.Equal(t, frozen, s.CountAtLimit, "CountAtLimit must freeze once NumUniqueSeen reaches the cutoff")

	// A repeat of an already-seen key also must not move CountAtLimit,
	// since NumUniqueSeen is no longer < DupUniqueCutoff.
	repeatKey := []byte{0, 0, 0}
	s.recPos = len(repeatKey)
	copy(s.nucFixed[:len(repeatKey)], repeatKey)
	s.EndRecord()
	assert.Equal(t, frozen, s.CountAtLimit)
}

func TestTileKeyRoundTrip(t *testing.T) {
	t.Parallel()
	pos, tile := SplitTileKey(TileKey(42, 17))
	assert.Equal(t, 42, pos)
	assert.Equal(t, uint32(17), tile)
}
