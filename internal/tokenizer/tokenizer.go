// Package tokenizer drives one Cursor through a sequence of logical
// records, handing each byte to an accumulator.State in the order the
// statistics core expects: sequence bytes first, then quality bytes
// paired against the already-buffered nucleotide at the same position.
// It also owns tile extraction, since that's purely a header-parsing
// concern tied to the record format rather than to accumulation.
package tokenizer

import (
	"fmt"
	"strconv"
	"strings"

	"fqcstat/internal/accumulator"
	"fqcstat/internal/engineerr"
	"fqcstat/internal/source"
)

// Format selects how a record's header/sequence/quality fields are laid
// out on the wire.
type Format int

const (
	// FormatPlain is the four-line "@header / sequence / + / quality"
	// layout.
	FormatPlain Format = iota
	// FormatAlign is the tab-delimited alignment layout: QNAME, eight
	// metadata fields, then SEQ and QUAL.
	FormatAlign
)

// tileMax is T from the accumulator's tile table: values at or above
// this are silently dropped.
const tileMax = accumulator.MaxTileID

// Tokenizer reads logical records from a Cursor and feeds an
// accumulator.State.
type Tokenizer struct {
	cur    source.Cursor
	format Format
	offset int

	tileDisabled   bool
	tileSplit      int // 0 = undetermined, 2 or 4 once resolved
	tileSplitKnown bool
}

// New wraps a Cursor for the given record format and quality offset.
func New(cur source.Cursor, format Format, qualityOffset int) *Tokenizer {
	return &Tokenizer{cur: cur, format: format, offset: qualityOffset}
}

// Next consumes one logical record and feeds it to acc. ok is false when
// the cursor has no more input (a clean end of stream, not an error).
func (t *Tokenizer) Next(acc *accumulator.State) (ok bool, err error) {
	if !t.cur.More() {
		return false, nil
	}

	header, headerTerminated := t.readHeader()
	if len(header) == 0 && !headerTerminated {
		return false, nil
	}
	if !headerTerminated {
		return false, fmt.Errorf("truncated header line: %w", engineerr.ErrMalformedRecord)
	}

	tile, tileValid := t.extractTile(header, acc.SampleTile())
	acc.BeginRecord(tile, tileValid)

	if t.format == FormatAlign {
		if err := t.skipAlignMetadata(); err != nil {
			return false, err
		}
	}

	seq, _ := t.cur.ReadField()
	for _, b := range seq {
		acc.ObserveBase(b)
	}
	length := acc.EndSequence()

	if t.format == FormatPlain {
		if _, terminated := t.cur.ReadField(); !terminated && !t.cur.More() {
			return false, fmt.Errorf("truncated plus line: %w", engineerr.ErrMalformedRecord)
		}
	}

	qual, _ := t.cur.ReadLine()
	if len(qual) != length {
		return false, fmt.Errorf("sequence/quality length mismatch (%d vs %d): %w",
			length, len(qual), engineerr.ErrMalformedRecord)
	}
	for _, b := range qual {
		if !acc.ObserveQuality(b, t.offset) {
			return false, fmt.Errorf("quality byte %q out of range: %w", b, engineerr.ErrMalformedRecord)
		}
	}
	acc.EndQuality()
	acc.EndRecord()

	return true, nil
}

// readHeader consumes the record identifier. The plain format's header is
// a whole newline-terminated line; the alignment format's QNAME is just
// the first tab field of the record line, so it must stop at the
// separator rather than swallowing the rest of the record.
func (t *Tokenizer) readHeader() ([]byte, bool) {
	if t.format == FormatAlign {
		return t.cur.ReadField()
	}
	return t.cur.ReadLine()
}

// skipAlignMetadata discards the eight tab-delimited fields between
// QNAME and SEQ in the alignment variant.
func (t *Tokenizer) skipAlignMetadata() error {
	for i := 0; i < 8; i++ {
		if _, terminated := t.cur.ReadField(); !terminated && !t.cur.More() {
			return fmt.Errorf("truncated alignment record: %w", engineerr.ErrMalformedRecord)
		}
	}
	return nil
}

// extractTile implements the colon-count split-point heuristic: resolved
// once from the first sampled header, then reused for every later
// sampled record.
func (t *Tokenizer) extractTile(header []byte, sampled bool) (uint32, bool) {
	if !sampled || t.tileDisabled {
		return 0, false
	}

	fields := strings.Split(string(header), ":")

	if !t.tileSplitKnown {
		switch {
		case len(fields) >= 7:
			t.tileSplit = 4
		case len(fields) >= 5:
			t.tileSplit = 2
		default:
			t.tileDisabled = true
			return 0, false
		}
		t.tileSplitKnown = true
	}

	if t.tileSplit >= len(fields) {
		return 0, false
	}
	value, err := strconv.ParseUint(fields[t.tileSplit], 10, 32)
	if err != nil || value >= tileMax {
		return 0, false
	}
	return uint32(value), true
}
