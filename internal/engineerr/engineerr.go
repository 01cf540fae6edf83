// Package engineerr defines the engine's four error kinds. Call sites wrap
// one of these sentinels with fmt.Errorf("...: %w", ...) so callers can
// classify failures with errors.Is while still getting a human-readable
// message naming the offending artifact.
package engineerr

import "errors"

var (
	// ErrConfig marks a malformed limits/adapters/contaminants file, an
	// unknown metric or instruction, a non-alphabet adapter character, or
	// a k-mer length outside [2, 10].
	ErrConfig = errors.New("config error")

	// ErrIO marks an open/map/decompress/read/write failure.
	ErrIO = errors.New("io error")

	// ErrMalformedRecord marks record truncation, a sequence/quality
	// length mismatch, a quality byte outside [0, Q) after offset
	// subtraction, or an unexpected separator.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrInvariant marks an internal check failure that should never
	// fire in a correct build (e.g. a non-power-of-two where a shift is
	// required).
	ErrInvariant = errors.New("invariant violation")
)
