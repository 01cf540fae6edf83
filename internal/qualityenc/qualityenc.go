// Package qualityenc detects the Phred encoding scheme of quality strings.
//
// The engine subtracts the configuration's quality offset (33, Phred+33, by
// default) from every quality byte, so a Phred+64 file read with that
// offset gives shifted quality values, or a malformed-record error once a
// byte lands past the quality table. DetectEncoding gives the CLI a cheap
// way to pick the offset from a sample of the input before the scan runs.
package qualityenc

// Phred encoding offsets.
const (
	Phred33Offset = 33
	Phred64Offset = 64
)

// Encoding identifies a Phred quality encoding scheme.
type Encoding uint8

// Recognized encodings.
const (
	EncodingPhred33 Encoding = iota // Sanger/Illumina 1.8+ (offset 33)
	EncodingPhred64                 // Illumina 1.3-1.7 (offset 64)
)

// DetectEncoding scans quality bytes sampled from a file and returns the
// likely encoding.
//
// If any quality byte is below ';' (ASCII 59), the encoding is definitely
// Phred+33 since Phred+64 cannot produce a byte that low. If the minimum
// byte seen is at least '@' (ASCII 64), the encoding is Phred+64. The
// ambiguous range in between defaults to Phred+33, the configuration's
// assumed offset.
func DetectEncoding(qualities [][]byte) Encoding {
	minByte := byte(255)

	for _, qual := range qualities {
		for _, b := range qual {
			if b < minByte {
				minByte = b
			}
			if b < 59 {
				return EncodingPhred33
			}
		}
	}

	if minByte == 255 {
		return EncodingPhred33
	}

	if minByte >= 64 {
		return EncodingPhred64
	}

	return EncodingPhred33
}

// String renders the encoding's conventional name.
func (e Encoding) String() string {
	if e == EncodingPhred64 {
		return "Phred+64"
	}
	return "Phred+33"
}
