package qualityenc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		quals [][]byte
		want Encoding
	}{
		{"empty input defaults to phred33", nil, EncodingPhred33},
		{"low byte is definitely phred33", [][]byte{[]byte("!III")}, EncodingPhred33},
		{"all high bytes is phred64", [][]byte{[]byte("ghij")}, EncodingPhred64},
		{"ambiguous range defaults to phred33", [][]byte{[]byte("<=>?")}, EncodingPhred33},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DetectEncoding(tt.quals))
		})
	}
}

func TestEncodingString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Phred+33", EncodingPhred33.String())
	assert.Equal(t, "Phred+64", EncodingPhred64.String())
}
