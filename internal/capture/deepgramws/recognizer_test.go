package deepgramws

import (
	"bytes"
	"testing"
)

func TestPCM16Encoding(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		want    []byte
	}{
		{"silence", []float32{0}, []byte{0x00, 0x00}},
		{"full positive", []float32{1.0}, []byte{0xff, 0x7f}},
		{"full negative", []float32{-1.0}, []byte{0x01, 0x80}},
		{"clips above one", []float32{2.5}, []byte{0xff, 0x7f}},
		{"clips below minus one", []float32{-2.5}, []byte{0x01, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pcm16(tt.samples); !bytes.Equal(got, tt.want) {
				t.Errorf("pcm16(%v) = %x, want %x", tt.samples, got, tt.want)
			}
		})
	}
}

func TestPCM16Length(t *testing.T) {
	samples := make([]float32, 160)
	if got := len(pcm16(samples)); got != 320 {
		t.Errorf("encoded length = %d, want 2 bytes per sample", got)
	}
}
