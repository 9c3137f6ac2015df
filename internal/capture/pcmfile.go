package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"
)

// PCMFileSource streams 16-bit little-endian mono PCM from a file in
// real time, converting to the float32 buffers the session consumes.
// It stands in for a live microphone wherever one is unavailable.
type PCMFileSource struct {
	Path       string
	SampleRate int
	// ChunkMS is the buffer granularity in milliseconds; 100 if zero.
	ChunkMS int

	stop     sync.Once
	stopChan chan struct{}
}

var _ AudioSource = (*PCMFileSource)(nil)

// NewPCMFileSource creates a source for the given raw PCM file.
func NewPCMFileSource(path string, sampleRate int) *PCMFileSource {
	return &PCMFileSource{
		Path:       path,
		SampleRate: sampleRate,
		stopChan:   make(chan struct{}),
	}
}

// Start begins streaming to sink. It returns once the file is open;
// delivery happens on a background goroutine paced to real time.
func (s *PCMFileSource) Start(ctx context.Context, sink func(Buffer)) error {
	f, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("open audio file: %w", err)
	}

	chunkMS := s.ChunkMS
	if chunkMS <= 0 {
		chunkMS = 100
	}
	samplesPerChunk := s.SampleRate * chunkMS / 1000

	go func() {
		defer f.Close()
		ticker := time.NewTicker(time.Duration(chunkMS) * time.Millisecond)
		defer ticker.Stop()

		raw := make([]byte, samplesPerChunk*2)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
			}

			n, err := io.ReadFull(f, raw)
			if n == 0 {
				return
			}

			samples := make([]float32, n/2)
			var peak float64
			for i := range samples {
				v := float32(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768.0
				samples[i] = v
				if abs := math.Abs(float64(v)); abs > peak {
					peak = abs
				}
			}
			sink(Buffer{Samples: samples, Peak: peak})

			if err != nil {
				return
			}
		}
	}()
	return nil
}

// Stop halts streaming. Safe to call more than once.
func (s *PCMFileSource) Stop() error {
	s.stop.Do(func() { close(s.stopChan) })
	return nil
}

// GrantedProber is a PermissionProber that always grants, for
// environments where OS permission prompts do not apply.
type GrantedProber struct{}

func (GrantedProber) MicrophoneAccess(context.Context) (bool, error)    { return true, nil }
func (GrantedProber) TranscriptionAccess(context.Context) (bool, error) { return true, nil }
