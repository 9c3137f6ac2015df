// Package deepgramws implements the capture.Recognizer capability
// against a Deepgram-style streaming transcription websocket.
package deepgramws

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Omashka/circles-sub001/internal/capture"
)

const (
	handshakeTimeout = 10 * time.Second

	// DefaultSampleRate is the PCM rate the audio source captures at.
	DefaultSampleRate = 16000
)

// Config holds recognizer connection settings.
type Config struct {
	URL        string // ws:// or wss:// endpoint
	APIKey     string
	SampleRate int // 0 means DefaultSampleRate
}

// Provider opens streaming recognition sessions over websocket.
type Provider struct {
	cfg Config
}

var _ capture.Recognizer = (*Provider)(nil)

// NewProvider creates a websocket recognizer provider.
func NewProvider(cfg Config) *Provider {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	return &Provider{cfg: cfg}
}

// Start dials the transcription endpoint and begins a streaming
// exchange. A dial failure means the recognizer is unusable (typically
// no network) and surfaces as such to the session.
func (p *Provider) Start(ctx context.Context) (capture.RecognitionStream, error) {
	if p.cfg.URL == "" {
		return nil, fmt.Errorf("recognizer URL not configured")
	}

	url := fmt.Sprintf("%s?encoding=linear16&sample_rate=%d&interim_results=true",
		strings.TrimSuffix(p.cfg.URL, "/"), p.cfg.SampleRate)

	header := http.Header{}
	if p.cfg.APIKey != "" {
		header.Set("Authorization", "Token "+p.cfg.APIKey)
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial recognizer: %w", err)
	}

	s := &stream{
		conn:    conn,
		results: make(chan capture.TranscriptEvent, 16),
	}
	go s.readLoop()
	return s, nil
}

// resultMessage is the subset of the server's result envelope we need.
type resultMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type closeStreamMessage struct {
	Type string `json:"type"`
}

type stream struct {
	conn    *websocket.Conn
	results chan capture.TranscriptEvent

	writeMu  sync.Mutex
	finished bool

	// segments are finalized transcript pieces; interim is the live
	// tail being revised by the recognizer.
	segments []string
	interim  string

	cancelOnce sync.Once
}

var _ capture.RecognitionStream = (*stream)(nil)

// Feed sends one buffer of samples as linear16 PCM.
func (s *stream) Feed(samples []float32) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.finished {
		return nil
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, pcm16(samples)); err != nil {
		return fmt.Errorf("feed recognizer: %w", err)
	}
	return nil
}

// Finish tells the server no more audio is coming. The server flushes a
// final result for already-buffered audio, then closes the exchange.
// Safe to call after the final result has already arrived.
func (s *stream) Finish() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.finished {
		return
	}
	s.finished = true
	msg, _ := json.Marshal(closeStreamMessage{Type: "CloseStream"})
	_ = s.conn.WriteMessage(websocket.TextMessage, msg)
}

// Cancel abandons the exchange immediately.
func (s *stream) Cancel() {
	s.cancelOnce.Do(func() {
		s.writeMu.Lock()
		s.finished = true
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
}

func (s *stream) Results() <-chan capture.TranscriptEvent {
	return s.results
}

func (s *stream) readLoop() {
	defer close(s.results)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			// Normal close after CloseStream delivers the final event
			// below; an abrupt close just ends the channel and the
			// session falls back to the accumulated transcript.
			return
		}

		var msg resultMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "Results":
			text := ""
			if len(msg.Channel.Alternatives) > 0 {
				text = msg.Channel.Alternatives[0].Transcript
			}
			if msg.IsFinal {
				if text != "" {
					s.segments = append(s.segments, text)
				}
				s.interim = ""
			} else {
				s.interim = text
			}
			s.results <- capture.TranscriptEvent{Text: s.accumulated()}

		case "Metadata":
			// Sent after CloseStream once all audio is transcribed.
			s.results <- capture.TranscriptEvent{Text: s.accumulated(), IsFinal: true}
			_ = s.conn.Close()
			return
		}
	}
}

func (s *stream) accumulated() string {
	parts := s.segments
	if s.interim != "" {
		parts = append(append([]string{}, s.segments...), s.interim)
	}
	return strings.Join(parts, " ")
}

// pcm16 converts float32 samples to little-endian 16-bit PCM, clamped
// to avoid overflow.
func pcm16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		if v > 1.0 {
			v = 1.0
		}
		if v < -1.0 {
			v = -1.0
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*32767.0)))
	}
	return out
}
