// Package capture owns one audio-capture and live-transcription
// lifecycle: a bounded recording session that emits incremental
// transcript text and a final-text event under a hard time limit.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// MaxRecordingDuration is the hard ceiling on a capture session.
const MaxRecordingDuration = 180 * time.Second

// State models the session lifecycle.
type State string

const (
	StateIdle                  State = "idle"
	StateRequestingPermissions State = "requesting_permissions"
	StateRecording             State = "recording"
	StateFinalizing            State = "finalizing"
	StateTerminated            State = "terminated"
)

// Outcome qualifies a terminated session.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeSuccess   Outcome = "success"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeError     Outcome = "error"
)

// Terminal capture errors.
var (
	// ErrPermissionsDenied means microphone or transcription access
	// was refused.
	ErrPermissionsDenied = errors.New("capture: permissions denied")

	// ErrRecognizerUnavailable means the transcription capability is
	// not usable, e.g. no network for a server-backed recognizer.
	ErrRecognizerUnavailable = errors.New("capture: recognizer unavailable")

	// ErrSessionActive is returned when a start request arrives while
	// another session is still live.
	ErrSessionActive = errors.New("capture: a session is already active")
)

// StreamError is a generic capture failure. Terminal.
type StreamError struct {
	Msg string
	Err error
}

func (e *StreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture: stream error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("capture: stream error: %s", e.Msg)
}

func (e *StreamError) Unwrap() error { return e.Err }

// Buffer is one chunk of captured audio. Peak is the clipped [0,1]
// amplitude computed by the source while copying samples, so the
// session does constant work per buffer.
type Buffer struct {
	Samples []float32
	Peak    float64
}

// TranscriptEvent is incremental or final recognizer output. Text is
// the full best transcript so far; a final event supersedes all
// incremental updates.
type TranscriptEvent struct {
	Text    string
	IsFinal bool
}

// PermissionProber checks the two independent capability grants needed
// before recording can begin.
type PermissionProber interface {
	MicrophoneAccess(ctx context.Context) (bool, error)
	TranscriptionAccess(ctx context.Context) (bool, error)
}

// AudioSource is a real-time audio stream. Start must not block; the
// sink is invoked per buffer from the source's delivery context. Stop
// halts buffer delivery immediately and releases the device. Stop is
// safe to call more than once.
type AudioSource interface {
	Start(ctx context.Context, sink func(Buffer)) error
	Stop() error
}

// Recognizer is an opaque speech-to-text capability: it produces
// incremental text plus a terminal final result.
type Recognizer interface {
	Start(ctx context.Context) (RecognitionStream, error)
}

// RecognitionStream is one live transcription exchange. After Finish,
// the recognizer delivers a final result for already-buffered audio and
// closes Results. Cancel abandons in-flight work.
type RecognitionStream interface {
	Feed(samples []float32) error
	Finish()
	Cancel()
	Results() <-chan TranscriptEvent
}

// EventKind identifies a session notification.
type EventKind string

const (
	// EventTranscriptUpdated fires on each incremental transcript change.
	EventTranscriptUpdated EventKind = "transcript_updated"
	// EventLevelUpdated carries the low-frequency audio level gauge.
	EventLevelUpdated EventKind = "level_updated"
	// EventDurationReached fires exactly once when the recording
	// ceiling expires, before teardown begins.
	EventDurationReached EventKind = "duration_reached"
	// EventStopped carries the final transcript. Cancel yields empty
	// text; normal stop yields the last known transcript.
	EventStopped EventKind = "stopped"
	// EventFailed carries a terminal capture error.
	EventFailed EventKind = "failed"
)

// Event is a typed session notification, delivered in order on a single
// channel.
type Event struct {
	Kind       EventKind
	Transcript string
	Level      float64
	Err        error
}
