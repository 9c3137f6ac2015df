package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// levelEmitInterval throttles level-gauge events so the consumer sees a
// low-frequency gauge, not one event per audio buffer.
const levelEmitInterval = 100 * time.Millisecond

// Config tunes a session. The zero value is the production default.
type Config struct {
	// MaxDuration is the recording ceiling; 0 means MaxRecordingDuration.
	MaxDuration time.Duration
}

// Deps are the collaborators a session drives.
type Deps struct {
	Permissions PermissionProber
	Audio       AudioSource
	Recognizer  Recognizer
	Logger      *slog.Logger
}

type ctlKind int

const (
	ctlStop ctlKind = iota
	ctlCancel
	ctlTimer
	ctlSourceError
)

type ctlMsg struct {
	kind ctlKind
	err  error
}

// Session is one bounded recording+transcription lifecycle. All state
// transitions happen on the session's run goroutine; every subsystem
// (audio buffers, recognizer results, timer expiry, stop requests)
// publishes onto session-owned channels that the run loop consumes
// sequentially, so transitions are never interleaved.
type Session struct {
	id        string
	cfg       Config
	audio     AudioSource
	stream    RecognitionStream
	logger    *slog.Logger
	startedAt time.Time

	inbox   chan Buffer
	control chan ctlMsg
	events  chan Event
	done    chan struct{}

	timer    *time.Timer
	teardown sync.Once

	mu         sync.Mutex
	state      State
	outcome    Outcome
	transcript string
	level      float64
	dropped    int
}

// Start requests both capability grants concurrently, allocates the
// audio stream and the recognition stream, and begins recording. It
// returns a terminal error when permissions are denied or the
// recognizer is unusable.
func Start(ctx context.Context, deps Deps, cfg Config) (*Session, error) {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = MaxRecordingDuration
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		id:      uuid.New().String(),
		cfg:     cfg,
		audio:   deps.Audio,
		logger:  logger,
		inbox:   make(chan Buffer, 256),
		control: make(chan ctlMsg, 8),
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
		state:   StateRequestingPermissions,
	}

	if err := requestPermissions(ctx, deps.Permissions); err != nil {
		s.setTerminated(OutcomeError)
		return nil, err
	}

	stream, err := deps.Recognizer.Start(ctx)
	if err != nil {
		s.setTerminated(OutcomeError)
		return nil, fmt.Errorf("%w: %v", ErrRecognizerUnavailable, err)
	}
	s.stream = stream

	// Transcript resets to empty on every recording start.
	s.mu.Lock()
	s.transcript = ""
	s.state = StateRecording
	s.startedAt = time.Now()
	s.mu.Unlock()

	if err := deps.Audio.Start(ctx, s.deliverBuffer); err != nil {
		stream.Cancel()
		s.setTerminated(OutcomeError)
		return nil, &StreamError{Msg: "start audio stream", Err: err}
	}

	s.timer = time.AfterFunc(cfg.MaxDuration, func() {
		s.control <- ctlMsg{kind: ctlTimer}
	})

	logger.Info("capture session started", "session_id", s.id, "max_duration", cfg.MaxDuration)
	go s.run()
	return s, nil
}

// requestPermissions fetches the two grants concurrently; either denial
// or probe failure is terminal.
func requestPermissions(ctx context.Context, probe PermissionProber) error {
	type grant struct {
		ok  bool
		err error
	}
	micCh := make(chan grant, 1)
	trCh := make(chan grant, 1)

	go func() {
		ok, err := probe.MicrophoneAccess(ctx)
		micCh <- grant{ok, err}
	}()
	go func() {
		ok, err := probe.TranscriptionAccess(ctx)
		trCh <- grant{ok, err}
	}()

	mic, tr := <-micCh, <-trCh
	if mic.err != nil || tr.err != nil || !mic.ok || !tr.ok {
		return ErrPermissionsDenied
	}
	return nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// StartedAt returns the recording start timestamp.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Events returns the session's ordered notification channel. It closes
// after the terminal event is delivered.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed once the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Outcome returns how the session terminated, or OutcomeNone while live.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Transcript returns the accumulated transcript so far.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

// Level returns the current audio level gauge in [0,1].
func (s *Session) Level() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// Stop requests a normal finalize: capture ends now, but the session
// does not terminate until the recognizer delivers its last result for
// the already-buffered audio.
func (s *Session) Stop() {
	select {
	case s.control <- ctlMsg{kind: ctlStop}:
	case <-s.done:
	}
}

// Cancel terminates immediately, discarding the transcript. The final
// event fires with empty text.
func (s *Session) Cancel() {
	select {
	case s.control <- ctlMsg{kind: ctlCancel}:
	case <-s.done:
	}
}

// deliverBuffer is the audio source sink. It must never block the
// real-time delivery context; when the session is backed up the buffer
// is dropped and counted.
func (s *Session) deliverBuffer(b Buffer) {
	select {
	case s.inbox <- b:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
	}
}

// FailSource reports an asynchronous capture failure from the audio
// source, terminating the session.
func (s *Session) FailSource(err error) {
	select {
	case s.control <- ctlMsg{kind: ctlSourceError, err: err}:
	case <-s.done:
	}
}

// run is the single consumer of all session input. Control messages
// take priority over buffered audio.
func (s *Session) run() {
	defer close(s.events)
	lastLevelEmit := time.Time{}

	for {
		// Drain control first so stop/cancel are not starved by audio.
		select {
		case m := <-s.control:
			if s.handleControl(m) {
				return
			}
			continue
		default:
		}

		select {
		case m := <-s.control:
			if s.handleControl(m) {
				return
			}
		case b := <-s.inbox:
			s.handleBuffer(b, &lastLevelEmit)
		case ev, ok := <-s.stream.Results():
			if s.handleResult(ev, ok) {
				return
			}
		}
	}
}

// handleControl returns true when the session terminated.
func (s *Session) handleControl(m ctlMsg) bool {
	switch m.kind {
	case ctlCancel:
		// Same teardown as stop, but skips waiting for a final result.
		s.stream.Cancel()
		s.release()
		s.mu.Lock()
		s.transcript = ""
		s.mu.Unlock()
		s.emit(Event{Kind: EventStopped, Transcript: ""})
		s.finish(OutcomeCancelled)
		return true

	case ctlTimer:
		if s.State() != StateRecording {
			return false
		}
		s.emit(Event{Kind: EventDurationReached})
		s.beginFinalize()
		return false

	case ctlStop:
		if s.State() != StateRecording {
			return false
		}
		s.beginFinalize()
		return false

	case ctlSourceError:
		s.stream.Cancel()
		s.release()
		s.emit(Event{Kind: EventFailed, Err: &StreamError{Msg: "audio source failed", Err: m.err}})
		s.finish(OutcomeError)
		return true
	}
	return false
}

// beginFinalize stops audio capture but leaves the recognition stream
// to finish naturally over the already-buffered audio.
func (s *Session) beginFinalize() {
	s.mu.Lock()
	s.state = StateFinalizing
	s.mu.Unlock()

	if err := s.audio.Stop(); err != nil {
		s.logger.Warn("stopping audio stream", "session_id", s.id, "error", err)
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.stream.Finish()
}

func (s *Session) handleBuffer(b Buffer, lastLevelEmit *time.Time) {
	if s.State() != StateRecording {
		return
	}

	if err := s.stream.Feed(b.Samples); err != nil {
		s.control <- ctlMsg{kind: ctlSourceError, err: err}
		return
	}

	level := clipLevel(b.Peak)
	s.mu.Lock()
	s.level = level
	s.mu.Unlock()

	now := time.Now()
	if now.Sub(*lastLevelEmit) >= levelEmitInterval {
		*lastLevelEmit = now
		s.emit(Event{Kind: EventLevelUpdated, Level: level})
	}
}

// handleResult returns true when the session terminated.
func (s *Session) handleResult(ev TranscriptEvent, ok bool) bool {
	if !ok {
		// Stream closed without a final result. During finalize the
		// accumulated transcript is authoritative; during recording it
		// means the recognizer died under us.
		if s.State() == StateFinalizing {
			s.release()
			s.emit(Event{Kind: EventStopped, Transcript: s.Transcript()})
			s.finish(OutcomeSuccess)
			return true
		}
		s.release()
		s.emit(Event{Kind: EventFailed, Err: &StreamError{Msg: "recognition stream closed unexpectedly"}})
		s.finish(OutcomeError)
		return true
	}

	s.mu.Lock()
	s.transcript = ev.Text
	s.mu.Unlock()

	if !ev.IsFinal {
		s.emit(Event{Kind: EventTranscriptUpdated, Transcript: ev.Text})
		return false
	}

	// Terminal recognizer signal: same stop path as an explicit stop
	// when still recording.
	if s.State() == StateRecording {
		s.beginFinalize()
	}
	s.release()
	s.emit(Event{Kind: EventStopped, Transcript: ev.Text})
	s.finish(OutcomeSuccess)
	return true
}

// release performs the idempotent teardown: stop the audio stream,
// detach the buffer consumer, stop the timer.
func (s *Session) release() {
	s.teardown.Do(func() {
		if s.timer != nil {
			s.timer.Stop()
		}
		if err := s.audio.Stop(); err != nil {
			s.logger.Warn("stopping audio stream", "session_id", s.id, "error", err)
		}
	})
}

func (s *Session) finish(outcome Outcome) {
	s.setTerminated(outcome)
	s.mu.Lock()
	dropped := s.dropped
	s.mu.Unlock()
	s.logger.Info("capture session terminated",
		"session_id", s.id,
		"outcome", outcome,
		"duration", time.Since(s.startedAt).Round(time.Millisecond),
		"dropped_buffers", dropped)
}

func (s *Session) setTerminated(outcome Outcome) {
	s.mu.Lock()
	alreadyDone := s.state == StateTerminated
	s.state = StateTerminated
	s.outcome = outcome
	s.mu.Unlock()
	if !alreadyDone {
		close(s.done)
	}
}

// emit delivers an event. Gauge and transcript updates may be dropped
// when the consumer lags; lifecycle events block until delivered so
// they are never lost.
func (s *Session) emit(ev Event) {
	switch ev.Kind {
	case EventLevelUpdated, EventTranscriptUpdated:
		select {
		case s.events <- ev:
		default:
		}
	default:
		s.events <- ev
	}
}

func clipLevel(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
