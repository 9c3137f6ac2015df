package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeProber struct {
	mic, transcription bool
}

func (p fakeProber) MicrophoneAccess(context.Context) (bool, error)    { return p.mic, nil }
func (p fakeProber) TranscriptionAccess(context.Context) (bool, error) { return p.transcription, nil }

type fakeAudio struct {
	mu       sync.Mutex
	sink     func(Buffer)
	startErr error
	stopped  int
}

func (a *fakeAudio) Start(_ context.Context, sink func(Buffer)) error {
	if a.startErr != nil {
		return a.startErr
	}
	a.mu.Lock()
	a.sink = sink
	a.mu.Unlock()
	return nil
}

func (a *fakeAudio) Stop() error {
	a.mu.Lock()
	a.stopped++
	a.mu.Unlock()
	return nil
}

func (a *fakeAudio) deliver(b Buffer) {
	a.mu.Lock()
	sink := a.sink
	a.mu.Unlock()
	if sink != nil {
		sink(b)
	}
}

// fakeStream accumulates fed text segments; Finish emits the
// accumulated transcript as the final result and closes the channel,
// mirroring a server-backed recognizer.
type fakeStream struct {
	mu       sync.Mutex
	results  chan TranscriptEvent
	text     []string
	finished bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{results: make(chan TranscriptEvent, 16)}
}

func (s *fakeStream) Feed([]float32) error { return nil }

func (s *fakeStream) pushInterim(text string) {
	s.mu.Lock()
	s.text = append(s.text, text)
	joined := strings.Join(s.text, " ")
	s.mu.Unlock()
	s.results <- TranscriptEvent{Text: joined}
}

func (s *fakeStream) Finish() {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	joined := strings.Join(s.text, " ")
	s.mu.Unlock()
	s.results <- TranscriptEvent{Text: joined, IsFinal: true}
	close(s.results)
}

func (s *fakeStream) Cancel() {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.mu.Unlock()
	close(s.results)
}

func (s *fakeStream) Results() <-chan TranscriptEvent { return s.results }

type fakeRecognizer struct {
	stream   *fakeStream
	startErr error
}

func (r *fakeRecognizer) Start(context.Context) (RecognitionStream, error) {
	if r.startErr != nil {
		return nil, r.startErr
	}
	return r.stream, nil
}

func testDeps(stream *fakeStream) (Deps, *fakeAudio) {
	audio := &fakeAudio{}
	return Deps{
		Permissions: fakeProber{mic: true, transcription: true},
		Audio:       audio,
		Recognizer:  &fakeRecognizer{stream: stream},
	}, audio
}

// collectEvents drains the session's event channel into a slice.
func collectEvents(t *testing.T, s *Session) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for events; got %d so far", len(events))
		}
	}
}

func finalEvent(t *testing.T, events []Event) Event {
	t.Helper()
	for _, ev := range events {
		if ev.Kind == EventStopped || ev.Kind == EventFailed {
			return ev
		}
	}
	t.Fatalf("no terminal event in %v", events)
	return Event{}
}

func TestStopDeliversLastTranscript(t *testing.T) {
	stream := newFakeStream()
	deps, _ := testDeps(stream)

	session, err := Start(context.Background(), deps, Config{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	stream.pushInterim("met sarah")
	stream.pushInterim("for coffee")

	// Wait until the run loop has consumed the interim results.
	waitFor(t, func() bool { return session.Transcript() == "met sarah for coffee" })

	session.Stop()
	events := collectEvents(t, session)

	final := finalEvent(t, events)
	if final.Kind != EventStopped {
		t.Fatalf("terminal event = %v", final.Kind)
	}
	if final.Transcript != "met sarah for coffee" {
		t.Errorf("final transcript = %q", final.Transcript)
	}
	if session.Outcome() != OutcomeSuccess {
		t.Errorf("outcome = %v", session.Outcome())
	}
	if session.State() != StateTerminated {
		t.Errorf("state = %v", session.State())
	}
}

func TestCancelDeliversEmptyTranscript(t *testing.T) {
	stream := newFakeStream()
	deps, _ := testDeps(stream)

	session, err := Start(context.Background(), deps, Config{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	stream.pushInterim("should be discarded")
	waitFor(t, func() bool { return session.Transcript() != "" })

	session.Cancel()
	events := collectEvents(t, session)

	final := finalEvent(t, events)
	if final.Kind != EventStopped || final.Transcript != "" {
		t.Errorf("cancel final event = %+v, want stopped with empty text", final)
	}
	if session.Outcome() != OutcomeCancelled {
		t.Errorf("outcome = %v", session.Outcome())
	}
	if session.Transcript() != "" {
		t.Errorf("transcript after cancel = %q, want empty", session.Transcript())
	}
}

func TestDurationCeilingFiresOnce(t *testing.T) {
	stream := newFakeStream()
	deps, _ := testDeps(stream)

	session, err := Start(context.Background(), deps, Config{MaxDuration: 30 * time.Millisecond})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	events := collectEvents(t, session)

	var reached int
	reachedBeforeStop := false
	sawStop := false
	for _, ev := range events {
		switch ev.Kind {
		case EventDurationReached:
			reached++
			reachedBeforeStop = !sawStop
		case EventStopped:
			sawStop = true
		}
	}

	if reached != 1 {
		t.Errorf("duration-reached fired %d times, want exactly once", reached)
	}
	if !reachedBeforeStop {
		t.Error("duration-reached must precede the terminal event")
	}
	if !sawStop {
		t.Error("session did not finalize after the ceiling")
	}
	if session.Outcome() != OutcomeSuccess {
		t.Errorf("outcome = %v", session.Outcome())
	}
}

func TestSecondStartRejected(t *testing.T) {
	stream := newFakeStream()
	deps, _ := testDeps(stream)
	recorder := NewRecorder(deps, Config{})

	first, err := recorder.Start(context.Background())
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}

	if _, err := recorder.Start(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("second Start error = %v, want ErrSessionActive", err)
	}

	// The live session is untouched by the rejected request.
	if first.State() != StateRecording {
		t.Errorf("first session state = %v after rejected start", first.State())
	}

	first.Cancel()
	collectEvents(t, first)

	// A terminated session no longer blocks a new one.
	second, err := recorder.Start(context.Background())
	if err != nil {
		t.Fatalf("start after termination: %v", err)
	}
	second.Cancel()
	collectEvents(t, second)
}

func TestPermissionsDenied(t *testing.T) {
	tests := []struct {
		name   string
		prober fakeProber
	}{
		{"mic denied", fakeProber{mic: false, transcription: true}},
		{"transcription denied", fakeProber{mic: true, transcription: false}},
		{"both denied", fakeProber{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := Deps{
				Permissions: tt.prober,
				Audio:       &fakeAudio{},
				Recognizer:  &fakeRecognizer{stream: newFakeStream()},
			}
			if _, err := Start(context.Background(), deps, Config{}); !errors.Is(err, ErrPermissionsDenied) {
				t.Errorf("err = %v, want ErrPermissionsDenied", err)
			}
		})
	}
}

func TestRecognizerUnavailable(t *testing.T) {
	deps := Deps{
		Permissions: fakeProber{mic: true, transcription: true},
		Audio:       &fakeAudio{},
		Recognizer:  &fakeRecognizer{startErr: errors.New("dial tcp: connection refused")},
	}
	if _, err := Start(context.Background(), deps, Config{}); !errors.Is(err, ErrRecognizerUnavailable) {
		t.Errorf("err = %v, want ErrRecognizerUnavailable", err)
	}
}

func TestSourceFailureTerminates(t *testing.T) {
	stream := newFakeStream()
	deps, _ := testDeps(stream)

	session, err := Start(context.Background(), deps, Config{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	session.FailSource(errors.New("device unplugged"))
	events := collectEvents(t, session)

	final := finalEvent(t, events)
	if final.Kind != EventFailed {
		t.Fatalf("terminal event = %v, want failed", final.Kind)
	}
	var streamErr *StreamError
	if !errors.As(final.Err, &streamErr) {
		t.Errorf("terminal error = %v, want StreamError", final.Err)
	}
	if session.Outcome() != OutcomeError {
		t.Errorf("outcome = %v", session.Outcome())
	}
}

func TestLevelGaugeClipped(t *testing.T) {
	stream := newFakeStream()
	deps, audio := testDeps(stream)

	session, err := Start(context.Background(), deps, Config{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	audio.deliver(Buffer{Samples: make([]float32, 160), Peak: 3.5})
	waitFor(t, func() bool { return session.Level() == 1.0 })

	audio.deliver(Buffer{Samples: make([]float32, 160), Peak: 0.25})
	waitFor(t, func() bool { return session.Level() == 0.25 })

	session.Cancel()
	collectEvents(t, session)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
