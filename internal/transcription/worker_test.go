package transcription_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voicecore/assistant/internal/audiointake"
	"github.com/voicecore/assistant/internal/bus"
	"github.com/voicecore/assistant/internal/settings"
	"github.com/voicecore/assistant/internal/transcription"
	"github.com/voicecore/assistant/pkg/provider/stt"
	sttmock "github.com/voicecore/assistant/pkg/provider/stt/mock"
	"github.com/voicecore/assistant/pkg/store"
	"github.com/voicecore/assistant/pkg/store/memstore"
	"github.com/voicecore/assistant/pkg/wav"
)

var errBoom = errors.New("boom")

func ctxBG() context.Context { return context.Background() }

func validWAV(samples int) []byte {
	return wav.Encode(make([]byte, samples*2), 16000, 1)
}

func sttResult(text, language string) stt.Result {
	return stt.Result{Text: text, Language: language}
}

// singleFrameBatches sets FramesPerBatch to 1 so each pushed frame is
// transcribed at once instead of waiting for a full batch.
func singleFrameBatches(st *memstore.Store) {
	cfg := store.DefaultSettings()
	cfg.FramesPerBatch = 1
	_ = st.PutSettings(ctxBG(), cfg)
}

func TestPool_TranscribesAndPublishes(t *testing.T) {
	in := audiointake.New(16000)
	tr := &sttmock.Transcriber{Result: sttResult("hello world", "en")}
	st := memstore.New()
	singleFrameBatches(st)
	b := bus.New()
	r := settings.NewResolver(st)

	var newTranscriptCalled bool
	pool := transcription.NewPool(in, tr, st, b, r, func(sessionID string, transcriptID int64) {
		newTranscriptCalled = true
	})

	h := b.Subscribe("s1")
	defer h.Close()

	st.SessionOrCreate(ctxBG(), "s1")
	pool.Ensure("s1")
	defer pool.Stop("s1")

	if err := in.Push("s1", validWAV(1600)); err != nil {
		t.Fatalf("Push: %v", err)
	}

	select {
	case ev := <-h.Events():
		if ev.Type != bus.EventTranscriptionResult {
			t.Fatalf("expected EventTranscriptionResult, got %v", ev.Type)
		}
		if ev.Transcription.Text != "hello world" {
			t.Errorf("expected text 'hello world', got %q", ev.Transcription.Text)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for transcription event")
	}

	time.Sleep(50 * time.Millisecond)
	if !newTranscriptCalled {
		t.Error("expected NewTranscriptFunc to be called")
	}

	transcripts, err := st.ListTranscripts(ctxBG(), "s1")
	if err != nil {
		t.Fatalf("ListTranscripts: %v", err)
	}
	if len(transcripts) != 1 {
		t.Fatalf("expected 1 persisted transcript, got %d", len(transcripts))
	}
}

func TestPool_EmptyTextDoesNotFireDownstream(t *testing.T) {
	in := audiointake.New(16000)
	tr := &sttmock.Transcriber{Result: sttResult("   ", "en")}
	st := memstore.New()
	singleFrameBatches(st)
	b := bus.New()
	r := settings.NewResolver(st)

	var called bool
	pool := transcription.NewPool(in, tr, st, b, r, func(sessionID string, transcriptID int64) {
		called = true
	})

	h := b.Subscribe("s1")
	defer h.Close()

	st.SessionOrCreate(ctxBG(), "s1")
	pool.Ensure("s1")
	defer pool.Stop("s1")

	in.Push("s1", validWAV(1600))

	select {
	case ev := <-h.Events():
		if !ev.Transcription.Success {
			t.Error("expected empty-text result to be treated as success")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	time.Sleep(50 * time.Millisecond)
	if called {
		t.Error("expected NewTranscriptFunc NOT to be called for empty text")
	}

	transcripts, _ := st.ListTranscripts(ctxBG(), "s1")
	if len(transcripts) != 0 {
		t.Errorf("expected no persisted transcript for empty text, got %d", len(transcripts))
	}
}

func TestPool_TranscriberErrorPublishesErrorEvent(t *testing.T) {
	in := audiointake.New(16000)
	tr := &sttmock.Transcriber{Err: errBoom}
	st := memstore.New()
	singleFrameBatches(st)
	b := bus.New()
	r := settings.NewResolver(st)

	pool := transcription.NewPool(in, tr, st, b, r, nil)

	h := b.Subscribe("s1")
	defer h.Close()

	st.SessionOrCreate(ctxBG(), "s1")
	pool.Ensure("s1")
	defer pool.Stop("s1")

	in.Push("s1", validWAV(1600))

	select {
	case ev := <-h.Events():
		if ev.Type != bus.EventError {
			t.Fatalf("expected EventError, got %v", ev.Type)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for error event")
	}
}
