package whisper_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/voicecore/assistant/pkg/provider/stt/whisper"
	"github.com/voicecore/assistant/pkg/wav"
)

// ---- helpers ----------------------------------------------------------------

// newMockServer creates a test server that responds to POST /inference with a
// JSON body containing the provided responseText. It increments *callCount on
// every matched request.
func newMockServer(t *testing.T, responseText string, callCount *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if callCount != nil {
			callCount.Add(1)
		}
		if ct := r.Header.Get("Content-Type"); ct == "" {
			http.Error(w, "missing content type", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": responseText})
	}))
}

// makeSpeechWAV generates a 16 kHz mono WAV buffer containing a 440 Hz sine
// wave, wrapped with pkg/wav.Encode the way internal/audiointake would.
func makeSpeechWAV(samples int) []byte {
	const amplitude = 10_000.0
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/16000))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return wav.Encode(pcm, 16000, 1)
}

// ---- provider construction --------------------------------------------------

func TestNew_EmptyServerURL_ReturnsError(t *testing.T) {
	_, err := whisper.New("")
	if err == nil {
		t.Fatal("expected error for empty serverURL, got nil")
	}
}

func TestNew_ValidServerURL_ReturnsProvider(t *testing.T) {
	p, err := whisper.New("http://localhost:8080")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
}

// ---- Transcribe --------------------------------------------------------------

func TestTranscribe_SendsMultipartAndParsesResponse(t *testing.T) {
	var callCount atomic.Int32
	srv := newMockServer(t, "hello world", &callCount)
	defer srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("whisper.New: %v", err)
	}

	data := makeSpeechWAV(1600)
	result, err := p.Transcribe(context.Background(), data, "en", "base")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Text != "hello world" {
		t.Errorf("expected text %q, got %q", "hello world", result.Text)
	}
	if result.Language != "en" {
		t.Errorf("expected language %q, got %q", "en", result.Language)
	}
	if callCount.Load() != 1 {
		t.Errorf("expected 1 server call, got %d", callCount.Load())
	}
}

func TestTranscribe_AutoLanguageOmitsField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if lang := r.FormValue("language"); lang != "" {
			t.Errorf("expected no language field, got %q", lang)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "ok"})
	}))
	defer srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("whisper.New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), makeSpeechWAV(800), "auto", ""); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
}

func TestTranscribe_ServerErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("whisper.New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), makeSpeechWAV(800), "en", ""); err == nil {
		t.Fatal("expected error for HTTP 500 response")
	}
}

func TestTranscribe_MalformedJSONReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("whisper.New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), makeSpeechWAV(800), "en", ""); err == nil {
		t.Fatal("expected error for malformed JSON response")
	}
}

func TestTranscribe_ContextCancelled(t *testing.T) {
	srv := newMockServer(t, "unused", nil)
	defer srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("whisper.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Transcribe(ctx, makeSpeechWAV(800), "en", ""); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
