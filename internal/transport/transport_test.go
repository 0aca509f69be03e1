package transport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/voicecore/assistant/internal/audiointake"
	"github.com/voicecore/assistant/internal/bus"
	"github.com/voicecore/assistant/internal/session"
	"github.com/voicecore/assistant/internal/settings"
	"github.com/voicecore/assistant/internal/transcription"
	"github.com/voicecore/assistant/internal/transport"
	"github.com/voicecore/assistant/pkg/provider/stt/mock"
	"github.com/voicecore/assistant/pkg/store/memstore"
	"github.com/voicecore/assistant/pkg/wav"
)

func newTestServer(t *testing.T) (*httptest.Server, *bus.Bus) {
	t.Helper()
	in := audiointake.New(16000)
	st := memstore.New()
	s, err := st.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	s.FramesPerBatch = 1
	if err := st.PutSettings(context.Background(), s); err != nil {
		t.Fatalf("put settings: %v", err)
	}
	b := bus.New()
	resolver := settings.NewResolver(st)
	tr := &mock.Transcriber{}
	pool := transcription.NewPool(in, tr, st, b, resolver, nil)
	sessions := session.NewManager(st)
	tp := transport.New(in, b, pool, sessions)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", tp.HandleConn)
	srv := httptest.NewServer(mux)
	return srv, b
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.Dial(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestHandleConn_StartStreamThenBinaryFrame_TranscribesAndDelivers(t *testing.T) {
	srv, b := newTestServer(t)
	defer srv.Close()

	conn := dial(t, srv, "?session_id=s1")
	defer conn.Close(websocket.StatusNormalClosure, "")

	status := transport.Envelope{
		Type:      transport.TypeStatus,
		Data:      mustJSON(t, transport.StatusEnvelope{Action: transport.ActionStartStream, SessionID: "s1"}),
		Timestamp: time.Now().UnixMilli(),
	}
	if err := conn.Write(context.Background(), websocket.MessageText, mustJSON(t, status)); err != nil {
		t.Fatalf("write status: %v", err)
	}

	// give the server a moment to process the status message and subscribe
	time.Sleep(50 * time.Millisecond)
	if b.SubscriberCount("s1") == 0 {
		t.Fatalf("expected a subscriber on the bus for s1")
	}

	frame := wav.Encode(make([]byte, 3200), 16000, 1)
	if err := conn.Write(context.Background(), websocket.MessageBinary, frame); err != nil {
		t.Fatalf("write binary frame: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	kind, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read outbound envelope: %v", err)
	}
	if kind != websocket.MessageText {
		t.Fatalf("expected text envelope, got %v", kind)
	}
	var env transport.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != transport.TypeTranscriptionResult {
		t.Errorf("expected transcription_result, got %q", env.Type)
	}
}

func TestHandleConn_BinaryFrameWithoutStartStream_StillTranscribes(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	conn := dial(t, srv, "?session_id=s1")
	defer conn.Close(websocket.StatusNormalClosure, "")

	// No start_stream status message is ever sent: the session and its
	// TranscriptionWorker must be created on first audio reference alone
	// (§3, §4.2), not only via ActionStartStream.
	frame := wav.Encode(make([]byte, 3200), 16000, 1)
	if err := conn.Write(context.Background(), websocket.MessageBinary, frame); err != nil {
		t.Fatalf("write binary frame: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	kind, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read outbound envelope: %v", err)
	}
	if kind != websocket.MessageText {
		t.Fatalf("expected text envelope, got %v", kind)
	}
	var env transport.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != transport.TypeTranscriptionResult {
		t.Errorf("expected transcription_result, got %q", env.Type)
	}
}

func TestHandleConn_BinaryFrameBeforeSessionEstablished_PublishesSessionNotFound(t *testing.T) {
	srv, b := newTestServer(t)
	defer srv.Close()

	h := b.Subscribe("")
	defer h.Close()

	conn := dial(t, srv, "")
	defer conn.Close(websocket.StatusNormalClosure, "")

	frame := wav.Encode(make([]byte, 320), 16000, 1)
	if err := conn.Write(context.Background(), websocket.MessageBinary, frame); err != nil {
		t.Fatalf("write binary frame: %v", err)
	}

	select {
	case ev := <-h.Events():
		if ev.Type != bus.EventError || ev.Error == nil || ev.Error.Kind != "SessionNotFound" {
			t.Fatalf("expected SessionNotFound error event, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for SessionNotFound event")
	}
}

func TestHandleConn_InvalidFramePublishesErrorButKeepsConnectionOpen(t *testing.T) {
	srv, b := newTestServer(t)
	defer srv.Close()

	h := b.Subscribe("s2")
	defer h.Close()

	conn := dial(t, srv, "?session_id=s2")
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := conn.Write(context.Background(), websocket.MessageBinary, []byte("not a wav file")); err != nil {
		t.Fatalf("write invalid frame: %v", err)
	}

	select {
	case ev := <-h.Events():
		if ev.Type != bus.EventError || ev.Error == nil || ev.Error.Kind != "InvalidFrame" {
			t.Fatalf("expected InvalidFrame error event, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for InvalidFrame event")
	}

	// connection must still be usable afterwards
	valid := wav.Encode(make([]byte, 320), 16000, 1)
	if err := conn.Write(context.Background(), websocket.MessageBinary, valid); err != nil {
		t.Fatalf("write valid frame after invalid one: %v", err)
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
