// Package transport implements ClientTransport: one bidirectional websocket
// connection per client, bridging inbound audio/status messages to
// AudioIntake and the TranscriptionWorker pool, and outbound SessionBus
// events back to the client (§4.8).
package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/voicecore/assistant/internal/audiointake"
	"github.com/voicecore/assistant/internal/bus"
	"github.com/voicecore/assistant/internal/observe"
	"github.com/voicecore/assistant/internal/session"
	"github.com/voicecore/assistant/internal/transcription"
)

// Transport accepts client websocket connections and wires them to the
// rest of the pipeline (§5 "one goroutine/task per active client
// connection").
type Transport struct {
	intake   *audiointake.Intake
	bus      *bus.Bus
	pool     *transcription.Pool
	sessions *session.Manager
}

// New creates a Transport wiring the given collaborators.
func New(in *audiointake.Intake, b *bus.Bus, pool *transcription.Pool, sessions *session.Manager) *Transport {
	return &Transport{intake: in, bus: b, pool: pool, sessions: sessions}
}

// HandleConn upgrades r to a websocket connection and serves it until the
// client disconnects or either loop errors. The connection may carry a
// session id via the "session_id" query parameter (§6); a start_stream
// status message also switches the connection to its session. An
// audio_chunk message's own sessionId, when set, applies to that frame only,
// and its session is created if unknown, matching SessionOrCreate semantics
// (§3 "created on first inbound audio referencing a previously unknown id").
// A raw binary frame that arrives while the connection has no session id is
// rejected with SessionNotFound.
func (t *Transport) HandleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Error("transport: accept", "error", err)
		return
	}
	defer conn.CloseNow()

	observe.DefaultMetrics().ActiveConnections.Add(r.Context(), 1)
	defer observe.DefaultMetrics().ActiveConnections.Add(r.Context(), -1)

	sessionID := r.URL.Query().Get("session_id")

	c := &clientConn{transport: t, conn: conn}
	if sessionID != "" {
		c.subscribe(sessionID)
	}
	defer c.unsubscribe()

	// Either loop failing tears down the whole connection: a read error
	// means the client is gone, and a write error means delivery is no
	// longer possible, so there is nothing left for the other loop to do.
	eg, ctx := errgroup.WithContext(r.Context())
	eg.Go(func() error { return c.readLoop(ctx) })
	eg.Go(func() error { return c.writeLoop(ctx) })

	if err := eg.Wait(); err != nil {
		slog.Debug("transport: connection closed", "session_id", c.currentSessionID(), "error", err)
	}
}

// clientConn holds the per-connection state: the active session id (set or
// changed by a status message) and the live bus subscription backing the
// writeLoop. readLoop and writeLoop run on separate goroutines, so both the
// session id and the subscription handle are guarded by mu.
type clientConn struct {
	transport *Transport
	conn      *websocket.Conn

	mu        sync.Mutex
	sessionID string
	handle    *bus.Handle

	// ensured tracks which session ids have already had ensureWorker run
	// for this connection. readLoop-only state, see ensureWorker.
	ensured map[string]bool
}

func (c *clientConn) currentSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// subscribe switches the connection to sessionID, closing any prior
// subscription first. Only readLoop (directly, or via handleStatus) calls
// this.
func (c *clientConn) subscribe(sessionID string) {
	c.mu.Lock()
	prev := c.handle
	c.sessionID = sessionID
	c.handle = c.transport.bus.Subscribe(sessionID)
	c.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
}

func (c *clientConn) unsubscribe() {
	c.mu.Lock()
	h := c.handle
	c.handle = nil
	c.mu.Unlock()
	if h != nil {
		h.Close()
	}
}

func (c *clientConn) currentHandle() *bus.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// readLoop decodes inbound messages and dispatches audio frames to
// AudioIntake and status changes to the TranscriptionWorker pool (§4.8).
func (c *clientConn) readLoop(ctx context.Context) error {
	for {
		kind, data, err := c.conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("transport: read: %w", err)
		}

		switch kind {
		case websocket.MessageBinary:
			sessionID := c.currentSessionID()
			if sessionID == "" {
				c.publishError("", "SessionNotFound", "binary frame received before a session id was established")
				continue
			}
			c.pushFrame(ctx, sessionID, data)

		case websocket.MessageText:
			var env Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				slog.Warn("transport: malformed envelope", "error", err)
				continue
			}
			if err := c.handleEnvelope(ctx, env); err != nil {
				slog.Warn("transport: handle envelope", "type", env.Type, "error", err)
			}
		}
	}
}

func (c *clientConn) handleEnvelope(ctx context.Context, env Envelope) error {
	switch env.Type {
	case TypeAudioChunk:
		var chunk AudioChunkData
		if err := json.Unmarshal(env.Data, &chunk); err != nil {
			return fmt.Errorf("decode audio_chunk data: %w", err)
		}
		sessionID := chunk.SessionID
		if sessionID == "" {
			sessionID = c.currentSessionID()
		}
		if sessionID == "" {
			c.publishError("", "SessionNotFound", "audio_chunk received before a session id was established")
			return nil
		}
		raw, err := base64.StdEncoding.DecodeString(chunk.Data)
		if err != nil {
			return fmt.Errorf("decode audio_chunk base64: %w", err)
		}
		c.pushFrame(ctx, sessionID, raw)
		return nil

	case TypeStatus:
		var status StatusEnvelope
		if err := json.Unmarshal(env.Data, &status); err != nil {
			return fmt.Errorf("decode status data: %w", err)
		}
		return c.handleStatus(ctx, status)

	default:
		return fmt.Errorf("unexpected inbound message type %q", env.Type)
	}
}

func (c *clientConn) handleStatus(ctx context.Context, status StatusEnvelope) error {
	sessionID := status.SessionID
	if sessionID == "" {
		sessionID = c.currentSessionID()
	}
	if sessionID == "" {
		c.publishError("", "SessionNotFound", "status message received before a session id was established")
		return nil
	}

	switch status.Action {
	case ActionStartStream:
		if _, err := c.transport.sessions.EnsureFromAudio(ctx, sessionID); err != nil {
			return fmt.Errorf("session_or_create: %w", err)
		}
		if err := c.transport.sessions.SetActive(ctx, sessionID, true); err != nil {
			return fmt.Errorf("set session active: %w", err)
		}
		if sessionID != c.currentSessionID() {
			c.subscribe(sessionID)
		}
		c.transport.pool.Ensure(sessionID)
		if c.ensured == nil {
			c.ensured = make(map[string]bool)
		}
		c.ensured[sessionID] = true

	case ActionStopStream:
		if err := c.transport.sessions.SetActive(ctx, sessionID, false); err != nil {
			return fmt.Errorf("set session inactive: %w", err)
		}
		c.transport.pool.Stop(sessionID)

	default:
		return fmt.Errorf("unknown status action %q", status.Action)
	}
	return nil
}

// pushFrame ensures sessionID's session and TranscriptionWorker exist, then
// forwards raw to AudioIntake and bumps the session's last activity,
// publishing InvalidFrame on validation failure without tearing down the
// connection (§4.1, §7).
func (c *clientConn) pushFrame(ctx context.Context, sessionID string, raw []byte) {
	c.ensureWorker(ctx, sessionID)
	if err := c.transport.intake.Push(sessionID, raw); err != nil {
		c.publishError(sessionID, "InvalidFrame", err.Error())
		return
	}
	_ = c.transport.sessions.BumpActivity(ctx, sessionID)
}

// ensureWorker creates sessionID's session and spawns its
// TranscriptionWorker on first audio reference (§3 "created on first
// inbound audio referencing a previously unknown id", §4.2 "one worker per
// session, spawned on first frame"), independent of whether the client ever
// sends a start_stream status message. ensured is only ever touched from
// readLoop, the sole caller of pushFrame, so it needs no mutex. A failed
// EnsureFromAudio is retried on the next frame rather than cached.
func (c *clientConn) ensureWorker(ctx context.Context, sessionID string) {
	if c.ensured[sessionID] {
		return
	}
	if _, err := c.transport.sessions.EnsureFromAudio(ctx, sessionID); err != nil {
		slog.Error("transport: ensure session from audio", "session_id", sessionID, "error", err)
		return
	}
	c.transport.pool.Ensure(sessionID)
	if c.ensured == nil {
		c.ensured = make(map[string]bool)
	}
	c.ensured[sessionID] = true
}

func (c *clientConn) publishError(sessionID, kind, message string) {
	if sessionID == "" {
		sessionID = c.currentSessionID()
	}
	c.transport.bus.Publish(sessionID, bus.Event{
		Type:  bus.EventError,
		Error: &bus.ErrorEvent{SessionID: sessionID, Kind: kind, Message: message},
	})
}

// writeLoop forwards SessionBus events for the connection's session as
// outbound Envelopes until ctx is cancelled (by readLoop erroring, or the
// request context ending on disconnect).
func (c *clientConn) writeLoop(ctx context.Context) error {
	for {
		h := c.currentHandle()
		if h == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(50 * time.Millisecond):
				continue
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-h.Events():
			if !ok {
				return nil
			}
			env, err := encodeEvent(ev)
			if err != nil {
				slog.Error("transport: encode event", "error", err)
				continue
			}
			payload, err := json.Marshal(env)
			if err != nil {
				slog.Error("transport: marshal envelope", "error", err)
				continue
			}
			if err := c.conn.Write(ctx, websocket.MessageText, payload); err != nil {
				return fmt.Errorf("transport: write: %w", err)
			}
		}
	}
}

// encodeEvent translates a bus.Event into its outbound Envelope, matching
// exactly one populated payload field to its wire type (§6).
func encodeEvent(ev bus.Event) (Envelope, error) {
	env := Envelope{
		Timestamp: ev.Timestamp.UnixMilli(),
		SessionID: ev.SessionID,
	}
	if env.Timestamp == 0 {
		env.Timestamp = time.Now().UnixMilli()
	}

	var payload any
	switch ev.Type {
	case bus.EventTranscriptionResult:
		env.Type = TypeTranscriptionResult
		payload = ev.Transcription
	case bus.EventSessionAnalysis:
		env.Type = TypeSessionAnalysis
		payload = ev.Analysis
	case bus.EventMindMapResult:
		env.Type = TypeMindMapResult
		payload = ev.MindMap
	case bus.EventProcessingStatus:
		env.Type = TypeProcessingStatus
		payload = ev.Status
	case bus.EventError:
		env.Type = TypeError
		payload = ev.Error
	default:
		return Envelope{}, fmt.Errorf("transport: unknown bus event type %q", ev.Type)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	env.Data = data
	return env, nil
}
