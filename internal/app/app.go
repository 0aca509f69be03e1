// Package app wires all voicecore/assistant subsystems into a running
// application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the HTTP surface until cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject test doubles via functional options (WithStore,
// WithTranscriber, WithInvoker). When an option is not provided, New
// creates the real implementation from config.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/voicecore/assistant/internal/audiointake"
	"github.com/voicecore/assistant/internal/bus"
	"github.com/voicecore/assistant/internal/config"
	"github.com/voicecore/assistant/internal/health"
	"github.com/voicecore/assistant/internal/httpapi"
	"github.com/voicecore/assistant/internal/orchestrator"
	"github.com/voicecore/assistant/internal/resilience"
	"github.com/voicecore/assistant/internal/session"
	"github.com/voicecore/assistant/internal/settings"
	"github.com/voicecore/assistant/internal/state"
	"github.com/voicecore/assistant/internal/transcription"
	"github.com/voicecore/assistant/internal/transport"
	"github.com/voicecore/assistant/pkg/provider/llm"
	"github.com/voicecore/assistant/pkg/provider/stt"
	"github.com/voicecore/assistant/pkg/store"
	"github.com/voicecore/assistant/pkg/store/memstore"
	"github.com/voicecore/assistant/pkg/store/postgres"
)

// Providers holds one interface value per provider slot. Nil means the
// provider was not configured and must be injected via an Option instead.
type Providers struct {
	STT stt.Transcriber
	LLM llm.Invoker
}

// App owns all subsystem lifetimes and orchestrates the voice assistant
// server.
type App struct {
	cfg       *config.Config
	providers *Providers

	store        store.Store
	bus          *bus.Bus
	resolver     *settings.Resolver
	intake       *audiointake.Intake
	state        *state.Manager
	pool         *transcription.Pool
	orchestrator *orchestrator.Orchestrator
	transport    *transport.Transport
	sessions     *session.Manager
	health       *health.Handler
	mux          *http.ServeMux

	server *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a Store instead of creating one from config.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithTranscriber injects a Transcriber instead of the one built from
// providers.STT.
func WithTranscriber(t stt.Transcriber) Option {
	return func(a *App) {
		if a.providers == nil {
			a.providers = &Providers{}
		}
		a.providers.STT = t
	}
}

// WithInvoker injects an Invoker instead of the one built from
// providers.LLM.
func WithInvoker(inv llm.Invoker) Option {
	return func(a *App) {
		if a.providers == nil {
			a.providers = &Providers{}
		}
		a.providers.LLM = inv
	}
}

// New creates an App by wiring all subsystems together. Use Option
// functions to inject test doubles for any subsystem; New performs all
// initialisation synchronously.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	if a.providers == nil {
		a.providers = &Providers{}
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Store ──────────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. SessionBus + SettingsResolver + ProcessingStateManager ───────
	a.bus = bus.New()
	a.resolver = settings.NewResolver(a.store)
	a.state = state.NewManager()

	// Register closers against the raw providers before wrapping them in
	// circuit breakers, so whisper-native's CGO model handle (and any other
	// io.Closer provider) is still released on Shutdown.
	a.registerCloserIfCloser(a.providers.STT)
	a.registerCloserIfCloser(a.providers.LLM)
	a.wrapProvidersWithBreakers()

	// ── 3. AudioIntake + TranscriptionWorker pool ───────────────────────
	if err := a.initPipelineInputs(ctx); err != nil {
		return nil, fmt.Errorf("app: init pipeline inputs: %w", err)
	}

	// ── 4. PipelineOrchestrator ──────────────────────────────────────────
	if err := a.initOrchestrator(); err != nil {
		return nil, fmt.Errorf("app: init orchestrator: %w", err)
	}

	// ── 5. Session lifecycle + ClientTransport ──────────────────────────
	a.sessions = session.NewManager(a.store)
	a.transport = transport.New(a.intake, a.bus, a.pool, a.sessions)

	// ── 6. HTTP surface ──────────────────────────────────────────────────
	a.initHTTP()

	return a, nil
}

// initStore connects the configured Store, or uses an injected one.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	dsn := a.cfg.Memory.PostgresDSN
	if dsn == "" {
		slog.Warn("memory.postgres_dsn is empty; using the in-memory store")
		a.store = memstore.New()
		return nil
	}

	st, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.store = st
	a.closers = append(a.closers, func() error {
		st.Close()
		return nil
	})
	return nil
}

// registerCloserIfCloser appends provider.Close to a.closers when provider
// implements io.Closer (e.g. whisper-native's CGO model handle).
func (a *App) registerCloserIfCloser(provider any) {
	if c, ok := provider.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}
}

// wrapProvidersWithBreakers wraps the STT/LLM providers in a CircuitBreaker
// so a flaky external backend is not hammered by every transcription flush
// or pipeline run once it starts failing (§7). Wrapping happens once, here,
// rather than per call site, so every caller gets the protection for free.
func (a *App) wrapProvidersWithBreakers() {
	if a.providers.STT != nil {
		a.providers.STT = resilience.NewBreakerTranscriber(a.providers.STT, resilience.CircuitBreakerConfig{Name: "stt"})
	}
	if a.providers.LLM != nil {
		a.providers.LLM = resilience.NewBreakerInvoker(a.providers.LLM, resilience.CircuitBreakerConfig{Name: "llm"})
	}
}

// initPipelineInputs wires AudioIntake and the TranscriptionWorker pool,
// requiring an STT provider to have been configured or injected.
func (a *App) initPipelineInputs(ctx context.Context) error {
	if a.providers.STT == nil {
		return fmt.Errorf("no STT provider configured (providers.stt.name) and none injected")
	}

	if _, err := a.store.GetSettings(ctx); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	a.intake = audiointake.New(16000)
	a.pool = transcription.NewPool(a.intake, a.providers.STT, a.store, a.bus, a.resolver, a.onNewTranscript)
	return nil
}

// onNewTranscript is the TranscriptionWorker→PipelineOrchestrator wiring
// point, set after a.orchestrator exists (initOrchestrator runs after
// initPipelineInputs, so the pool's callback is assigned indirectly via a
// closure capturing a).
func (a *App) onNewTranscript(sessionID string, transcriptID int64) {
	if a.orchestrator == nil {
		return
	}
	a.orchestrator.OnNewTranscript(sessionID, transcriptID)
}

// initOrchestrator creates the PipelineOrchestrator. When no LLM provider
// has been configured or injected it logs a warning and still creates it.
func (a *App) initOrchestrator() error {
	if a.providers.LLM == nil {
		slog.Warn("no LLM provider configured; summary and mind-map pipelines will fail every invocation")
	}
	poolSize := a.cfg.WorkerPool.Size
	var opts []orchestrator.Option
	if poolSize > 0 {
		opts = append(opts, orchestrator.WithPoolSize(poolSize))
	}
	a.orchestrator = orchestrator.New(a.store, a.providers.LLM, a.bus, a.resolver, a.state, opts...)
	return nil
}

// initHTTP assembles the full HTTP surface (settings, processing-status,
// health/readiness, websocket upgrade).
func (a *App) initHTTP() {
	settingsAPI := httpapi.NewSettingsAPI(a.resolver)
	statusAPI := httpapi.NewStatusAPI(a.state)
	a.health = health.New(health.Checker{
		Name:  "store",
		Check: a.store.Ping,
	})
	a.mux = httpapi.NewRouter(settingsAPI, statusAPI, a.health, a.transport.HandleConn)
}

// Mux returns the assembled HTTP router, primarily for tests that want to
// drive requests without starting a real listener.
func (a *App) Mux() *http.ServeMux {
	return a.mux
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the HTTP server and blocks until ctx is cancelled or the server
// fails. When ctx is done, Run returns ctx.Err() and leaves the server
// running; Shutdown stops it and runs the closers.
func (a *App) Run(ctx context.Context) error {
	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	a.server = &http.Server{Addr: addr, Handler: a.mux}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if a.cfg.Server.TLS != nil {
			err = a.server.ListenAndServeTLS(a.cfg.Server.TLS.CertFile, a.cfg.Server.TLS.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	slog.Info("app running", "addr", addr)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("app: http server: %w", err)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				slog.Warn("http server shutdown error", "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
