// Package app wires all kotodama subsystems into a running answering server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithAudioCache, WithMetrics, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kotodama-ai/kotodama/internal/admission"
	"github.com/kotodama-ai/kotodama/internal/answer"
	"github.com/kotodama-ai/kotodama/internal/audiocache"
	"github.com/kotodama-ai/kotodama/internal/config"
	"github.com/kotodama-ai/kotodama/internal/embed"
	"github.com/kotodama-ai/kotodama/internal/health"
	"github.com/kotodama-ai/kotodama/internal/observe"
	"github.com/kotodama-ai/kotodama/internal/resilience"
	"github.com/kotodama-ai/kotodama/internal/retrieve"
	"github.com/kotodama-ai/kotodama/pkg/provider/embeddings"
	"github.com/kotodama-ai/kotodama/pkg/provider/llm"
	"github.com/kotodama-ai/kotodama/pkg/provider/tts"
	"github.com/kotodama-ai/kotodama/pkg/vectorstore"
)

// readHeaderTimeout bounds how long a client may take to send request headers.
const readHeaderTimeout = 10 * time.Second

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
// LLM fallback chains are assembled by main before they land here, so each
// slot is a single value.
type Providers struct {
	LLM        llm.Provider
	Embeddings embeddings.Provider
	TTS        tts.Provider
	Index      vectorstore.Index
}

// App owns all subsystem lifetimes and serves the answering API.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	metrics       *observe.Metrics
	outbound      *resilience.OutboundLimiter
	cache         *audiocache.Cache
	embedder      *embed.Service
	retriever     *retrieve.Retriever
	svc           *answer.Service
	handler       *answer.Handler
	healthHandler *health.Handler
	answerLimiter *admission.RateLimiter
	healthLimiter *admission.RateLimiter
	server        *http.Server

	// logLevel, when set, lets config hot reload change verbosity at runtime.
	logLevel *slog.LevelVar

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics injects a metrics instance instead of the global default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithAudioCache injects an audio cache instead of creating one. The caller
// keeps ownership; Shutdown will not stop an injected cache.
func WithAudioCache(c *audiocache.Cache) Option {
	return func(a *App) { a.cache = c }
}

// WithLogLevelVar connects the logger's level to config hot reload.
func WithLogLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). LLM, Embeddings, and
// Index are required; TTS is optional and its absence yields text-only answers.
//
// Background goroutines (rate-limit sweeps, cache janitor) are bound to ctx
// and also stopped by Shutdown.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers.LLM == nil {
		return nil, fmt.Errorf("app: an LLM provider is required")
	}
	if providers.Embeddings == nil {
		return nil, fmt.Errorf("app: an embeddings provider is required")
	}
	if providers.Index == nil {
		return nil, fmt.Errorf("app: a vector store is required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	a.outbound = resilience.NewOutboundLimiter(resilience.DefaultOutboundPermits)

	if err := a.initRetrieval(); err != nil {
		return nil, fmt.Errorf("app: init retrieval: %w", err)
	}
	a.initAnswer(ctx)
	a.initAdmission(ctx)
	a.initHealth()
	a.initServer()

	return a, nil
}

// initRetrieval sets up the query embedder and the vector search layer.
func (a *App) initRetrieval() error {
	spec, err := embeddings.ResolveModel(a.cfg.Providers.Embeddings.Model)
	if err != nil {
		return err
	}
	a.embedder = embed.NewService(a.providers.Embeddings, spec,
		embed.WithLimiter(a.outbound),
	)
	a.retriever = retrieve.New(a.embedder, a.providers.Index,
		retrieve.WithNamespace(a.cfg.VectorStore.Namespace),
	)
	return nil
}

// initAnswer sets up the answer service with TTS and caching when available.
func (a *App) initAnswer(ctx context.Context) {
	svcOpts := []answer.Option{
		answer.WithMetrics(a.metrics),
		answer.WithOutboundLimiter(a.outbound),
		answer.WithMaxTokens(a.cfg.Answer.MaxTokens),
	}
	if a.cfg.Answer.Temperature > 0 {
		svcOpts = append(svcOpts, answer.WithTemperature(a.cfg.Answer.Temperature))
	}

	if a.providers.TTS != nil {
		if a.cache == nil {
			a.cache = audiocache.New()
			a.cache.Start(ctx)
			a.closers = append(a.closers, func() error {
				a.cache.Stop()
				return nil
			})
		}
		svcOpts = append(svcOpts, answer.WithTTS(a.providers.TTS, a.cache))
	}

	a.svc = answer.NewService(a.retriever, a.providers.LLM, svcOpts...)
}

// initAdmission sets up the guard and the per-endpoint rate limiters.
func (a *App) initAdmission(ctx context.Context) {
	guard := admission.NewGuard(admission.Config{
		APIKeys:        a.cfg.Admission.APIKeys,
		AllowedOrigins: a.cfg.Admission.AllowedOrigins,
		Production:     a.cfg.Server.IsProduction(),
	})

	window := time.Duration(a.cfg.Admission.RateWindowSeconds) * time.Second

	a.answerLimiter = admission.NewRateLimiter(window, a.cfg.Admission.AnswerLimit)
	a.answerLimiter.Start(ctx)
	a.closers = append(a.closers, func() error {
		a.answerLimiter.Stop()
		return nil
	})

	healthLimit := a.cfg.Admission.HealthLimit
	if healthLimit <= 0 {
		healthLimit = admission.DefaultHealthLimit
	}
	a.healthLimiter = admission.NewRateLimiter(window, healthLimit)
	a.healthLimiter.Start(ctx)
	a.closers = append(a.closers, func() error {
		a.healthLimiter.Stop()
		return nil
	})

	a.handler = answer.NewHandler(a.svc, guard, a.answerLimiter,
		answer.WithHandlerMetrics(a.metrics),
	)
}

// initHealth sets up the health handler with a vector store connectivity probe.
func (a *App) initHealth() {
	flags := health.EnvFlags{
		Production:        a.cfg.Server.IsProduction(),
		LLMConfigured:     a.providers.LLM != nil,
		TTSConfigured:     a.providers.TTS != nil && a.providers.TTS.IsConfigured(),
		APIKeysConfigured: a.cfg.Admission.APIKeys != "",
	}

	ping := func(ctx context.Context) error {
		_, err := a.providers.Index.Describe(ctx)
		return err
	}

	a.healthHandler = health.New(flags, ping,
		health.Checker{Name: "vectordb", Check: ping},
	)
}

// initServer assembles the route table and the HTTP server.
func (a *App) initServer() {
	mux := http.NewServeMux()

	a.handler.Register(mux)

	// The client-facing status endpoint carries its own, looser rate limit.
	// Probe endpoints stay unthrottled so orchestrators are never locked out.
	mux.Handle("GET /health", a.rateLimited(a.healthLimiter, "/health",
		http.HandlerFunc(a.healthHandler.Health)))
	mux.HandleFunc("GET /healthz", a.healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", a.healthHandler.Readyz)

	mux.Handle("GET /metrics", promhttp.Handler())

	// Browsers preflight every cross-origin POST; answer all of them here.
	mux.HandleFunc("OPTIONS /", admission.Preflight)

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// rateLimited wraps next with a per-client fixed-window rate limit.
func (a *App) rateLimited(limiter *admission.RateLimiter, endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d := limiter.Allow(admission.ClientIP(r)); !d.Allowed {
			a.metrics.RecordRateLimitRejection(r.Context(), endpoint)
			w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the fully composed HTTP handler, including middleware.
// Intended for tests driving the app through httptest.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves HTTP until ctx is cancelled or the listener fails. On
// cancellation it returns ctx.Err(); call Shutdown for the graceful drain.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if tlsCfg := a.cfg.Server.TLS; tlsCfg != nil {
			err = a.server.ListenAndServeTLS(tlsCfg.CertFile, tlsCfg.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("server listening",
		"addr", a.cfg.Server.ListenAddr,
		"tls", a.cfg.Server.TLS != nil,
		"environment", a.cfg.Server.Environment,
	)

	select {
	case err := <-errCh:
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ApplyConfig reacts to a configuration reload. Only hot-reloadable sections
// take effect: log level, admission keys and origins, and answer tuning.
// Rate-limit window changes still require a restart.
func (a *App) ApplyConfig(oldCfg, newCfg *config.Config) {
	diff := config.Diff(oldCfg, newCfg)
	if !diff.Changed() {
		return
	}

	if diff.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(slogLevel(diff.NewLogLevel))
		slog.Info("log level updated", "level", diff.NewLogLevel)
	}

	if diff.AdmissionChanged {
		a.handler.SetGuard(admission.NewGuard(admission.Config{
			APIKeys:        newCfg.Admission.APIKeys,
			AllowedOrigins: newCfg.Admission.AllowedOrigins,
			Production:     newCfg.Server.IsProduction(),
		}))
		slog.Info("admission settings updated")
		if oldCfg.Admission.RateWindowSeconds != newCfg.Admission.RateWindowSeconds ||
			oldCfg.Admission.AnswerLimit != newCfg.Admission.AnswerLimit ||
			oldCfg.Admission.HealthLimit != newCfg.Admission.HealthLimit {
			slog.Warn("rate limit changes take effect after a restart")
		}
	}

	if diff.AnswerTuningChanged {
		a.svc.UpdateTuning(newCfg.Answer.Temperature, newCfg.Answer.MaxTokens)
		slog.Info("answer tuning updated",
			"temperature", newCfg.Answer.Temperature,
			"maxTokens", newCfg.Answer.MaxTokens,
		)
	}

	a.cfg = newCfg
}

// Shutdown drains the HTTP server and tears down all subsystems in init
// order. It respects the context deadline: if ctx expires before all closers
// finish, remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("server shutdown error", "err", err)
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

// slogLevel maps a config log level to its slog equivalent.
func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
