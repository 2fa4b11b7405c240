package setup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bunko/bunko/pkg/config"
	"github.com/bunko/bunko/pkg/events"
	"github.com/bunko/bunko/pkg/inference"
	"github.com/bunko/bunko/pkg/kafka"
	"github.com/bunko/bunko/pkg/logging"
	"github.com/bunko/bunko/pkg/metrics"
	"github.com/bunko/bunko/pkg/prompt"
	"github.com/bunko/bunko/pkg/resilience"
	"github.com/bunko/bunko/pkg/search"
	"github.com/bunko/bunko/pkg/session"
)

// Stack holds the long-lived collaborators shared by every session
type Stack struct {
	Config    *config.Config
	Logger    logging.Logger
	Client    *search.Client
	Searcher  search.Searcher
	Fetcher   search.DocumentFetcher
	Providers *inference.Registry
	Metrics   *metrics.Recorder
	Collector *metrics.PrometheusCollector

	sink    events.Sink
	cache   search.Cache
	closers []func() error
}

// NewLogger builds the logger described by cfg. A file target is created on
// demand so the TUI never writes logs over the screen.
func NewLogger(cfg config.LoggingConfig) (logging.Logger, func() error, error) {
	lc := logging.Config{
		Level:  logging.ParseLevel(cfg.Level),
		Format: cfg.Format,
		Output: os.Stderr,
	}
	var file *os.File
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		lc.Output = f
		file = f
	}

	logger, err := logging.NewZapLogger(lc)
	if err != nil {
		if file != nil {
			file.Close()
		}
		return nil, nil, err
	}

	closer := func() error {
		_ = logger.Sync()
		if file != nil {
			return file.Close()
		}
		return nil
	}
	return logger, closer, nil
}

// Build creates the stack. Optional pieces (cache, Kafka, metrics) are only
// created when enabled and degrade to disabled with a warning when their
// backend is unreachable.
func Build(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Stack, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Stack{Config: cfg, Logger: logger}

	if cfg.Metrics.Enabled {
		recorder, collector, err := metrics.NewStandardRecorder()
		if err != nil {
			return nil, err
		}
		s.Metrics = recorder
		s.Collector = collector
	}

	retry := resilience.DefaultRetryConfig()
	if cfg.Archive.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.Archive.RetryAttempts
	}
	if cfg.Archive.RetryDelay > 0 {
		retry.InitialDelay = cfg.Archive.RetryDelay
	}
	breaker := resilience.DefaultCircuitBreakerConfig("archive")
	if cfg.Archive.FailureThreshold > 0 {
		breaker.FailureThreshold = cfg.Archive.FailureThreshold
	}
	if cfg.Archive.OpenTimeout > 0 {
		breaker.OpenTimeout = cfg.Archive.OpenTimeout
	}
	breaker.OnStateChange = func(name string, from, to resilience.State) {
		logger.Warn("circuit breaker state changed",
			logging.String("breaker", name),
			logging.String("from", from.String()),
			logging.String("to", to.String()),
		)
	}

	s.Client = search.NewClient(search.ClientConfig{
		BaseURL: cfg.Archive.BaseURL,
		Timeout: cfg.Archive.Timeout,
		Retry:   retry,
		Breaker: breaker,
		Logger:  logger,
	})
	s.Searcher = s.Client
	s.Fetcher = s.Client

	if cfg.Cache.Enabled {
		cache, err := search.NewRedisCache(ctx, search.RedisConfig{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			Prefix:   cfg.Cache.Prefix,
		})
		if err != nil {
			logger.Warn("search cache disabled", logging.String("addr", cfg.Cache.Addr), logging.Err(err))
		} else {
			cached := search.NewCachedSearcher(s.Client, s.Client, cache, cfg.Cache.TTL,
				search.WithCacheObserver(s.Metrics),
				search.WithCacheLogger(logger),
			)
			s.cache = cache
			s.Searcher = cached
			s.Fetcher = cached
			s.closers = append(s.closers, cache.Close)
		}
	}

	if cfg.Events.Kafka.Enabled() {
		pub, err := kafka.NewPublisher(cfg.Events.Kafka)
		if err != nil {
			logger.Warn("event publishing disabled", logging.Err(err))
		} else {
			s.sink = pub
		}
	}

	providers, err := InitializeInference(ctx, cfg.Inference, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Providers = providers

	return s, nil
}

// NewSession creates a session on the default provider
func (s *Stack) NewSession() (*session.Session, error) {
	provider, err := s.Providers.Default()
	if err != nil {
		return nil, err
	}

	builder, err := prompt.NewBuilder(s.Config.Inference.SystemPrompt,
		prompt.WithTemperature(s.Config.Inference.Temperature),
		prompt.WithMaxHistory(s.Config.Inference.MaxHistory),
	)
	if err != nil {
		return nil, err
	}

	req := search.NewRequest("")
	req.KInternal = s.Config.Search.KInternal
	req.KWeb = s.Config.Search.KWeb
	req.IncludeWeb = s.Config.Search.IncludeWeb
	if s.Config.Search.TimeoutMS > 0 {
		ms := s.Config.Search.TimeoutMS
		req.TimeoutMS = &ms
	}

	busOpts := []events.Option{events.WithLogger(s.Logger)}
	if s.sink != nil {
		busOpts = append(busOpts, events.WithSink(sharedSink{s.sink}))
	}

	return session.New(session.Config{
		Searcher:        s.Searcher,
		Fetcher:         s.Fetcher,
		Provider:        provider,
		Builder:         builder,
		Search:          req,
		Bus:             events.NewBus(busOpts...),
		Metrics:         s.Metrics,
		Logger:          s.Logger,
		MaxExcerptRunes: s.Config.CLI.MaxExcerptRunes,
	})
}

// ServeMetrics exposes /metrics until ctx is done. It is a no-op when metrics
// are disabled.
func (s *Stack) ServeMetrics(ctx context.Context) error {
	if s.Collector == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Collector.Handler())
	srv := &http.Server{
		Addr:              s.Config.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.Logger.Info("serving metrics", logging.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Close releases the cache and the event sink
func (s *Stack) Close() error {
	var errs []error
	if s.sink != nil {
		if err := s.sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sharedSink keeps a session's bus from closing the sink other sessions use
type sharedSink struct {
	events.Sink
}

func (sharedSink) Close() error { return nil }
