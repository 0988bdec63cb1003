// Package planner generates, explains and persists the weekly suggestion of
// one store. It is shared by the HTTP API and the weekly job.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"IceStock/internal/collector"
	"IceStock/internal/explainer"
	"IceStock/internal/forecaster"
	"IceStock/internal/metrics"
	"IceStock/internal/model"
	"IceStock/internal/storage"
)

// Source preferences.
const (
	SourcePrimary      = "primary"
	SourceExperimental = "experimental"
)

// noSource labels fetch failures, where no source served the forecast.
const noSource = "none"

// ExplanationTimeout bounds a single explanation call.
const ExplanationTimeout = 15 * time.Second

var (
	// ErrMissingCoordinates is returned for stores registered without lat/lon.
	ErrMissingCoordinates = collector.ErrMissingCoordinates
	ErrUnknownSource      = errors.New("unknown forecast source")
	// ErrForecastUnavailable wraps the failure of every source in the chain.
	ErrForecastUnavailable = errors.New("forecast unavailable")
)

// Fetcher returns a forecast for a location; *collector.Chain implements it.
type Fetcher interface {
	Fetch(ctx context.Context, loc model.Location) (*collector.Result, error)
}

// Request selects the store, strategy and forecast source of one generation.
// Empty strategy and source fall back to the service defaults.
type Request struct {
	StoreID  int64
	Strategy string
	Source   string
}

// Result is a persisted suggestion plus how its forecast was obtained.
type Result struct {
	Record   *model.SuggestionRecord
	Store    *model.Store
	Source   string
	Warnings []string
}

// Config wires the collaborators of a Service.
type Config struct {
	Repo            storage.Repository
	Fetchers        map[string]Fetcher
	DefaultSource   string
	DefaultStrategy string
	Explainer       explainer.Explainer
	Now             func() time.Time
	Log             zerolog.Logger
}

// Service runs the store → forecast → suggestion → explanation → storage pipeline.
type Service struct {
	repo            storage.Repository
	fetchers        map[string]Fetcher
	defaultSource   string
	defaultStrategy string
	explainer       explainer.Explainer
	now             func() time.Time
	log             zerolog.Logger
}

func New(cfg Config) *Service {
	s := &Service{
		repo:            cfg.Repo,
		fetchers:        cfg.Fetchers,
		defaultSource:   cfg.DefaultSource,
		defaultStrategy: cfg.DefaultStrategy,
		explainer:       cfg.Explainer,
		now:             cfg.Now,
		log:             cfg.Log.With().Str("component", "planner").Logger(),
	}
	if s.defaultSource == "" {
		s.defaultSource = SourcePrimary
	}
	if s.defaultStrategy == "" {
		s.defaultStrategy = string(model.StrategyBalanced)
	}
	if s.explainer == nil {
		s.explainer = explainer.PlaceholderExplainer{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Generate builds and saves a suggestion for req.StoreID. Missing stores and
// coordinates, and forecast failures, block generation; explanation failures
// never do.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	store, err := s.repo.GetStore(ctx, req.StoreID)
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	loc := store.Location()
	if !loc.Complete() {
		return nil, fmt.Errorf("store %d (%s): %w", store.ID, store.Name, ErrMissingCoordinates)
	}

	source := req.Source
	if source == "" {
		source = s.defaultSource
	}
	fetcher, ok := s.fetchers[source]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}

	fetched, err := fetcher.Fetch(ctx, loc)
	if err != nil {
		metrics.ForecastFetches.WithLabelValues(source, noSource, "error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrForecastUnavailable, err)
	}
	metrics.ForecastFetches.WithLabelValues(source, fetched.Source, "ok").Inc()
	metrics.ForecastFallbacks.Add(float64(len(fetched.Warnings)))

	strategy := req.Strategy
	if strategy == "" {
		strategy = s.defaultStrategy
	}
	now := s.now()
	suggestion := forecaster.BuildWeeklySuggestionAt(fetched.Forecast, store.BaseDemand, strategy, now)

	rec := &model.SuggestionRecord{
		StoreID:     store.ID,
		Suggestion:  *suggestion,
		Explanation: s.explain(ctx, suggestion),
		CreatedAt:   now.UTC(),
	}
	if _, err := s.repo.SaveSuggestion(ctx, rec); err != nil {
		return nil, fmt.Errorf("save suggestion: %w", err)
	}
	rec.StoreName = store.Name
	metrics.SuggestionsGenerated.WithLabelValues(string(suggestion.Strategy)).Inc()

	s.log.Info().
		Int64("store_id", store.ID).
		Int64("suggestion_id", rec.ID).
		Str("source", fetched.Source).
		Str("strategy", string(suggestion.Strategy)).
		Int("days", len(fetched.Forecast)).
		Int("warnings", len(fetched.Warnings)).
		Msg("suggestion generated")

	return &Result{Record: rec, Store: store, Source: fetched.Source, Warnings: fetched.Warnings}, nil
}

func (s *Service) explain(ctx context.Context, suggestion *model.WeeklySuggestion) string {
	ctx, cancel := context.WithTimeout(ctx, ExplanationTimeout)
	defer cancel()

	start := time.Now()
	text := s.explainer.Explain(ctx, explainer.BuildPrompt(suggestion))
	metrics.ExplanationDuration.Observe(time.Since(start).Seconds())
	metrics.Explanations.WithLabelValues(s.explainer.Name()).Inc()
	return text
}

// RegisterStore saves a new store; an absent baseline becomes the default one.
func (s *Service) RegisterStore(ctx context.Context, store *model.Store) error {
	if store.BaseDemand == nil {
		store.BaseDemand = model.DefaultBaseline()
	}
	if _, err := s.repo.CreateStore(ctx, store); err != nil {
		return fmt.Errorf("register store: %w", err)
	}
	s.log.Info().Int64("store_id", store.ID).Str("name", store.Name).Bool("located", store.Location().Complete()).Msg("store registered")
	return nil
}

// Store returns one store or an error wrapping storage.ErrNotFound.
func (s *Service) Store(ctx context.Context, id int64) (*model.Store, error) {
	return s.repo.GetStore(ctx, id)
}

// Stores lists every registered store.
func (s *Service) Stores(ctx context.Context) ([]model.Store, error) {
	return s.repo.ListStores(ctx)
}

// History lists every persisted suggestion, newest first.
func (s *Service) History(ctx context.Context) ([]model.SuggestionRecord, error) {
	return s.repo.ListSuggestions(ctx)
}
