package scheduler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"IceStock/internal/metrics"
	"IceStock/internal/model"
	"IceStock/internal/notifier"
	"IceStock/internal/planner"
	"IceStock/internal/storage"
)

// DefaultConcurrency bounds how many stores are planned at once.
const DefaultConcurrency = 4

// historyLimit is how many suggestions /historial shows.
const historyLimit = 10

// Planner is the part of planner.Service the scheduler drives.
type Planner interface {
	Generate(ctx context.Context, req planner.Request) (*planner.Result, error)
	Stores(ctx context.Context) ([]model.Store, error)
	History(ctx context.Context) ([]model.SuggestionRecord, error)
}

// Options configures the weekly job.
type Options struct {
	Strategy    string
	Source      string
	Concurrency int
}

// RunSummary counts the outcome of one weekly run.
type RunSummary struct {
	RunID     string
	Generated int
	Skipped   int // stores without coordinates
	Failed    int
}

// Scheduler manages the weekly cron task and the chat commands.
type Scheduler struct {
	Cron     *cron.Cron
	Planner  Planner
	Notifier notifier.Notifier
	Ctx      context.Context
	opts     Options
	log      zerolog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, p Planner, n notifier.Notifier, opts Options, log zerolog.Logger) *Scheduler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Planner:  p,
		Notifier: n,
		Ctx:      ctx,
		opts:     opts,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// Register adds the weekly suggestion task.
func (s *Scheduler) Register(weeklyCron string) error {
	if _, err := s.Cron.AddFunc(weeklyCron, s.weeklyTask); err != nil {
		return fmt.Errorf("register weekly task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunWeeklyNow executes the weekly task immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunWeeklyNow() {
	s.weeklyTask()
}

func (s *Scheduler) weeklyTask() {
	if _, err := s.RunWeekly(s.Ctx); err != nil {
		s.log.Error().Err(err).Msg("weekly task failed")
		s.trySend(s.Ctx, fmt.Sprintf("❌ Falló la tarea semanal: %s", html.EscapeString(err.Error())))
	}
}

// RunWeekly generates and pushes a suggestion for every store with
// coordinates. A failing store is logged and counted, it does not stop the run.
func (s *Scheduler) RunWeekly(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{RunID: uuid.NewString()}
	log := s.log.With().Str("run_id", summary.RunID).Logger()
	log.Info().Msg("running weekly task")

	stores, err := s.Planner.Stores(ctx)
	if err != nil {
		return summary, fmt.Errorf("list stores: %w", err)
	}

	eligible := make([]model.Store, 0, len(stores))
	for _, store := range stores {
		if !store.Location().Complete() {
			log.Info().Int64("store_id", store.ID).Msg("store has no coordinates, skipped")
			summary.Skipped++
			metrics.WeeklyRuns.WithLabelValues("skipped").Inc()
			continue
		}
		eligible = append(eligible, store)
	}

	// The group has no context, so one failing store does not cancel the rest.
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	failures := make([]error, len(eligible))
	for i, store := range eligible {
		g.Go(func() error {
			res, err := s.Planner.Generate(ctx, planner.Request{
				StoreID:  store.ID,
				Strategy: s.opts.Strategy,
				Source:   s.opts.Source,
			})
			if err != nil {
				log.Error().Err(err).Int64("store_id", store.ID).Msg("weekly suggestion failed")
				failures[i] = fmt.Errorf("store %d: %w", store.ID, err)
				return failures[i]
			}
			s.trySend(ctx, notifier.FormatWeeklySuggestion(res.Record, res.Source, res.Warnings))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(errors.Join(failures...)).Msg("weekly task finished with failures")
	}
	for _, err := range failures {
		if err != nil {
			summary.Failed++
			metrics.WeeklyRuns.WithLabelValues("error").Inc()
			continue
		}
		summary.Generated++
		metrics.WeeklyRuns.WithLabelValues("ok").Inc()
	}
	metrics.LastWeeklyRun.SetToCurrentTime()

	if summary.Failed > 0 {
		s.trySend(ctx, fmt.Sprintf("⚠️ Tarea semanal: %d sugerencias generadas, %d tiendas con error", summary.Generated, summary.Failed))
	}
	log.Info().
		Int("generated", summary.Generated).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("weekly task finished")
	return summary, nil
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	// "/cmd@BotName" is how Telegram addresses commands in groups.
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	args := fields[1:]

	switch name {
	case "/semana", "/weekly":
		s.weeklyTask()
		return ""
	case "/tiendas", "/stores":
		stores, err := s.Planner.Stores(ctx)
		if err != nil {
			return fmt.Sprintf("❌ No se pudieron listar las tiendas: %s", html.EscapeString(err.Error()))
		}
		return notifier.FormatStoreList(stores)
	case "/sugerir", "/suggest":
		return s.suggest(ctx, args)
	case "/historial", "/history":
		history, err := s.Planner.History(ctx)
		if err != nil {
			return fmt.Sprintf("❌ No se pudo leer el historial: %s", html.EscapeString(err.Error()))
		}
		return notifier.FormatHistory(history, historyLimit)
	default:
		return helpText
	}
}

const helpText = "Comandos disponibles:\n• /tiendas\n• /sugerir &lt;id&gt; [estrategia]\n• /historial\n• /semana"

func (s *Scheduler) suggest(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "Uso: /sugerir &lt;id&gt; [estrategia]"
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Sprintf("Id de tienda inválido: %q", html.EscapeString(args[0]))
	}
	req := planner.Request{StoreID: id, Strategy: s.opts.Strategy, Source: s.opts.Source}
	if len(args) > 1 {
		req.Strategy = args[1]
	}

	res, err := s.Planner.Generate(ctx, req)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Sprintf("No existe la tienda %d.", id)
	case errors.Is(err, planner.ErrMissingCoordinates):
		return "La tienda no tiene latitud/longitud registradas."
	case err != nil:
		return fmt.Sprintf("❌ No se pudo generar la sugerencia: %s", html.EscapeString(err.Error()))
	}
	return notifier.FormatWeeklySuggestion(res.Record, res.Source, res.Warnings)
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if err := s.Notifier.Notify(ctx, text); err != nil {
		s.log.Error().Err(err).Msg("send notification")
	}
}
