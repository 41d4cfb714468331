package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/calmahq/calma/internal/catalog"
	"github.com/calmahq/calma/internal/core"
	"github.com/calmahq/calma/internal/cron"
	"github.com/calmahq/calma/internal/memory"
	"github.com/calmahq/calma/internal/notify"
	"github.com/calmahq/calma/internal/observability"
	"github.com/calmahq/calma/internal/provider"
	"github.com/calmahq/calma/internal/safety"
	"github.com/calmahq/calma/internal/transcript"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Module       = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module wires the pipeline and its collaborators from configuration and
// registered services. Providers and stores must load before it; the
// resolver guarantees that order.
type Module struct {
	config    Config
	logger    *slog.Logger
	pipeline  *Pipeline
	scheduler *cron.Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "pipeline",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return err
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	m.config.defaults()

	providers := make(map[string]provider.Provider)
	for _, svc := range ctx.ServicesByPrefix("provider.") {
		p, ok := svc.(provider.Provider)
		if !ok {
			continue
		}
		providers[p.Name()] = p
	}
	if len(providers) == 0 {
		return errors.New("pipeline: no provider modules loaded")
	}

	active, ok := providers[m.config.Provider]
	if !ok {
		return fmt.Errorf("pipeline: provider %q is not loaded", m.config.Provider)
	}

	var metrics *observability.Metrics
	if svc, ok := ctx.Service("metrics"); ok {
		metrics, _ = svc.(*observability.Metrics)
	}

	var diagnostics *provider.Diagnostics
	if svc, ok := ctx.Service("diagnostics"); ok {
		diagnostics, _ = svc.(*provider.Diagnostics)
	}
	if diagnostics == nil {
		diagnostics = provider.NewDiagnostics()
		ctx.RegisterService("diagnostics", diagnostics)
	}

	var turns transcript.Store = transcript.NewMemStore()
	if svc, ok := ctx.Service("store.transcript"); ok {
		if s, ok := svc.(transcript.Store); ok {
			turns = s
		}
	}
	var summaries memory.Store = memory.NewMemStore()
	if svc, ok := ctx.Service("store.summaries"); ok {
		if s, ok := svc.(memory.Store); ok {
			summaries = s
		}
	}
	var alertState notify.StateStore = notify.NewMemStateStore()
	if svc, ok := ctx.Service("store.notify"); ok {
		if s, ok := svc.(notify.StateStore); ok {
			alertState = s
		}
	}

	cat := catalog.New(m.config.Catalog)

	m.pipeline = NewPipeline(m.config, Deps{
		Provider: active,
		Classifier: safety.NewClassifier(active, m.config.Safety,
			ctx.Logger.With("component", "safety")),
		Notifier: notify.NewNotifier(m.config.notifyConfig(),
			notify.Contact{Email: m.config.Notify.ContactEmail}, alertState,
			ctx.Logger.With("component", "notify")),
		Summarizer: memory.NewSummarizer(active, turns, summaries,
			m.config.Summarizer, ctx.Logger.With("component", "memory")),
		Catalog:     cat,
		Transcript:  turns,
		Summaries:   summaries,
		Diagnostics: diagnostics,
		Metrics:     metrics,
		Logger:      ctx.Logger,
	})

	m.scheduler = cron.NewScheduler(ctx.Logger)
	job := catalog.NewRefreshJob(cat, providers, m.config.RefreshSchedule,
		ctx.Logger.With("component", "catalog"))
	if err := m.scheduler.RegisterJob(job); err != nil {
		return err
	}

	ctx.RegisterService("pipeline", m.pipeline)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.config.Provider == "" {
		return errors.New("pipeline: provider is required")
	}
	if len(m.config.Catalog[m.config.Provider]) == 0 {
		return fmt.Errorf("pipeline: catalog has no models for provider %q", m.config.Provider)
	}
	return nil
}

// Start implements core.Starter.
func (m *Module) Start() error {
	return m.scheduler.Start()
}

// Stop implements core.Stopper. It stops the catalog refresher and drains
// in-flight notifier and summarizer goroutines.
func (m *Module) Stop(ctx context.Context) error {
	if err := m.scheduler.Stop(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		m.pipeline.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Second):
		m.logger.Warn("shutdown timed out waiting for background work")
		return nil
	}
}
