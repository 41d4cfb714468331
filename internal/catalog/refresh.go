package catalog

import (
	"context"
	"log/slog"

	"github.com/calmahq/calma/internal/provider"
)

// RefreshJob periodically re-reads each backend's model listing into the
// catalog so the fallback candidate universe tracks what the provider
// actually serves. Providers without a listing endpoint keep their seed list.
type RefreshJob struct {
	catalog   *Catalog
	providers map[string]provider.Provider
	schedule  string
	logger    *slog.Logger
}

// NewRefreshJob creates a refresh job over the given providers.
func NewRefreshJob(c *Catalog, providers map[string]provider.Provider, schedule string, logger *slog.Logger) *RefreshJob {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RefreshJob{
		catalog:   c,
		providers: providers,
		schedule:  schedule,
		logger:    logger,
	}
}

// Name implements cron.Job.
func (j *RefreshJob) Name() string { return "catalog.refresh" }

// Schedule implements cron.Job.
func (j *RefreshJob) Schedule() string { return j.schedule }

// Run refreshes the catalog from every provider that supports listing.
// A failed listing leaves the previous catalog entry untouched.
func (j *RefreshJob) Run(ctx context.Context) error {
	for name, p := range j.providers {
		lister, ok := p.(provider.ModelLister)
		if !ok {
			continue
		}

		models, err := lister.ListModels(ctx)
		if err != nil {
			j.logger.Warn("model listing failed", "provider", name, "error", err)
			continue
		}
		if len(models) == 0 {
			continue
		}

		j.catalog.SetModels(name, models)
		j.logger.Debug("catalog refreshed", "provider", name, "models", len(models))
	}
	return nil
}
