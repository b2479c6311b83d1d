package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-gateway/pkg/logger"
)

// Purger drops expired entries from a store that has no native TTL eviction.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// NamedPurger labels a Purger in logs.
type NamedPurger struct {
	Name   string
	Purger Purger
}

type purgeJob struct {
	logg    *logger.Logger
	targets []NamedPurger
}

// NewPurgeJob sweeps every target on each run. It returns nil when no target needs sweeping,
// which the Registry ignores.
func NewPurgeJob(logg *logger.Logger, targets ...NamedPurger) Job {
	kept := make([]NamedPurger, 0, len(targets))
	for _, t := range targets {
		if t.Purger != nil {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &purgeJob{logg: logg, targets: kept}
}

func (j *purgeJob) Name() string { return "state-purge" }

// Run sweeps all targets even when one fails and reports the combined error.
func (j *purgeJob) Run(ctx context.Context) error {
	var errs error
	for _, t := range j.targets {
		removed, err := t.Purger.PurgeExpired(ctx)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("purge %s: %w", t.Name, err))
			continue
		}
		if removed > 0 {
			j.logg.Info(j.logg.WithFields(ctx, map[string]any{"target": t.Name, "rows_deleted": removed}), "maintenance.purged")
		}
	}
	return errs
}
