// Package retention implements the periodic artifact-retention sweep
// referenced by the artifact manifest's retention_days fields. The object
// store holding raw/intermediate/output artifacts is out of this core's
// scope, so the sweep never deletes bytes itself: it identifies Jobs whose
// artifacts have crossed their configured retention window and records
// that as an auditable JobEvent, ahead of wiring a real object store
// client.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/clipforge/editpipeline/internal/job"
	"github.com/clipforge/editpipeline/internal/store"
	"github.com/clipforge/editpipeline/internal/telemetry"
)

// Category is one retained artifact class, matching the manifest returned
// by GET /api/v1/jobs/{id}/artifacts.
type Category struct {
	Name          string
	RetentionDays int
}

// Sweeper scans terminal Jobs and flags the ones whose artifacts have aged
// past their configured retention window.
type Sweeper struct {
	Store      store.Store
	Categories []Category
	ScanLimit  int
	Logger     telemetry.Logger
}

// NewSweeper builds a Sweeper from the three configured retention windows.
func NewSweeper(st store.Store, rawDays, intermediateDays, outputDays, scanLimit int, logger telemetry.Logger) *Sweeper {
	return &Sweeper{
		Store: st,
		Categories: []Category{
			{Name: "raw", RetentionDays: rawDays},
			{Name: "intermediate", RetentionDays: intermediateDays},
			{Name: "output", RetentionDays: outputDays},
		},
		ScanLimit: scanLimit,
		Logger:    logger,
	}
}

// Run scans the most recent ScanLimit Jobs and, for each terminal Job
// whose age exceeds a category's retention window, logs a
// retention_expired JobEvent naming that category. It returns the number of
// (Job, category) expiries flagged, so a Job past two windows counts twice.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	jobs, err := s.Store.ListJobs(ctx, s.ScanLimit)
	if err != nil {
		return 0, fmt.Errorf("retention: list jobs: %w", err)
	}

	now := time.Now().UTC()
	flagged := 0
	for _, j := range jobs {
		if !j.Status.Terminal() {
			continue
		}
		age := now.Sub(j.UpdatedAt.UTC())
		for _, cat := range s.Categories {
			if cat.RetentionDays <= 0 {
				continue
			}
			if age < time.Duration(cat.RetentionDays)*24*time.Hour {
				continue
			}
			flagged++
			if _, err := s.Store.LogJobEvent(ctx, job.Event{
				JobID:   j.ID,
				Stage:   "retention_expired",
				Level:   job.LevelInfo,
				Message: fmt.Sprintf("%s artifacts past retention window", cat.Name),
				Payload: map[string]any{
					"category":       cat.Name,
					"retention_days": cat.RetentionDays,
					"age_days":       int(age.Hours() / 24),
				},
			}); err != nil && s.Logger != nil {
				s.Logger.Warn(ctx, "retention: failed to log expiry event", "job_id", j.ID, "category", cat.Name, "error", err.Error())
			}
		}
	}
	return flagged, nil
}
