package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/seasonboard/pkg/logger"
)

// Run probes the service described by cfg. The returned error wraps
// ErrVerificationFailed when the service answered but broke an invariant.
func Run(ctx context.Context, cfg *Config, log logger.Logger) (Report, error) {
	start := time.Now()
	rep := Report{Period: cfg.Period}

	log.Info(ctx, "starting leaderboard probe",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("period", cfg.Period),
		logger.Int("pageSize", cfg.PageSize),
		logger.Int("workers", cfg.Workers),
		logger.Int("seasons", len(cfg.Seasons)))

	c := newClient(cfg.BaseURL, cfg.Timeout)
	if err := c.health(ctx); err != nil {
		return rep, fmt.Errorf("service health check failed: %w", err)
	}

	pages, err := c.fetchAll(ctx, cfg)
	if err != nil {
		return rep, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	var entries []Entry
	for _, p := range pages {
		if cfg.Verbose {
			log.Debug(ctx, "page", logger.Int("page", p.Page), logger.Int("entries", len(p.Entries)))
		}
		entries = append(entries, p.Entries...)
	}
	rep.Pages = len(pages)
	rep.Entries = len(entries)
	rep.TotalCount = pages[0].TotalCount
	rep.Source = pages[0].Source
	rep.Problems = CheckEntries(entries, rep.TotalCount)

	for _, season := range cfg.Seasons {
		ok, err := c.verifySeason(ctx, season)
		if err != nil {
			return rep, fmt.Errorf("verify season %d: %w", season, err)
		}
		rep.SeasonsChecked++
		if !ok {
			rep.SeasonsInvalid = append(rep.SeasonsInvalid, season)
		}
	}

	rep.Duration = time.Since(start)
	for _, p := range rep.Problems {
		log.Warn(ctx, "leaderboard invariant broken", logger.String("problem", p))
	}
	log.Info(ctx, "probe finished",
		logger.Int("pages", rep.Pages),
		logger.Int("entries", rep.Entries),
		logger.String("source", rep.Source),
		logger.Int("problems", len(rep.Problems)),
		logger.Int("seasonsChecked", rep.SeasonsChecked),
		logger.Int("seasonsInvalid", len(rep.SeasonsInvalid)),
		logger.Duration("duration", rep.Duration))

	if !rep.OK() {
		return rep, fmt.Errorf("%w: %d problems, %d invalid snapshots", ErrVerificationFailed, len(rep.Problems), len(rep.SeasonsInvalid))
	}
	return rep, nil
}
