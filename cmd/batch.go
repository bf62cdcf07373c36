package main

import (
	"context"
	"errors"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospect-pipeline/internal/ledger"
	"github.com/sells-group/prospect-pipeline/internal/model"
	"github.com/sells-group/prospect-pipeline/internal/pipeline"
	"github.com/sells-group/prospect-pipeline/pkg/intake"
)

var batchLimit int

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Research queued prospects from the Notion intake queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		pages, err := intake.QueryQueued(ctx, env.Intake, cfg.Notion.ProspectDB)
		if err != nil {
			return eris.Wrap(err, "query intake queue")
		}

		return processBatch(ctx, pages, batchLimit, cfg.Batch.MaxConcurrentProspects, env.Intake, func(ctx context.Context, p model.Prospect) (*pipeline.Result, error) {
			resolved, err := resolveProspect(ctx, env.Ledger, p)
			if err != nil {
				return nil, err
			}
			return env.Pipeline.Research(ctx, resolved.ID)
		})
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of prospects to process")
	rootCmd.AddCommand(batchCmd)
}

// researchFunc is the callback signature for researching one intake prospect.
type researchFunc func(ctx context.Context, p model.Prospect) (*pipeline.Result, error)

// resolveProspect saves the queue page's prospect, resuming the existing
// record when the page was processed before: stage, score, and attempt
// history stay intact and only the queue-sourced fields are refreshed.
func resolveProspect(ctx context.Context, led ledger.Ledger, queued model.Prospect) (*model.Prospect, error) {
	existing, err := led.GetProspect(ctx, queued.ID)
	switch {
	case err == nil:
		existing.BusinessName = queued.BusinessName
		existing.Location = queued.Location
		existing.WebsiteURL = queued.WebsiteURL
		existing.ContactName = queued.ContactName
		existing.ContactEmail = queued.ContactEmail
		if err := led.SaveProspect(ctx, existing); err != nil {
			return nil, eris.Wrap(err, "refresh prospect")
		}
		return existing, nil
	case errors.Is(err, ledger.ErrProspectNotFound):
		if err := led.SaveProspect(ctx, &queued); err != nil {
			return nil, eris.Wrap(err, "save prospect")
		}
		return &queued, nil
	default:
		return nil, eris.Wrap(err, "load prospect")
	}
}

// processBatch applies limit, then researches prospects concurrently. If
// intakeClient is non-nil, the Notion page status tracks the outcome.
func processBatch(ctx context.Context, pages []notionapi.Page, limit, concurrency int, intakeClient intake.Client, research researchFunc) error {
	if len(pages) == 0 {
		zap.L().Info("no queued prospects found")
		return nil
	}

	if limit > 0 && len(pages) > limit {
		pages = pages[:limit]
	}

	zap.L().Info("processing batch",
		zap.Int("prospects", len(pages)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for _, page := range pages {
		prospect := intake.PageToProspect(page)
		g.Go(func() error {
			log := zap.L().With(
				zap.String("prospect_id", prospect.ID),
				zap.String("business", prospect.BusinessName),
			)

			markStatus(gctx, intakeClient, prospect.NotionPageID, intake.StatusResearching, log)

			result, err := research(gctx, prospect)
			if err != nil {
				failed.Add(1)
				log.Error("research failed", zap.Error(err))
				markStatus(gctx, intakeClient, prospect.NotionPageID, intake.StatusFailed, log)
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			log.Info("research complete",
				zap.Int("score", result.Prospect.QualificationScore),
				zap.String("stage", string(result.Prospect.PipelineStage)),
			)
			markStatus(gctx, intakeClient, prospect.NotionPageID, intake.StatusDone, log)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}

// markStatus updates the intake page status, logging failures instead of
// propagating them.
func markStatus(ctx context.Context, c intake.Client, pageID, status string, log *zap.Logger) {
	if c == nil || pageID == "" {
		return
	}
	if err := intake.MarkStatus(ctx, c, pageID, status); err != nil {
		log.Warn("failed to update intake status",
			zap.String("status", status),
			zap.Error(err),
		)
	}
}
