package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-pipeline/internal/pipeline"
)

var scoreID string

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Recompute a prospect's qualification score from ledger data",
	Long: `Recomputes the 0-100 qualification score from the research outputs
already recorded in the attempt ledger, without invoking any provider.
Run this after changing the scoring config to re-rank existing prospects.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "research")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Rescore(ctx, scoreID)
		if err != nil {
			return eris.Wrap(err, "rescore")
		}

		printScore(result)
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreID, "id", "", "prospect ID (required)")
	_ = scoreCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(scoreCmd)
}

func printScore(r *pipeline.Result) {
	p := r.Prospect
	fmt.Printf("Prospect: %s\n", p.BusinessName)
	fmt.Printf("Stage:    %s\n", p.PipelineStage)
	fmt.Printf("Score:    %d / 100\n", p.QualificationScore)

	if b := p.ScoreBreakdown; b != nil {
		fmt.Println("\nBreakdown:")
		fmt.Printf("  %-20s %3d / 20\n", "Business size", b.BusinessSize)
		fmt.Printf("  %-20s %3d / 25\n", "Digital presence", b.DigitalPresence)
		fmt.Printf("  %-20s %3d / 20\n", "Competitor gaps", b.CompetitorGaps)
		fmt.Printf("  %-20s %3d / 15\n", "Location", b.Location)
		fmt.Printf("  %-20s %3d / 10\n", "Industry fit", b.IndustryFit)
		fmt.Printf("  %-20s %3d / 10\n", "Revenue indicator", b.RevenueIndicator)
	}

	if len(r.Gaps) > 0 {
		fmt.Println("\nGaps (missing research data):")
		for _, g := range r.Gaps {
			fmt.Printf("  %-20s blocked by %-20s up to %d points\n", g.Category, g.Pass, g.MaxGain)
		}
	}

	if r.Transition.Changed {
		fmt.Printf("\nStage changed: %s -> %s (%s)\n", r.Transition.From, r.Transition.To, r.Transition.Reason)
	}
}
