package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-pipeline/internal/model"
)

var statusID string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a prospect's record and attempt history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		led, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer led.Close()

		if err := led.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate ledger")
		}

		prospect, err := led.GetProspect(ctx, statusID)
		if err != nil {
			return err
		}

		attempts, err := led.ListAttempts(ctx, statusID)
		if err != nil {
			return eris.Wrap(err, "list attempts")
		}

		printStatus(prospect, attempts)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusID, "id", "", "prospect ID (required)")
	_ = statusCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(statusCmd)
}

func printStatus(p *model.Prospect, attempts []model.Attempt) {
	fmt.Printf("Prospect:  %s (%s)\n", p.BusinessName, p.ID)
	if p.Location != "" {
		fmt.Printf("Location:  %s\n", p.Location)
	}
	if p.Industry != "" {
		fmt.Printf("Industry:  %s\n", p.Industry)
	}
	if p.WebsiteURL != "" {
		fmt.Printf("Website:   %s\n", p.WebsiteURL)
	}
	fmt.Printf("Stage:     %s\n", p.PipelineStage)
	fmt.Printf("Score:     %d / 100\n", p.QualificationScore)
	if p.SalesforceID != "" {
		fmt.Printf("SF ID:     %s\n", p.SalesforceID)
	}

	var presence []string
	if p.Presence.HasWebsite {
		presence = append(presence, "website")
	}
	if p.Presence.HasGoogleBusiness {
		presence = append(presence, "google business")
	}
	if p.Presence.HasSocialMedia {
		presence = append(presence, "social media")
	}
	if p.Presence.HasOnlineReviews {
		presence = append(presence, "online reviews")
	}
	if len(presence) > 0 {
		fmt.Printf("Presence:  %s\n", strings.Join(presence, ", "))
	}

	if len(attempts) == 0 {
		fmt.Println("\nNo research attempts yet.")
		return
	}

	fmt.Printf("\nAttempts (%d):\n", len(attempts))
	for _, a := range attempts {
		fmt.Printf("  #%d  %s\n", a.Number, a.StartedAt.Format("2006-01-02 15:04:05"))
		for _, r := range a.Results {
			switch r.Outcome {
			case model.OutcomeSucceeded:
				fmt.Printf("    %-22s succeeded (%dms)\n", r.Pass, r.DurationMs)
			case model.OutcomeFailed:
				fmt.Printf("    %-22s FAILED: %s\n", r.Pass, r.Error)
			case model.OutcomeSkipped:
				fmt.Printf("    %-22s skipped: %s\n", r.Pass, r.Error)
			}
		}
	}
}
