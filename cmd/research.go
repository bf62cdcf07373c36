package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-pipeline/internal/ledger"
)

var researchID string

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Run one research attempt for a single prospect",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "research")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Research(ctx, researchID)
		if err != nil {
			if eris.Is(err, ledger.ErrAttemptInFlight) {
				return eris.Wrap(err, "another attempt is already running for this prospect")
			}
			return eris.Wrap(err, "research")
		}

		zap.L().Info("research complete",
			zap.String("prospect_id", result.Prospect.ID),
			zap.String("business", result.Prospect.BusinessName),
			zap.Int("score", result.Prospect.QualificationScore),
			zap.String("stage", string(result.Prospect.PipelineStage)),
			zap.Int("gaps", len(result.Gaps)),
		)

		// Print result JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	researchCmd.Flags().StringVar(&researchID, "id", "", "prospect ID (required)")
	_ = researchCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(researchCmd)
}
