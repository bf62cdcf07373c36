package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-pipeline/internal/model"
)

var (
	stageID     string
	stageAction string
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Apply a manual pipeline action to a prospect",
	Long: `Applies an explicit sales action (advance, hold, lost, meeting_scheduled,
won) to a prospect's pipeline stage and syncs the change to the CRM when
enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind, err := parseActionKind(stageAction)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, "research")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Act(ctx, stageID, kind)
		if err != nil {
			return eris.Wrap(err, "apply action")
		}

		t := result.Transition
		if t.Changed {
			fmt.Printf("%s: %s -> %s (%s)\n", result.Prospect.BusinessName, t.From, t.To, t.Reason)
		} else {
			fmt.Printf("%s: stage unchanged at %s (%s)\n", result.Prospect.BusinessName, t.To, t.Reason)
		}
		return nil
	},
}

func init() {
	stageCmd.Flags().StringVar(&stageID, "id", "", "prospect ID (required)")
	stageCmd.Flags().StringVar(&stageAction, "action", "", "action to apply: advance, hold, lost, meeting_scheduled, won (required)")
	_ = stageCmd.MarkFlagRequired("id")
	_ = stageCmd.MarkFlagRequired("action")
	rootCmd.AddCommand(stageCmd)
}

func parseActionKind(s string) (model.ActionKind, error) {
	switch kind := model.ActionKind(s); kind {
	case model.ActionAdvance, model.ActionHold, model.ActionLost,
		model.ActionMeetingScheduled, model.ActionWon:
		return kind, nil
	default:
		return "", eris.Errorf("unknown action %q", s)
	}
}
