package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-observer/internal/cli"
	"github.com/Veraticus/the-observer/internal/model"
)

func feedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record parent feedback on goal alignments",
	}

	cmd.AddCommand(feedbackAddCmd())
	cmd.AddCommand(feedbackListCmd())

	return cmd
}

func feedbackAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Rate an alignment analysis",
		RunE:  runFeedbackAdd,
	}

	cmd.Flags().String("alignment", "", "alignment id")
	cmd.Flags().String("parent", "", "parent id")
	cmd.Flags().Int("rating", 0, "rating from 1 to 5")
	cmd.Flags().String("text", "", "optional comment")
	for _, name := range []string{"alignment", "parent", "rating"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func runFeedbackAdd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	alignmentID, _ := flags.GetString("alignment")
	parentID, _ := flags.GetString("parent")
	rating, _ := flags.GetInt("rating")
	text, _ := flags.GetString("text")

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStorage(store)

	feedback := &model.AlignmentFeedback{
		AlignmentID: alignmentID,
		ParentID:    parentID,
		Rating:      rating,
		Text:        text,
	}
	if err := store.AddAlignmentFeedback(ctx, feedback); err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Saved feedback "+feedback.ID))
	return nil
}

func feedbackListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show feedback for an alignment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			alignmentID, _ := cmd.Flags().GetString("alignment")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStorage(store)

			items, err := store.ListAlignmentFeedback(ctx, alignmentID)
			if err != nil {
				return fmt.Errorf("failed to list feedback: %w", err)
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No feedback yet."))
				return nil
			}
			for _, f := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d/5 %s\n", cli.BoldStyle.Render(f.ParentID), f.Rating, f.Text)
			}
			return nil
		},
	}

	cmd.Flags().String("alignment", "", "alignment id")
	_ = cmd.MarkFlagRequired("alignment")

	return cmd
}
