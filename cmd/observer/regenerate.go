package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-observer/internal/extraction"
	"github.com/Veraticus/the-observer/internal/model"
)

func regenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Rewrite a daily report from edited text",
		Long: `Run only the report synthesis step on text the observer has corrected,
such as an edited transcript. Nothing is saved.`,
		RunE: runRegenerate,
	}

	cmd.Flags().StringP("file", "f", "", "text file (- for stdin)")
	cmd.Flags().String("student-name", "", "student name printed in the report")
	cmd.Flags().String("observer-name", "", "observer name printed in the report")
	cmd.Flags().String("date", "", "session date (dd/mm/yyyy)")

	for _, name := range []string{"file", "student-name", "observer-name", "date"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func runRegenerate(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	path, _ := flags.GetString("file")
	studentName, _ := flags.GetString("student-name")
	observerName, _ := flags.GetString("observer-name")
	date, _ := flags.GetString("date")

	text, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStorage(store)

	orchestrator, err := createOrchestrator(orchestratorOptions{
		store:     store,
		extractor: &extraction.Router{},
	})
	if err != nil {
		return err
	}

	report, err := orchestrator.RegenerateReport(ctx, string(text), model.SessionInfo{
		StudentName:  studentName,
		ObserverName: observerName,
		SessionDate:  date,
	})
	if err != nil {
		return fmt.Errorf("regenerate failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), report)
	return nil
}
