package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-observer/internal/aggregation"
	"github.com/Veraticus/the-observer/internal/cli"
	"github.com/Veraticus/the-observer/internal/config"
	"github.com/Veraticus/the-observer/internal/model"
	"github.com/Veraticus/the-observer/internal/render"
	"github.com/Veraticus/the-observer/internal/sheets"
)

func aggregateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Summarise a child's month of observations",
		Long: `Count strengths and areas of development across a month of observations,
average goal alignment scores, and write the monthly progress summary.

Examples:
  observer aggregate --child c1 --month 2024-03
  observer aggregate --child c1 --month 2024-03 --html march.html
  observer aggregate --child c1 --month 2024-03 --save --feedback "Great month"
  observer aggregate --child c1 --month 2024-03 --sheets`,
		RunE: runAggregate,
	}

	cmd.Flags().String("child", "", "child id")
	cmd.Flags().StringP("month", "m", "", "month to summarise (YYYY-MM, default: current month)")
	cmd.Flags().String("html", "", "also write the summary as an HTML page to this path")
	cmd.Flags().Bool("save", false, "store the result as this month's report snapshot")
	cmd.Flags().String("observer", "", "observer id recorded with the snapshot")
	cmd.Flags().String("feedback", "", "observer feedback stored with the snapshot")
	cmd.Flags().Bool("sheets", false, "export the month to Google Sheets")
	_ = cmd.MarkFlagRequired("child")

	return cmd
}

func runAggregate(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	childID, _ := flags.GetString("child")
	monthFlag, _ := flags.GetString("month")
	htmlPath, _ := flags.GetString("html")
	save, _ := flags.GetBool("save")
	observerID, _ := flags.GetString("observer")
	feedback, _ := flags.GetString("feedback")
	exportSheets, _ := flags.GetBool("sheets")

	year, month, err := parseMonth(monthFlag, time.Now().UTC())
	if err != nil {
		return err
	}

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(), "Aggregation", "")
	defer interrupts.Stop()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStorage(store)

	engine := aggregation.NewEngine(store, slog.Default())
	agg, err := engine.Aggregate(ctx, childID, year, month)
	if err != nil {
		return fmt.Errorf("aggregation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.FormatAggregation(agg))

	if htmlPath != "" {
		page, err := render.HTML(agg)
		if err != nil {
			return fmt.Errorf("failed to render summary: %w", err)
		}
		if err := os.WriteFile(config.ExpandPath(htmlPath), page, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", htmlPath, err)
		}
		fmt.Fprintln(out, cli.FormatSuccess("Wrote "+htmlPath))
	}

	if save {
		snapshot := &model.MonthlySnapshot{
			ChildID:     childID,
			ObserverID:  observerID,
			Year:        year,
			Month:       month,
			Feedback:    feedback,
			Aggregation: agg,
		}
		if err := store.SaveMonthlySnapshot(ctx, snapshot); err != nil {
			return fmt.Errorf("failed to save monthly report: %w", err)
		}
		fmt.Fprintln(out, cli.FormatSuccess("Saved monthly report "+snapshot.ID))
	}

	if exportSheets {
		cfg, err := config.LoadSheetsConfig()
		if err != nil {
			return fmt.Errorf("sheets export is not configured: %w", err)
		}
		writer, err := sheets.NewWriter(ctx, *cfg, slog.Default())
		if err != nil {
			return fmt.Errorf("failed to create sheets writer: %w", err)
		}
		spreadsheetID, err := writer.WriteMonthly(ctx, agg)
		if err != nil {
			return fmt.Errorf("sheets export failed: %w", err)
		}
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Exported %q to spreadsheet %s", sheets.TabTitle(agg), spreadsheetID)))
	}

	return nil
}
