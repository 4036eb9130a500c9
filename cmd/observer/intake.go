package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-observer/internal/cli"
	"github.com/Veraticus/the-observer/internal/metrics"
	"github.com/Veraticus/the-observer/internal/model"
	"github.com/Veraticus/the-observer/internal/pipeline"
)

func intakeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intake",
		Short: "Record an observation from a sheet photo or voice note",
		Long: `Extract text from a photographed observation sheet or an audio recording,
structure it, write the daily report, save it, and score it against the child's
active goals.

Examples:
  observer intake --file sheet.jpg --child c1 --observer o1 \
    --student-name "Maria" --observer-name "Ms. Lee" --date 01/03/2024
  observer intake --file note.m4a --kind audio ...
  observer intake ... --docx report.docx --email parent@example.com`,
		RunE: runIntake,
	}

	cmd.Flags().StringP("file", "f", "", "capture file (- for stdin)")
	cmd.Flags().String("kind", "", "media kind: image or audio (default: detected)")
	cmd.Flags().String("child", "", "child id")
	cmd.Flags().String("observer", "", "observer id")
	cmd.Flags().String("student-name", "", "student name printed in the report")
	cmd.Flags().String("observer-name", "", "observer name printed in the report")
	cmd.Flags().String("date", "", "session date (dd/mm/yyyy)")
	cmd.Flags().Bool("show-report", true, "print the generated report")
	cmd.Flags().String("docx", "", "also save the report as a Word document at this path")
	cmd.Flags().String("email", "", "also email the report to this address (needs email.* config)")

	for _, name := range []string{"file", "child", "observer", "student-name", "observer-name", "date"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func runIntake(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	path, _ := flags.GetString("file")
	kindFlag, _ := flags.GetString("kind")
	childID, _ := flags.GetString("child")
	observerID, _ := flags.GetString("observer")
	studentName, _ := flags.GetString("student-name")
	observerName, _ := flags.GetString("observer-name")
	date, _ := flags.GetString("date")
	showReport, _ := flags.GetBool("show-report")
	docxPath, _ := flags.GetString("docx")
	emailTo, _ := flags.GetString("email")

	data, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		return err
	}
	kind, contentType, err := detectKind(kindFlag, data)
	if err != nil {
		return err
	}

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(), "Intake", "Anything saved before the interrupt is kept; rerun to finish goal scoring.")
	defer interrupts.Stop()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStorage(store)

	collector := metrics.NewCollector("observer")
	defer logMetrics(collector)

	var progress *cli.TranscriptionProgress
	if kind == model.MediaAudio {
		progress = cli.NewTranscriptionProgress(cmd.ErrOrStderr(), collector)
	}

	extractor, err := createExtractor(kind, progress)
	if err != nil {
		return err
	}
	arch, err := createArchive()
	if err != nil {
		return err
	}

	orchestrator, err := createOrchestrator(orchestratorOptions{
		store:     store,
		extractor: extractor,
		archive:   arch,
		metrics:   collector,
	})
	if err != nil {
		return err
	}

	session := model.SessionInfo{
		StudentName:  studentName,
		ObserverName: observerName,
		SessionDate:  date,
	}
	result, err := orchestrator.RunIntake(ctx, pipeline.IntakeRequest{
		Session:    session,
		ChildID:    childID,
		ObserverID: observerID,
		Capture: model.Capture{
			Kind:        kind,
			Filename:    captureName(path, kind),
			ContentType: contentType,
			Data:        data,
		},
	})
	if progress != nil {
		progress.Finish()
	}
	if err != nil {
		return fmt.Errorf("intake failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if showReport {
		fmt.Fprintln(out, result.Report)
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, cli.FormatIntake(result))

	// The observation is already saved; delivery failures are reported but
	// do not undo it.
	if docxPath != "" {
		if err := writeReportDocx(out, docxPath, result.Report); err != nil {
			return fmt.Errorf("observation saved, but %w", err)
		}
	}
	if emailTo != "" {
		if err := emailReport(ctx, out, emailTo, session, result.Report); err != nil {
			return fmt.Errorf("observation saved, but the email failed: %w", err)
		}
	}
	return nil
}

func captureName(path string, kind model.MediaKind) string {
	if path == "-" {
		return fmt.Sprintf("stdin-%s.%s", time.Now().Format("20060102-150405"), kind)
	}
	return filepath.Base(path)
}
