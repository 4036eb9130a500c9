package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Veraticus/the-observer/internal/cli"
	"github.com/Veraticus/the-observer/internal/config"
	"github.com/Veraticus/the-observer/internal/delivery"
	"github.com/Veraticus/the-observer/internal/model"
	"github.com/Veraticus/the-observer/internal/render"
)

// reportSubject is the email subject for one session's report.
func reportSubject(session model.SessionInfo) string {
	return fmt.Sprintf("%s for %s, %s", render.DocxTitle, session.StudentName, session.SessionDate)
}

// writeReportDocx saves report as a Word document at path.
func writeReportDocx(out io.Writer, path, report string) error {
	var buf bytes.Buffer
	if err := render.Docx(&buf, report); err != nil {
		return fmt.Errorf("failed to build document: %w", err)
	}
	if err := os.WriteFile(config.ExpandPath(path), buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintln(out, cli.FormatSuccess("Wrote "+path))
	return nil
}

// emailReport sends report to a parent as an HTML email.
func emailReport(ctx context.Context, out io.Writer, to string, session model.SessionInfo, report string) error {
	mailer, err := delivery.New(config.LoadMailConfig(), slog.Default())
	if err != nil {
		return err
	}
	subject := reportSubject(session)
	page, err := render.ReportHTML(subject, report)
	if err != nil {
		return err
	}
	if err := mailer.Send(ctx, delivery.Message{To: to, Subject: subject, HTML: page}); err != nil {
		return err
	}
	fmt.Fprintln(out, cli.FormatSuccess("Emailed report to "+to))
	return nil
}
