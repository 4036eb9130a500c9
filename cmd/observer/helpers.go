package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Veraticus/the-observer/internal/alignment"
	"github.com/Veraticus/the-observer/internal/archive"
	"github.com/Veraticus/the-observer/internal/cli"
	"github.com/Veraticus/the-observer/internal/config"
	"github.com/Veraticus/the-observer/internal/extraction"
	"github.com/Veraticus/the-observer/internal/llm"
	"github.com/Veraticus/the-observer/internal/metrics"
	"github.com/Veraticus/the-observer/internal/model"
	"github.com/Veraticus/the-observer/internal/pipeline"
	"github.com/Veraticus/the-observer/internal/storage"
	"github.com/Veraticus/the-observer/internal/structuring"
	"github.com/Veraticus/the-observer/internal/synthesis"
)

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.DatabasePath()
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func closeStorage(store *storage.SQLiteStorage) {
	if err := store.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}

// createLLMClient builds the configured provider behind its rate limiter and breaker.
func createLLMClient() (llm.Client, error) {
	cfg, guardCfg, err := config.LoadLLMConfig()
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	guardCfg.Logger = slog.Default()
	return llm.NewGuard(client, guardCfg), nil
}

// createExtractor configures the extractor for kind. The other media kind is
// left unconfigured so a missing key for it does not block this intake.
func createExtractor(kind model.MediaKind, progress *cli.TranscriptionProgress) (*extraction.Router, error) {
	router := &extraction.Router{}

	switch kind {
	case model.MediaImage:
		cfg, err := config.LoadOCRConfig()
		if err != nil {
			return nil, err
		}
		ocr, err := extraction.NewOCRClient(cfg)
		if err != nil {
			return nil, err
		}
		router.Image = ocr
	case model.MediaAudio:
		cfg, err := config.LoadTranscriberConfig()
		if err != nil {
			return nil, err
		}
		if progress != nil {
			cfg.OnProgress = progress.Update
		}
		transcriber, err := extraction.NewTranscriber(cfg)
		if err != nil {
			return nil, err
		}
		router.Audio = transcriber
	}

	return router, nil
}

func createArchive() (archive.Archive, error) {
	cfg, enabled, err := config.LoadArchiveConfig()
	if err != nil {
		return nil, err
	}
	if !enabled {
		return archive.Nop{}, nil
	}
	return archive.NewSupabase(cfg)
}

// orchestratorOptions carries what differs between intake and regenerate.
type orchestratorOptions struct {
	store     pipeline.Store
	extractor pipeline.Extractor
	archive   archive.Archive
	metrics   *metrics.Collector
}

func createOrchestrator(opts orchestratorOptions) (*pipeline.Orchestrator, error) {
	client, err := createLLMClient()
	if err != nil {
		return nil, err
	}

	logger := slog.Default()

	structurer, err := structuring.New(client, logger)
	if err != nil {
		return nil, err
	}
	synthesizer, err := synthesis.New(client, logger)
	if err != nil {
		return nil, err
	}
	scorer, err := alignment.New(client,
		alignment.WithConcurrency(config.ScoringConcurrency()),
		alignment.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return pipeline.New(pipeline.Deps{
		Extractor:   opts.extractor,
		Structurer:  structurer,
		Synthesizer: synthesizer,
		Scorer:      scorer,
		Store:       opts.store,
		Archive:     opts.archive,
		Metrics:     opts.metrics,
		Logger:      logger,
	})
}

// logMetrics writes the collected counters at debug level.
func logMetrics(m *metrics.Collector) {
	snapshot, err := m.Snapshot()
	if err != nil {
		slog.Debug("Failed to gather metrics", "error", err)
		return
	}
	args := make([]any, 0, len(snapshot)*2)
	for key, value := range snapshot {
		args = append(args, key, value)
	}
	slog.Debug("Metrics", args...)
}

// detectKind picks the media kind from an explicit flag or the file's content.
func detectKind(flag string, data []byte) (model.MediaKind, string, error) {
	mtype := mimetype.Detect(data)
	contentType := mtype.String()

	if flag != "" {
		kind, err := model.ParseMediaKind(flag)
		return kind, contentType, err
	}

	for m := mtype; m != nil; m = m.Parent() {
		switch {
		case strings.HasPrefix(m.String(), "image/"):
			return model.MediaImage, contentType, nil
		case strings.HasPrefix(m.String(), "audio/"), m.Is("video/mp4"), m.Is("video/webm"):
			return model.MediaAudio, contentType, nil
		}
	}

	return "", contentType, fmt.Errorf("cannot tell whether %s is an image or audio; pass --kind", contentType)
}

// parseMonth parses YYYY-MM. An empty value means the current month.
func parseMonth(value string, now time.Time) (int, int, error) {
	if value == "" {
		return now.Year(), int(now.Month()), nil
	}
	t, err := time.Parse("2006-01", value)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q (use YYYY-MM): %w", value, err)
	}
	return t.Year(), int(t.Month()), nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(config.ExpandPath(path)) // #nosec G304 -- user-selected input file
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
