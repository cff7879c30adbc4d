package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/connharvest/internal/config"
	"github.com/nao1215/connharvest/internal/crawler"
	"github.com/nao1215/connharvest/internal/database"
	"github.com/nao1215/connharvest/internal/model"
	"github.com/nao1215/connharvest/internal/store"
)

// stateStore is what the commands need from the connections table.
// store.RecordStore and database.CrawlDB implement it.
type stateStore interface {
	crawler.RecordStore
	Records(ctx context.Context) ([]model.ConnectionRecord, error)
	Path() string
}

// emailLister reads the email table.
type emailLister interface {
	Records(ctx context.Context) ([]model.EmailRecord, error)
}

// backend is an opened storage backend.
type backend struct {
	records stateStore
	emails  emailLister
	close   func() error
}

// openBackend opens the storage selected by cfg.Backend in cfg.OutputDir.
func openBackend(cfg *config.Config, logger *slog.Logger) (*backend, error) {
	if cfg.Backend == config.BackendSQLite {
		opts := database.DefaultOptions()
		if cfg.DatabaseFile != "" {
			opts.FileName = cfg.DatabaseFile
		}
		opts.Logger = logger
		db, err := database.Open(cfg.OutputDir, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		logger.Debug("database opened", "path", db.Path())
		return &backend{records: db, emails: db.Ledger(), close: db.Close}, nil
	}

	opts := store.DefaultOptions(cfg.OutputDir)
	if cfg.ConnectionsFile != "" {
		opts.ConnectionsFile = cfg.ConnectionsFile
	}
	if cfg.EmailsFile != "" {
		opts.EmailsFile = cfg.EmailsFile
	}
	opts.Logger = logger
	s, err := store.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	logger.Debug("store opened", "path", s.Path())
	return &backend{records: s, emails: s.Ledger(), close: func() error { return nil }}, nil
}

// loadReport reads both tables in parallel and summarizes them.
func loadReport(ctx context.Context, b *backend, now time.Time) (*model.CrawlReport, error) {
	var (
		records []model.ConnectionRecord
		emails  []model.EmailRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = b.records.Records(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		emails, err = b.emails.Records(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load crawl state: %w", err)
	}

	return model.NewCrawlReport(records, emails, now), nil
}
