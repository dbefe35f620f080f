package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/ebmtools/invoice-validator/internal/common"
	"github.com/ebmtools/invoice-validator/internal/enrich"
	"github.com/ebmtools/invoice-validator/internal/export"
	"github.com/ebmtools/invoice-validator/internal/qrcode"
	"github.com/ebmtools/invoice-validator/internal/reconcile"
	"github.com/ebmtools/invoice-validator/internal/snapshot"
	"github.com/ebmtools/invoice-validator/internal/template"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	_ = godotenv.Load()

	var (
		templatesDir = flag.String("templates", "", "templates directory (overrides VALIDATOR_TEMPLATES_DIR)")
		snapshotPath = flag.String("snapshot", "", "path to the extracted text snapshot JSON")
		xlsxPath     = flag.String("xlsx", "", "also write an XLSX report to this path")
		timeout      = flag.Duration("timeout", 2*time.Minute, "overall run timeout")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "validate [flags] invoice.pdf")
		os.Exit(2)
	}
	pdfPath := flag.Arg(0)

	cfg := common.LoadConfig()
	if *templatesDir != "" {
		cfg.Templates.Dir = *templatesDir
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	pdfBytes, err := os.ReadFile(pdfPath)
	if err != nil {
		logger.Error("read invoice", "path", pdfPath, "error", err)
		os.Exit(1)
	}

	var snap *snapshot.Snapshot
	if *snapshotPath != "" {
		snap, err = snapshot.Load(*snapshotPath)
		if err != nil {
			logger.Error("read snapshot", "path", *snapshotPath, "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("no snapshot provided; text-side comparison will be empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Templates are loaded eagerly here so a broken deployment fails before
	// the first document, not during it.
	store := template.NewStore(cfg.Templates.Dir, logger)
	if _, err := store.Templates(); err != nil {
		logger.Error("template load failed", "error", err)
		os.Exit(1)
	}

	enricher := enrich.NewRegistry(logger)
	enricher.Register(enrich.NewRRAResolver(&http.Client{Timeout: cfg.Enrich.Timeout}, logger))

	engine := reconcile.NewEngine(store, qrcode.NewDecoder(logger), enricher, cfg, logger)

	outcome, err := engine.Validate(ctx, reconcile.Input{
		FileName: filepath.Base(pdfPath),
		PDF:      pdfBytes,
		Snapshot: snap,
	}, nil)
	if err != nil {
		logger.Error("validation failed", "error", err)
		os.Exit(1)
	}

	if *xlsxPath != "" {
		b, err := export.NewService(logger).WriteReportXLSX(outcome)
		if err != nil {
			logger.Error("xlsx export failed", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*xlsxPath, b, 0o644); err != nil {
			logger.Error("write xlsx", "path", *xlsxPath, "error", err)
			os.Exit(1)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(outcome); err != nil {
		logger.Error("encode outcome", "error", err)
		os.Exit(1)
	}
}
