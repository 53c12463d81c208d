package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"price-tracker/api"
	"price-tracker/config"
	"price-tracker/models"
	"price-tracker/services"
	"price-tracker/storage"
	"price-tracker/utils"
)

const usage = `usage: price-tracker <command> [flags]

commands:
  ingest   [-date YYYYMMDD]  read the day's batch, store it, write the report
  analyze  [-date YYYYMMDD]  rebuild the report from the store only
  dates                      list the stored dates
  serve                      expose reports over HTTP
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	logger, err := utils.NewLogger(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "ingest", "analyze", "dates", "serve":
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(cmd, args, cfg, logger); err != nil {
		logger.Error("%s failed: %v", cmd, err)
		if errors.Is(err, storage.ErrCorrupt) {
			logger.Error("The price history is corrupt; fix or restore it before the next run.")
		}
		logger.Sync()
		os.Exit(1)
	}
}

func run(cmd string, args []string, cfg *config.Config, logger *utils.Logger) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	now := time.Now()
	date := fs.String("date", now.Format(models.DateLayout), "snapshot date (YYYYMMDD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	taxonomy, err := services.LoadTaxonomy(cfg.TaxonomyFile)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	analyzer := services.NewAnalyzer(store, taxonomy, logger, services.AnalyzerOptions{
		TopUpN:           cfg.TopUpN,
		TopDownN:         cfg.TopDownN,
		IndexConcurrency: cfg.IndexConcurrency,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "ingest", "analyze":
		return runReport(ctx, cmd, *date, now, cfg, logger, taxonomy, store, analyzer)
	case "dates":
		dates, err := store.Dates()
		if err != nil {
			return err
		}
		for _, d := range dates {
			fmt.Println(d)
		}
		return nil
	default:
		return serve(ctx, cfg, logger, store, analyzer)
	}
}

func runReport(ctx context.Context, cmd, date string, now time.Time, cfg *config.Config, logger *utils.Logger,
	taxonomy *services.Taxonomy, store storage.PriceStore, analyzer *services.Analyzer) error {
	logger.Info("=== Price analysis %s for %s ===", cmd, date)

	if err := storage.ValidateDate(date); err != nil {
		return err
	}
	ref, err := services.ReferenceTime(date, now)
	if err != nil {
		return err
	}
	writer, err := storage.NewJSONReportWriter(cfg.OutputDir)
	if err != nil {
		return err
	}

	var report *models.Report
	if cmd == "ingest" {
		reader := storage.NewBatchReader(cfg.InputDir, logger)
		preparer := services.NewPreparer(logger, taxonomy)
		pipeline := services.NewPipeline(reader, preparer, store, analyzer, writer, logger)
		report, err = pipeline.Ingest(ctx, date, ref)
		if err != nil {
			return err
		}
		if gc, ok := store.(valueLogCollector); ok {
			if err := gc.RunGC(0.5); err != nil {
				logger.Warn("[store] Value log GC: %v", err)
			}
		}
	} else {
		report, err = analyzer.Run(ctx, date, ref)
		if err != nil {
			return err
		}
		if err := writer.WriteReport(report); err != nil {
			return err
		}
	}

	printSummary(report)
	logger.Info("Reports written to %s (run %s)", cfg.OutputDir, report.RunID)
	return nil
}

func serve(ctx context.Context, cfg *config.Config, logger *utils.Logger, store storage.PriceStore, analyzer *services.Analyzer) error {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(store, analyzer, logger, nil),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[api] Listening on %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("[api] Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func openStore(cfg *config.Config, logger *utils.Logger) (storage.PriceStore, error) {
	switch cfg.StoreBackend {
	case "csv":
		return storage.NewCSVStore(cfg.StoreCSVPath, cfg.LockTimeout(), logger)
	case "sqlite":
		return storage.NewSQLiteStore(cfg.SQLitePath)
	case "postgres":
		return storage.NewPostgresStore(cfg.DSN())
	case "badger":
		return storage.NewBadgerStore(storage.BadgerConfig{Path: cfg.BadgerPath})
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

func printSummary(r *models.Report) {
	fmt.Printf("\n  Products analysed : %d\n", r.TotalProducts)
	fmt.Printf("  Mean regular price: $%.2f\n", r.MeanPriceRegular)
	for _, h := range []struct {
		label string
		res   *models.HorizonResult
	}{
		{"Day", r.Day}, {"7 days", r.Week}, {"30 days", r.Month}, {"6 months", r.HalfYear}, {"1 year", r.Year},
	} {
		if h.res == nil {
			fmt.Printf("  %-9s: no data\n", h.label)
			continue
		}
		fmt.Printf("  %-9s: %+.2f%% vs %s (%d up, %d down, %d unchanged)\n",
			h.label, h.res.MeanDiffPct, h.res.ComparedDate, h.res.CountUp, h.res.CountDown, h.res.CountUnchanged)
	}
	fmt.Println()
}
