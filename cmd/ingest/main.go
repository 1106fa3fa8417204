package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"invoicelens/internal/config"
	"invoicelens/internal/ingest"
	"invoicelens/internal/notify/noop"
	"invoicelens/internal/repository/postgres"
	"invoicelens/internal/service"
)

type options struct {
	dir         string
	pattern     string
	commit      bool
	concurrency int
}

// fileResult is the outcome of importing one document.
type fileResult struct {
	path      string
	canonical *ingest.CanonicalInvoice
	invoiceID string
	err       error
}

func main() {
	var opts options
	pflag.StringVar(&opts.dir, "dir", ".", "directory holding stored extraction JSON files")
	pflag.StringVar(&opts.pattern, "pattern", "*.json", "glob pattern matched against file names in --dir")
	pflag.BoolVar(&opts.commit, "commit", false, "persist normalized invoices (dry run otherwise)")
	pflag.IntVar(&opts.concurrency, "concurrency", 4, "number of files normalized in parallel")
	pflag.Parse()

	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}

func run(opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := filepath.Glob(filepath.Join(opts.dir, opts.pattern))
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", opts.pattern, err)
	}
	if len(paths) == 0 {
		log.Printf("ingest: no files match %s in %s", opts.pattern, opts.dir)
		return nil
	}
	sort.Strings(paths)

	validator, tolerance, err := service.NewIngestValidator(&cfg.Ingest)
	if err != nil {
		return fmt.Errorf("invalid ingest config: %w", err)
	}

	svcCfg := service.NewInvoiceServiceConfig(cfg, tolerance)
	var svc service.InvoiceService
	if opts.commit {
		db, err := postgres.NewDB(&cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		svc = service.NewInvoiceService(
			postgres.NewInvoiceRepo(db), postgres.NewExtractionRepo(db),
			nil, nil, nil, noop.NewNotifier(cfg.Notify.BaseURL), validator, svcCfg,
		)
	} else {
		svc = service.NewInvoiceService(nil, nil, nil, nil, nil, noop.NewNotifier(cfg.Notify.BaseURL), validator, svcCfg)
	}

	results := importAll(ctx, svc, paths, opts)
	return report(results, opts.commit)
}

// importAll normalizes every path with bounded concurrency. Per-file failures are collected,
// not fatal; only cancellation stops the batch early.
func importAll(ctx context.Context, svc service.InvoiceService, paths []string, opts options) []fileResult {
	results := make([]fileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	if opts.concurrency > 0 {
		g.SetLimit(opts.concurrency)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = importFile(gctx, svc, path, opts.commit)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("ingest: batch interrupted: %v", err)
	}
	return results
}

func importFile(ctx context.Context, svc service.InvoiceService, path string, commit bool) fileResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileResult{path: path, err: err}
	}
	out, err := svc.Import(ctx, service.ImportInput{
		Filename: filepath.Base(path),
		Document: data,
		Commit:   commit,
	})
	if err != nil {
		return fileResult{path: path, err: err}
	}
	res := fileResult{path: path, canonical: out.Canonical}
	if out.Invoice != nil {
		res.invoiceID = out.Invoice.ID.String()
	}
	return res
}

func report(results []fileResult, commit bool) error {
	var ok, flagged, failed int
	for _, r := range results {
		switch {
		case r.path == "":
			// cancelled before it ran
		case r.err != nil:
			failed++
			fmt.Printf("FAIL  %s: %v\n", r.path, r.err)
		default:
			ok++
			if r.canonical.Flagged() {
				flagged++
			}
			line := fmt.Sprintf("OK    %s: vendor=%q total=%s confidence=%.2f anomalies=%d",
				r.path, r.canonical.Vendor, r.canonical.Total, r.canonical.Confidence, len(r.canonical.Anomalies))
			if r.invoiceID != "" {
				line += " id=" + r.invoiceID
			}
			fmt.Println(line)
		}
	}

	mode := "dry run"
	if commit {
		mode = "committed"
	}
	fmt.Printf("\n%s: %d normalized, %d flagged, %d failed\n", mode, ok, flagged, failed)
	if failed > 0 {
		return errors.New("some files failed to import")
	}
	return nil
}
