package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"packtrack/internal"
	"packtrack/internal/config"
	"packtrack/internal/connectors"
	gmailconnector "packtrack/internal/connectors/gmail"
	imapconnector "packtrack/internal/connectors/imap"
	"packtrack/internal/listener"
	"packtrack/internal/mailscan"
	"packtrack/internal/notify"
	"packtrack/internal/pipeline"
	"packtrack/internal/receiving"
	"packtrack/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "manifest:ingest":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", cfg.ManifestPath, "manifest csv/xlsx path")
		_ = fs.Parse(os.Args[2:])
		svc := pipeline.NewService(db, cfg)
		summary, err := svc.IngestFile(*file)
		must(err)
		fmt.Printf("ingest done rows=%d skipped=%d merged=%d created=%d updated=%d pruned=%d\n",
			summary.RowsRead, summary.RowsSkipped, summary.RowsMerged,
			summary.Created, summary.Updated, summary.Pruned)
	case "manifest:export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		packages, err := db.ListPackages()
		must(err)
		must(pipeline.ExportPackagesToXLSX(packages, *out))
		fmt.Printf("exported %d packages to %s\n", len(packages), *out)
	case "scan":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		tracking := fs.String("tracking", "", "tracking number")
		name := fs.String("name", "", "item name for unknown packages")
		qty := fs.Int("qty", 1, "quantity received")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*tracking) == "" {
			must(fmt.Errorf("--tracking is required"))
		}
		recv := receiving.NewService(db, cfg, notify.NewWebhook(cfg))
		receipt, err := recv.LogReceipt(*tracking, *name, *qty)
		must(err)
		tag := "known"
		if !receipt.Known {
			tag = "new"
		}
		fmt.Printf("received %s (%s) status=%s priority=%t\n", receipt.TrackingNumber, tag, receipt.Status, receipt.Priority)
	case "package:set-date":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		tracking := fs.String("tracking", "", "tracking number")
		date := fs.String("date", "", "expected date YYYY-MM-DD")
		_ = fs.Parse(os.Args[2:])
		if *tracking == "" || *date == "" {
			must(fmt.Errorf("--tracking and --date are required"))
		}
		must(db.SetManualDate(*tracking, *date))
		fmt.Printf("manual date set for %s\n", *tracking)
	case "package:set-priority":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		tracking := fs.String("tracking", "", "tracking number")
		off := fs.Bool("off", false, "clear the priority flag")
		_ = fs.Parse(os.Args[2:])
		if *tracking == "" {
			must(fmt.Errorf("--tracking is required"))
		}
		must(db.SetPriority(*tracking, !*off))
		fmt.Printf("priority=%t for %s\n", !*off, *tracking)
	case "return:start":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		tracking := fs.String("tracking", "", "tracking number")
		reason := fs.String("reason", "", "return reason")
		_ = fs.Parse(os.Args[2:])
		if *tracking == "" {
			must(fmt.Errorf("--tracking is required"))
		}
		recv := receiving.NewService(db, cfg, nil)
		must(recv.StartReturn(*tracking, *reason))
		fmt.Printf("return started for %s\n", *tracking)
	case "return:complete":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		tracking := fs.String("tracking", "", "tracking number")
		_ = fs.Parse(os.Args[2:])
		recv := receiving.NewService(db, cfg, nil)
		must(recv.CompleteReturn(*tracking))
		fmt.Printf("return completed for %s\n", *tracking)
	case "return:refund":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		tracking := fs.String("tracking", "", "tracking number")
		_ = fs.Parse(os.Args[2:])
		recv := receiving.NewService(db, cfg, nil)
		must(recv.MarkRefunded(*tracking))
		fmt.Printf("refund recorded for %s\n", *tracking)
	case "stats":
		recv := receiving.NewService(db, cfg, nil)
		stats, err := recv.Stats()
		must(err)
		fmt.Printf("expected today: %d (scanned %d)\n", stats.ExpectedTotal, stats.ExpectedScanned)
		fmt.Printf("past due:       %d\n", stats.PastDue)
		fmt.Printf("open returns:   %d\n", stats.OpenReturns)
		fmt.Printf("refunded (30d): %d\n", stats.RefundedLast30d)
		daily, err := recv.DailyScans(7)
		must(err)
		for _, d := range daily {
			fmt.Printf("  %s  %d scans\n", d.Date, d.Count)
		}
	case "history":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 50, "max rows")
		_ = fs.Parse(os.Args[2:])
		rows, err := db.ListHistory(*limit)
		must(err)
		for _, row := range rows {
			fmt.Printf("%s  %-14s %s (%s) %s\n", row.Timestamp, row.Action, row.TrackingNumber, row.ItemName, row.Details)
		}
	case "history:trim":
		recv := receiving.NewService(db, cfg, nil)
		trimmed, err := recv.TrimStale()
		must(err)
		fmt.Printf("trimmed %d stale packages\n", trimmed)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.MailListenerLabel, "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn)
		result, err := fetch.FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		scanner := mailscan.NewService(db, cfg)
		result, err := scanner.ProcessPending(*batch)
		must(err)
		fmt.Printf("processed emails=%d packages=%d skipped=%d\n", result.Emails, result.Packages, result.Skipped)
	case "mail:listen":
		s := listener.NewService(db, cfg)
		must(s.Run(context.Background()))
	case "list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		status := fs.String("status", "", "filter by status")
		source := fs.String("source", "", "filter by source: manifest|scan|auto-email")
		_ = fs.Parse(os.Args[2:])
		var packages []internal.PackageRecord
		switch {
		case *status != "":
			packages, err = db.ListPackagesByStatus(internal.PackageStatus(*status))
		case *source != "":
			packages, err = db.ListPackagesBySource(internal.PackageSource(*source))
		default:
			packages, err = db.ListPackages()
		}
		must(err)
		for _, p := range packages {
			fmt.Printf("%-24s %-12s %-10s qty=%d %s\n", p.TrackingNumber, p.Status, p.DateExpected, p.Quantity, p.ItemName)
		}
	default:
		usage()
		os.Exit(1)
	}
}

func makeConnector(cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func usage() {
	fmt.Println("usage: packtrack <command>")
	fmt.Println("commands:")
	fmt.Println("  manifest:ingest [--file=./data/manifest.csv]")
	fmt.Println("  manifest:export --out=./out/packages.xlsx")
	fmt.Println("  scan --tracking=... [--name=...] [--qty=1]")
	fmt.Println("  package:set-date --tracking=... --date=YYYY-MM-DD")
	fmt.Println("  package:set-priority --tracking=... [--off]")
	fmt.Println("  return:start --tracking=... [--reason=...]")
	fmt.Println("  return:complete --tracking=...")
	fmt.Println("  return:refund --tracking=...")
	fmt.Println("  stats")
	fmt.Println("  history [--limit=50]")
	fmt.Println("  history:trim")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  list [--status=...] [--source=manifest|scan|auto-email]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
