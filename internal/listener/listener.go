package listener

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"packtrack/internal"
	"packtrack/internal/config"
	"packtrack/internal/connectors"
	gmailconnector "packtrack/internal/connectors/gmail"
	imapconnector "packtrack/internal/connectors/imap"
	"packtrack/internal/mailscan"
	"packtrack/internal/notify"
	"packtrack/internal/pipeline"
	"packtrack/internal/receiving"
	"packtrack/internal/storage"
)

const (
	manifestMTimeKey = "manifest:last_modified_unix"
	digestSentKey    = "digest:past_due:last_sent"
)

// Service is the background worker: on each cycle it pulls carrier emails,
// scans them for shipments, re-ingests the manifest file when it changed on
// disk, and optionally trims stale records.
type Service struct {
	db  *storage.DB
	cfg config.Config
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{db: db, cfg: cfg}
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(); err != nil {
			fmt.Printf("listener cycle error: %v\n", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.MailListenerIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle() error {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))

	fetched, processed := 0, 0
	if provider != "" && provider != "none" {
		mailConnector, err := s.makeConnector(provider)
		if err != nil {
			return err
		}

		fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector)
		fetchResult, err := fetchService.FetchAndStore(s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
		if err != nil {
			return err
		}
		fetched = fetchResult.Stored

		scanner := mailscan.NewService(s.db, s.cfg)
		processResult, err := scanner.ProcessPending(s.cfg.MailListenerProcessBatch)
		if err != nil {
			return err
		}
		processed = processResult.Packages
	}

	ingested, err := s.ingestManifestIfChanged()
	if err != nil {
		return err
	}

	trimmed := 0
	if s.cfg.AutoTrim {
		recv := receiving.NewService(s.db, s.cfg, nil)
		trimmed, err = recv.TrimStale()
		if err != nil {
			return err
		}
	}

	if err := s.sendPastDueDigest(); err != nil {
		fmt.Printf("past-due digest failed: %v\n", err)
	}

	fmt.Printf("listener cycle done provider=%s fetched=%d autoAdded=%d manifestIngested=%t trimmed=%d\n",
		provider, fetched, processed, ingested, trimmed)
	return nil
}

// ingestManifestIfChanged re-runs the manifest ingest when the file's mtime
// moved past the last recorded one. The mtime lives in the metadata table so
// restarts do not force a redundant (if harmless) re-ingest.
func (s *Service) ingestManifestIfChanged() (bool, error) {
	if strings.TrimSpace(s.cfg.ManifestPath) == "" {
		return false, nil
	}
	info, err := os.Stat(s.cfg.ManifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	mtime := strconv.FormatInt(info.ModTime().Unix(), 10)
	last, err := s.db.GetMetadata(manifestMTimeKey)
	if err != nil {
		return false, err
	}
	if last != nil && *last == mtime {
		return false, nil
	}

	ingest := pipeline.NewService(s.db, s.cfg)
	summary, err := ingest.IngestFile(s.cfg.ManifestPath)
	if err != nil {
		return false, err
	}
	if err := s.db.SetMetadata(manifestMTimeKey, mtime); err != nil {
		return false, err
	}

	fmt.Printf("manifest re-ingested: created=%d updated=%d pruned=%d skipped=%d\n",
		summary.Created, summary.Updated, summary.Pruned, summary.RowsSkipped)
	return true, nil
}

// sendPastDueDigest posts at most one past-due summary per day.
func (s *Service) sendPastDueDigest() error {
	webhook := notify.NewWebhook(s.cfg)
	if !webhook.Enabled() {
		return nil
	}

	today := time.Now().Format("2006-01-02")
	last, err := s.db.GetMetadata(digestSentKey)
	if err != nil {
		return err
	}
	if last != nil && *last == today {
		return nil
	}

	pastDue, err := s.db.ListPackagesByStatus(internal.StatusPastDue)
	if err != nil {
		return err
	}
	if err := webhook.PastDueDigest(len(pastDue)); err != nil {
		return err
	}
	return s.db.SetMetadata(digestSentKey, today)
}

func (s *Service) makeConnector(provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}
