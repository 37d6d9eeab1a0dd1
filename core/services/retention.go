package services

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/mudler/voxlog/core/config"
	"github.com/mudler/voxlog/pkg/timestamp"
	"github.com/mudler/voxlog/pkg/utils"
	"github.com/mudler/xlog"
	"github.com/robfig/cron/v3"
)

// RetentionService deletes session folders older than the configured number
// of days. Folders whose names are not session timestamps are never touched.
type RetentionService struct {
	recordingsDir string
	retention     time.Duration
	schedule      string
	cronScheduler *cron.Cron
	now           func() time.Time
}

func NewRetentionService(appConfig *config.ApplicationConfig) *RetentionService {
	return &RetentionService{
		recordingsDir: appConfig.RecordingsDir,
		retention:     time.Duration(appConfig.RetentionDays) * 24 * time.Hour,
		schedule:      "@hourly",
		cronScheduler: cron.New(),
		now:           time.Now,
	}
}

// Start schedules the sweep and stops it when ctx is done. It is a no-op
// when retention is disabled.
func (s *RetentionService) Start(ctx context.Context) error {
	if s.retention <= 0 {
		xlog.Debug("Recording retention disabled")
		return nil
	}
	_, err := s.cronScheduler.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(s.now()); err != nil {
			xlog.Error("Retention sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.cronScheduler.Start()
	xlog.Info("Recording retention enabled", "dir", s.recordingsDir, "retention", s.retention)

	go func() {
		<-ctx.Done()
		<-s.cronScheduler.Stop().Done()
	}()
	return nil
}

// Sweep removes every session folder that started before now minus the
// retention period and returns the removed paths.
func (s *RetentionService) Sweep(now time.Time) ([]string, error) {
	entries, err := os.ReadDir(s.recordingsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	cutoff := now.Add(-s.retention)

	var removed []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		started, err := timestamp.DecodeFolder(e.Name())
		if err != nil || !started.Before(cutoff) {
			continue
		}
		path := filepath.Join(s.recordingsDir, e.Name())
		if err := utils.VerifyPath(path, s.recordingsDir); err != nil {
			xlog.Warn("Refusing to remove session outside the recordings dir", "path", path, "error", err)
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			xlog.Error("Failed to remove expired session", "path", path, "error", err)
			continue
		}
		xlog.Info("Removed expired session", "path", path, "started", started)
		removed = append(removed, path)
	}
	return removed, nil
}
