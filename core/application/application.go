package application

import (
	"context"
	"errors"
	"sync"

	"github.com/mudler/voxlog/core/capture"
	"github.com/mudler/voxlog/core/config"
	"github.com/mudler/voxlog/core/pipeline"
	"github.com/mudler/voxlog/core/voice"
	"github.com/mudler/voxlog/metrics"
	"github.com/mudler/voxlog/pkg/xsync"
	"github.com/mudler/xlog"
)

var (
	ErrSessionActive = errors.New("a recording is already running in this guild")
	ErrNoSession     = errors.New("no recording is running in this guild")
)

// sessionEntry is immutable once stored. A nil session marks a join in
// progress.
type sessionEntry struct {
	session *capture.Session
	reports chan pipeline.Report
}

// Application owns the live sessions, keyed by guild, and runs
// post-processing when one ends.
type Application struct {
	applicationConfig *config.ApplicationConfig
	controller        *capture.Controller
	pipeline          *pipeline.Pipeline
	metrics           *metrics.Metrics

	sessions   *xsync.SyncedMap[string, *sessionEntry]
	processing sync.WaitGroup

	// OnReport, when set, is called with every finished post-processing run.
	OnReport func(*capture.Session, pipeline.Report)
}

func New(appConfig *config.ApplicationConfig, connector voice.Connector, p *pipeline.Pipeline, m *metrics.Metrics) *Application {
	return &Application{
		applicationConfig: appConfig,
		controller:        capture.NewController(connector, appConfig, m),
		pipeline:          p,
		metrics:           m,
		sessions:          xsync.NewSyncedMap[string, *sessionEntry](),
	}
}

func (a *Application) ApplicationConfig() *config.ApplicationConfig {
	return a.applicationConfig
}

func (a *Application) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// StartSession joins channelID and starts recording. Only one session per
// guild can be live.
func (a *Application) StartSession(ctx context.Context, guildID, channelID string) (*capture.Session, error) {
	pending := &sessionEntry{}
	if !a.sessions.SetIfAbsent(guildID, pending) {
		return nil, ErrSessionActive
	}

	s, err := a.controller.Start(ctx, guildID, channelID)
	if err != nil {
		a.sessions.CompareAndDelete(guildID, func(e *sessionEntry) bool { return e == pending })
		return nil, err
	}

	entry := &sessionEntry{session: s, reports: make(chan pipeline.Report, 1)}
	a.sessions.Set(guildID, entry)

	a.processing.Add(1)
	go a.finish(guildID, entry)
	return s, nil
}

// StopSession stops the guild's session. The returned channel yields the
// post-processing report once and is then closed.
func (a *Application) StopSession(guildID string) (<-chan pipeline.Report, error) {
	entry, ok := a.sessions.Get(guildID)
	if !ok || entry.session == nil {
		return nil, ErrNoSession
	}
	a.controller.Stop(entry.session)
	return entry.reports, nil
}

// Session returns the live session of guildID.
func (a *Application) Session(guildID string) (*capture.Session, bool) {
	entry, ok := a.sessions.Get(guildID)
	if !ok || entry.session == nil {
		return nil, false
	}
	return entry.session, true
}

func (a *Application) Sessions() []*capture.Session {
	var sessions []*capture.Session
	for _, e := range a.sessions.Values() {
		if e.session != nil {
			sessions = append(sessions, e.session)
		}
	}
	return sessions
}

// finish runs once per session, whether it was stopped or lost its
// connection.
func (a *Application) finish(guildID string, entry *sessionEntry) {
	defer a.processing.Done()
	s := entry.session
	<-s.Ended()

	a.sessions.CompareAndDelete(guildID, func(e *sessionEntry) bool { return e == entry })

	settle, cancel := context.WithTimeout(context.Background(), a.applicationConfig.SettleTimeout)
	if err := s.WaitRecorders(settle); err != nil {
		xlog.Warn("Clip recorders still running, processing what is on disk", "session", s.ID, "error", err)
	}
	cancel()

	xlog.Info("Processing session", "session", s.ID, "folder", s.Folder, "reason", s.Reason(), "clips", len(s.Clips()))
	report := a.pipeline.Process(context.Background(), s.Folder)

	if a.OnReport != nil {
		a.OnReport(s, report)
	}
	entry.reports <- report
	close(entry.reports)
}

// Shutdown stops every live session and waits for their post-processing,
// or for ctx.
func (a *Application) Shutdown(ctx context.Context) error {
	for _, s := range a.Sessions() {
		a.controller.Stop(s)
	}
	done := make(chan struct{})
	go func() {
		a.processing.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
