package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mudler/voxlog/core/config"
	"github.com/mudler/voxlog/core/schema"
	"github.com/mudler/voxlog/core/voice"
	"github.com/mudler/voxlog/metrics"
	"github.com/mudler/xlog"
)

// ConnectionError reports a failed or timed-out voice join.
type ConnectionError struct {
	GuildID   string
	ChannelID string
	Err       error
}

func (e *ConnectionError) Error() string {
	if e.Timeout() {
		return fmt.Sprintf("timed out joining voice channel %s in guild %s", e.ChannelID, e.GuildID)
	}
	return fmt.Sprintf("joining voice channel %s in guild %s: %v", e.ChannelID, e.GuildID, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Controller starts and stops capture sessions on a voice connector.
type Controller struct {
	connector voice.Connector
	appConfig *config.ApplicationConfig
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewController(connector voice.Connector, appConfig *config.ApplicationConfig, m *metrics.Metrics) *Controller {
	return &Controller{
		connector: connector,
		appConfig: appConfig,
		metrics:   m,
		now:       time.Now,
	}
}

// Start joins the channel and begins capturing. No session exists unless the
// join completed within the configured connect timeout.
func (c *Controller) Start(ctx context.Context, guildID, channelID string) (*Session, error) {
	joinCtx, cancel := context.WithTimeout(ctx, c.appConfig.ConnectTimeout)
	defer cancel()

	conn, err := c.connector.Join(joinCtx, guildID, channelID)
	if err != nil {
		return nil, &ConnectionError{GuildID: guildID, ChannelID: channelID, Err: err}
	}

	startedAt := c.now()
	folder := schema.SessionFolder(c.appConfig.RecordingsDir, startedAt)
	if err := os.MkdirAll(folder, 0o750); err != nil {
		if derr := conn.Disconnect(); derr != nil {
			xlog.Debug("Disconnect after failed start", "error", derr)
		}
		return nil, fmt.Errorf("creating session folder: %w", err)
	}

	s := newSession(sessionParams{
		id:        uuid.New().String(),
		startedAt: startedAt,
		folder:    folder,
		conn:      conn,
		connector: c.connector,
		silence:   c.appConfig.SilenceDuration,
		metrics:   c.metrics,
	})
	c.metrics.SessionStarted()
	go func() {
		<-s.Ended()
		c.metrics.SessionEnded()
	}()

	xlog.Info("Recording started", "session", s.ID, "guild", guildID, "channel", channelID, "folder", folder)
	return s, nil
}

// Stop ends s. In-flight clips are cut short when the connection drops.
func (c *Controller) Stop(s *Session) {
	s.Stop()
}
