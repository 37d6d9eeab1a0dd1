package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mudler/voxlog/core/application"
	"github.com/mudler/voxlog/core/capture"
	cliContext "github.com/mudler/voxlog/core/cli/context"
	"github.com/mudler/voxlog/core/config"
	"github.com/mudler/voxlog/core/pipeline"
	"github.com/mudler/voxlog/core/services"
	"github.com/mudler/voxlog/core/voice/discord"
	"github.com/mudler/voxlog/metrics"
	"github.com/mudler/voxlog/pkg/signals"
	"github.com/mudler/xlog"
)

type RecordCMD struct {
	Token   string `env:"VOXLOG_DISCORD_TOKEN,DISCORD_TOKEN" required:"" help:"Bot token" group:"voice"`
	Guild   string `env:"VOXLOG_GUILD" required:"" help:"Guild (server) id" group:"voice"`
	Channel string `env:"VOXLOG_CHANNEL" required:"" help:"Voice channel id to record" group:"voice"`

	RecordingsDir   string        `env:"VOXLOG_RECORDINGS_DIR" type:"path" default:"${basepath}/recordings" help:"Where session folders are written" group:"storage"`
	ConnectTimeout  time.Duration `env:"VOXLOG_CONNECT_TIMEOUT" default:"30s" help:"How long to wait for the voice connection" group:"voice"`
	SilenceDuration time.Duration `env:"VOXLOG_SILENCE_DURATION" default:"1s" help:"Trailing silence that closes a clip" group:"voice"`
	SettleTimeout   time.Duration `env:"VOXLOG_SETTLE_TIMEOUT" default:"5s" help:"How long post-processing waits for clips still being written" group:"voice"`
	RetentionDays   int           `env:"VOXLOG_RETENTION_DAYS" default:"0" help:"Delete sessions older than this many days (0 keeps everything)" group:"storage"`
	MetricsAddress  string        `env:"VOXLOG_METRICS_ADDRESS" help:"Serve Prometheus metrics on this address, e.g. :9090" group:"metrics"`
	ShutdownTimeout time.Duration `env:"VOXLOG_SHUTDOWN_TIMEOUT" default:"10m" help:"Upper bound for post-processing after an interrupt" group:"voice"`

	PipelineFlags `embed:""`
}

func (r *RecordCMD) Run(ctx *cliContext.Context) error {
	opts := append([]config.AppOption{
		config.WithContext(context.Background()),
		config.WithRecordingsDir(r.RecordingsDir),
		config.WithDiscordToken(r.Token),
		config.WithConnectTimeout(r.ConnectTimeout),
		config.WithSilenceDuration(r.SilenceDuration),
		config.WithSettleTimeout(r.SettleTimeout),
		config.WithRetentionDays(r.RetentionDays),
		config.WithMetricsAddress(r.MetricsAddress),
	}, r.options()...)
	appConfig := config.NewApplicationConfig(opts...)
	if err := appConfig.Validate(); err != nil {
		return err
	}

	var m *metrics.Metrics
	if appConfig.MetricsAddress != "" {
		var err error
		m, err = metrics.SetupMetrics()
		if err != nil {
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.MetricsHandler())
		go func() {
			xlog.Info("Serving metrics", "address", appConfig.MetricsAddress)
			if err := http.ListenAndServe(appConfig.MetricsAddress, mux); err != nil {
				xlog.Error("Metrics listener stopped", "error", err)
			}
		}()
	}

	retention := services.NewRetentionService(appConfig)
	if err := retention.Start(appConfig.Context); err != nil {
		return err
	}

	p, err := pipeline.NewFromConfig(appConfig, m)
	if err != nil {
		return err
	}

	connector, err := discord.New(appConfig.DiscordToken)
	if err != nil {
		return err
	}
	if err := connector.Open(); err != nil {
		return fmt.Errorf("connecting to discord: %w", err)
	}
	defer connector.Close()

	app := application.New(appConfig, connector, p, m)
	reports := make(chan pipeline.Report, 1)
	app.OnReport = func(s *capture.Session, report pipeline.Report) {
		xlog.Info("Session processed", "session", s.ID, "reason", s.Reason())
		fmt.Println(report.String())
		reports <- report
	}

	signals.RegisterGracefulTerminationHandler(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), r.ShutdownTimeout)
		defer cancel()
		if err := app.Shutdown(shutdownCtx); err != nil {
			xlog.Error("Post-processing did not finish before shutdown", "error", err)
		}
		connector.Close()
	})

	s, err := app.StartSession(appConfig.Context, r.Guild, r.Channel)
	if err != nil {
		var connErr *capture.ConnectionError
		if errors.As(err, &connErr) && connErr.Timeout() {
			return fmt.Errorf("%w (is the bot allowed to join this channel?)", err)
		}
		return err
	}
	fmt.Printf("Recording into %s, press Ctrl+C to stop\n", s.Folder)

	report := <-reports
	if report.MixErr != nil && report.TranscriptErr != nil {
		return errors.New("session ended without any artifact")
	}
	return nil
}
