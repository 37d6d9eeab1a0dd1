package application_test

import (
	"context"
	"errors"
	"time"

	. "github.com/mudler/voxlog/core/application"
	"github.com/mudler/voxlog/core/capture"
	"github.com/mudler/voxlog/core/config"
	"github.com/mudler/voxlog/core/pipeline"
	"github.com/mudler/voxlog/core/schema"
	"github.com/mudler/voxlog/core/voice"
	"github.com/mudler/voxlog/core/voice/voicetest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type echoTranscriber struct{}

func (echoTranscriber) Transcribe(context.Context, string) (*schema.TranscriptionResult, error) {
	return &schema.TranscriptionResult{Segments: []schema.TranscriptionSegment{
		{Start: 0, End: 1, Text: "hello everyone"},
	}}, nil
}

var _ = Describe("Application", func() {
	var (
		connector *voicetest.Connector
		app       *Application
		ctx       = context.Background()
	)

	BeforeEach(func() {
		connector = voicetest.NewConnector()
		connector.Names["1"] = "alice"
		appConfig := config.NewApplicationConfig(
			config.WithRecordingsDir(GinkgoT().TempDir()),
			config.WithConnectTimeout(100*time.Millisecond),
			config.WithSettleTimeout(time.Second),
		)
		mixer := pipeline.NewMixer(func(context.Context, ...string) (string, error) {
			return "", errors.New("ffmpeg disabled in tests")
		})
		p := pipeline.New(mixer, pipeline.NewAssembler(echoTranscriber{}, nil, pipeline.DefaultFilter()), nil)
		app = New(appConfig, connector, p, nil)
	})

	AfterEach(func() {
		Expect(app.Shutdown(ctx)).To(Succeed())
	})

	It("allows one live session per guild", func() {
		_, err := app.StartSession(ctx, "g1", "c1")
		Expect(err).ToNot(HaveOccurred())
		_, err = app.StartSession(ctx, "g1", "c2")
		Expect(err).To(MatchError(ErrSessionActive))
		_, err = app.StartSession(ctx, "g2", "c1")
		Expect(err).ToNot(HaveOccurred())
		Expect(app.Sessions()).To(HaveLen(2))
	})

	It("frees the guild after a failed join", func() {
		connector.JoinErr = errors.New("forbidden")
		_, err := app.StartSession(ctx, "g1", "c1")
		var connErr *capture.ConnectionError
		Expect(errors.As(err, &connErr)).To(BeTrue())

		connector.JoinErr = nil
		_, err = app.StartSession(ctx, "g1", "c1")
		Expect(err).ToNot(HaveOccurred())
	})

	It("rejects stopping an idle guild", func() {
		_, err := app.StopSession("nope")
		Expect(err).To(MatchError(ErrNoSession))
	})

	It("reports no input for a session without clips", func() {
		_, err := app.StartSession(ctx, "g1", "c1")
		Expect(err).ToNot(HaveOccurred())

		reports, err := app.StopSession("g1")
		Expect(err).ToNot(HaveOccurred())
		var report pipeline.Report
		Eventually(reports).Should(Receive(&report))
		Expect(report.MixErr).To(MatchError(pipeline.ErrNoInput))
		Expect(report.TranscriptErr).To(MatchError(pipeline.ErrNoInput))
		Expect(report.SummaryErr).To(HaveOccurred())
		Expect(reports).To(BeClosed())

		_, ok := app.Session("g1")
		Expect(ok).To(BeFalse())
	})

	It("processes a recorded session on stop", func() {
		s, err := app.StartSession(ctx, "g1", "c1")
		Expect(err).ToNot(HaveOccurred())
		conn := connector.Last()
		conn.Emit(voice.SpeakingStart{UserID: "1"})
		Expect(s.State("1")).To(Equal(capture.Recording))
		conn.Subscription("1").Send(1, 960, []byte{0xfc, 0xff, 0xfe})

		reports, err := app.StopSession("g1")
		Expect(err).ToNot(HaveOccurred())
		var report pipeline.Report
		Eventually(reports, 5*time.Second).Should(Receive(&report))

		Expect(report.Folder).To(Equal(s.Folder))
		Expect(report.MixErr).ToNot(HaveOccurred())
		Expect(report.Mixed).To(BeARegularFile())
		Expect(report.TranscriptErr).ToNot(HaveOccurred())
		Expect(report.Transcript).To(BeARegularFile())
		Expect(report.SummaryErr).To(MatchError(pipeline.ErrSummaryDisabled))
	})

	It("processes a session whose connection dropped", func() {
		var got []pipeline.Report
		done := make(chan struct{})
		app.OnReport = func(_ *capture.Session, r pipeline.Report) {
			got = append(got, r)
			close(done)
		}
		_, err := app.StartSession(ctx, "g1", "c1")
		Expect(err).ToNot(HaveOccurred())

		connector.Last().Emit(voice.StateChange{State: voice.StateDestroyed})
		Eventually(done).Should(BeClosed())
		Expect(got).To(HaveLen(1))
		Eventually(func() bool {
			_, ok := app.Session("g1")
			return ok
		}).Should(BeFalse())
	})
})
