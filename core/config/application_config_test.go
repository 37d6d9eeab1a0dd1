package config

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ApplicationConfig", func() {
	It("has working defaults", func() {
		c := NewApplicationConfig()
		Expect(c.ConnectTimeout).To(Equal(30 * time.Second))
		Expect(c.SilenceDuration).To(Equal(time.Second))
		Expect(c.NoSpeechThreshold).To(Equal(0.6))
		Expect(c.TranscriptionMaxBytes).To(Equal(int64(25 * 1024 * 1024)))
		Expect(c.Validate()).To(Succeed())
	})

	It("applies options in order", func() {
		c := NewApplicationConfig(
			WithRecordingsDir("/tmp/rec"),
			WithConnectTimeout(5*time.Second),
			WithSilenceDuration(0),
			WithSummaryProvider(SummaryProviderAnthropic, "claude-haiku-4-5"),
			WithTranscriptionModel(""),
		)
		Expect(c.RecordingsDir).To(Equal("/tmp/rec"))
		Expect(c.ConnectTimeout).To(Equal(5 * time.Second))
		Expect(c.SilenceDuration).To(Equal(time.Second))
		Expect(c.SummaryProvider).To(Equal(SummaryProviderAnthropic))
		Expect(c.SummaryModel).To(Equal("claude-haiku-4-5"))
		Expect(c.TranscriptionModel).To(Equal("whisper-1"))
	})

	DescribeTable("rejects invalid combinations",
		func(opts ...AppOption) {
			Expect(NewApplicationConfig(opts...).Validate()).ToNot(Succeed())
		},
		Entry("unknown provider", WithSummaryProvider("mistral", "")),
		Entry("threshold above one", WithNoSpeechThreshold(1.5)),
		Entry("negative threshold", WithNoSpeechThreshold(-0.1)),
	)
})
