package capture_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	. "github.com/mudler/voxlog/core/capture"
	"github.com/mudler/voxlog/core/voice/voicetest"
	"github.com/mudler/voxlog/pkg/timestamp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

var opusFrame = []byte{0xfc, 0xff, 0xfe}

var _ = Describe("ClipRecorder", func() {
	var folder string

	BeforeEach(func() {
		folder = GinkgoT().TempDir()
	})

	It("writes one Ogg page per packet with a 48kHz stereo header", func() {
		sub := voicetest.NewSubscription()
		for i := 0; i < 3; i++ {
			sub.Send(uint16(i), uint32(i*960), opusFrame)
		}
		sub.End()

		result := NewClipRecorder(folder, KnownSpeaker("42", "Alice Smith"), sub).Run()
		Expect(result.Err).ToNot(HaveOccurred())
		Expect(result.Clip).ToNot(BeNil())
		Expect(result.Clip.SpeakerName).To(Equal("Alice Smith"))
		Expect(filepath.Base(result.Clip.Path)).To(HaveSuffix("_Alice_Smith.ogg"))

		decoded, err := timestamp.Decode(filepath.Base(result.Clip.Path))
		Expect(err).ToNot(HaveOccurred())
		Expect(decoded).To(BeTemporally("==", result.Clip.StartedAt.Truncate(1e6)))

		f, err := os.Open(result.Clip.Path)
		Expect(err).ToNot(HaveOccurred())
		defer f.Close()
		reader, header, err := oggreader.NewWith(f)
		Expect(err).ToNot(HaveOccurred())
		Expect(header.Channels).To(Equal(uint8(2)))
		Expect(header.SampleRate).To(Equal(uint32(48000)))

		pages := 0
		for {
			_, _, err := reader.ParseNextPage()
			if errors.Is(err, io.EOF) {
				break
			}
			Expect(err).ToNot(HaveOccurred())
			pages++
		}
		// comment header plus one page per packet
		Expect(pages).To(Equal(4))
	})

	It("creates no file when the subscription ends silently", func() {
		sub := voicetest.NewSubscription()
		sub.End()

		result := NewClipRecorder(folder, KnownSpeaker("42", "alice"), sub).Run()
		Expect(result.Clip).To(BeNil())
		Expect(result.Err).ToNot(HaveOccurred())
		entries, err := os.ReadDir(folder)
		Expect(err).ToNot(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("reports a file error and still drains the stream", func() {
		sub := voicetest.NewSubscription()
		for i := 0; i < 10; i++ {
			sub.Send(uint16(i), uint32(i*960), opusFrame)
		}
		sub.End()

		result := NewClipRecorder(filepath.Join(folder, "missing"), KnownSpeaker("42", "alice"), sub).Run()
		Expect(result.Err).To(HaveOccurred())
		Expect(result.Clip).To(BeNil())
		Expect(sub.Packets()).To(BeClosed())
	})

	It("resolves the speaker after stamping the first packet", func() {
		sub := voicetest.NewSubscription()
		sub.Send(1, 960, opusFrame)
		sub.End()

		var resolvedAt time.Time
		result := NewClipRecorder(folder, ResolvedSpeaker{ID: "7"}, sub).
			ResolveWith(func() ResolvedSpeaker {
				time.Sleep(300 * time.Millisecond)
				resolvedAt = time.Now()
				return KnownSpeaker("7", "carol")
			}).
			Run()
		Expect(result.Err).ToNot(HaveOccurred())
		Expect(result.Speaker).To(Equal(KnownSpeaker("7", "carol")))
		Expect(filepath.Base(result.Clip.Path)).To(HaveSuffix("_carol.ogg"))
		Expect(resolvedAt.Sub(result.Clip.StartedAt)).To(BeNumerically(">=", 300*time.Millisecond))
		Expect(result.Clip.Duration).To(BeNumerically(">=", 300*time.Millisecond))
	})

	It("skips the lookup when no audio arrives", func() {
		sub := voicetest.NewSubscription()
		sub.End()

		called := false
		result := NewClipRecorder(folder, ResolvedSpeaker{ID: "7"}, sub).
			ResolveWith(func() ResolvedSpeaker {
				called = true
				return KnownSpeaker("7", "carol")
			}).
			Run()
		Expect(result.Clip).To(BeNil())
		Expect(called).To(BeFalse())
	})

	It("sanitizes the speaker name in the filename", func() {
		sub := voicetest.NewSubscription()
		sub.Send(1, 960, opusFrame)
		sub.End()

		result := NewClipRecorder(folder, KnownSpeaker("1", "Zoë/../x"), sub).Run()
		Expect(result.Err).ToNot(HaveOccurred())
		Expect(filepath.Dir(result.Clip.Path)).To(Equal(folder))
		Expect(filepath.Base(result.Clip.Path)).To(HaveSuffix("_Zo_____x.ogg"))
	})
})

var _ = Describe("ResolvedSpeaker", func() {
	It("derives a stable fallback label from the id", func() {
		s := FallbackSpeaker("1234")
		Expect(s.Fallback).To(BeTrue())
		Expect(s.Name).To(Equal("user-1234"))
		Expect(FallbackSpeaker("1234")).To(Equal(s))
	})

	It("falls back when the lookup fails", func() {
		connector := voicetest.NewConnector()
		connector.Names["1"] = "alice"

		Expect(ResolveSpeaker(ctx, connector, "g", "1")).To(Equal(KnownSpeaker("1", "alice")))
		Expect(ResolveSpeaker(ctx, connector, "g", "2")).To(Equal(FallbackSpeaker("2")))
	})
})
