package pipeline_test

import (
	"math"
	"time"

	"github.com/mudler/voxlog/core/pipeline"
	"github.com/mudler/voxlog/core/schema"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func seg(speaker string, start, confidence float64) schema.Segment {
	return schema.Segment{Speaker: speaker, Text: speaker, Start: start, End: start + 1, Confidence: confidence, NoSpeechProb: 0.1}
}

var _ = Describe("MergeSegments", func() {
	It("returns empty for no input", func() {
		Expect(pipeline.MergeSegments(nil)).To(BeEmpty())
	})

	It("returns a single segment unchanged", func() {
		s := seg("alice", 3, 0.5)
		Expect(pipeline.MergeSegments([]schema.Segment{s})).To(Equal([]schema.Segment{s}))
	})

	It("averages pairwise in sort order", func() {
		in := []schema.Segment{seg("a", 0, 0.9), seg("a", 1, 0.8), seg("a", 2, 0.7), seg("a", 3, 0.95)}
		out := pipeline.MergeSegments(in)
		Expect(out).To(HaveLen(1))
		Expect(out[0].Confidence).To(BeNumerically("~", 0.8625, 1e-12))
		Expect(out[0].Text).To(Equal("a a a a"))
		Expect(out[0].Start).To(Equal(0.0))
		Expect(out[0].End).To(Equal(4.0))
	})

	It("never merges alternating speakers", func() {
		in := []schema.Segment{seg("a", 0, 1), seg("b", 1, 1), seg("a", 2, 1), seg("b", 3, 1)}
		Expect(pipeline.MergeSegments(in)).To(HaveLen(4))
	})

	It("keeps a returning speaker as a separate group", func() {
		in := []schema.Segment{seg("a", 0, 1), seg("a", 1, 1), seg("b", 2, 1), seg("a", 3, 1)}
		out := pipeline.MergeSegments(in)
		Expect(out).To(HaveLen(3))
		Expect([]string{out[0].Speaker, out[1].Speaker, out[2].Speaker}).To(Equal([]string{"a", "b", "a"}))
	})

	It("sorts by start before merging", func() {
		in := []schema.Segment{seg("a", 5, 1), seg("b", 2, 1), seg("a", 0, 1)}
		out := pipeline.MergeSegments(in)
		Expect(out).To(HaveLen(3))
		Expect(out[0].Start).To(Equal(0.0))
		Expect(out[1].Speaker).To(Equal("b"))
	})

	It("keeps the later end when a merged member ends first", func() {
		long := schema.Segment{Speaker: "a", Text: "long", Start: 0, End: 10}
		short := schema.Segment{Speaker: "a", Text: "short", Start: 1, End: 2}
		Expect(pipeline.MergeSegments([]schema.Segment{long, short})[0].End).To(Equal(10.0))
	})
})

var _ = Describe("Segment filtering", func() {
	DescribeTable("Keep",
		func(s schema.Segment, keep bool) {
			Expect(pipeline.DefaultFilter().Keep(s)).To(Equal(keep))
		},
		Entry("plain speech", schema.Segment{Text: "hello", Start: 0, End: 1, NoSpeechProb: 0.1}, true),
		Entry("probably silence", schema.Segment{Text: "hello", Start: 0, End: 1, NoSpeechProb: 0.61}, false),
		Entry("at the threshold", schema.Segment{Text: "hello", Start: 0, End: 1, NoSpeechProb: 0.6}, true),
		Entry("single rune", schema.Segment{Text: " a ", Start: 0, End: 1}, false),
		Entry("whitespace", schema.Segment{Text: "   ", Start: 0, End: 1}, false),
		Entry("two multibyte runes", schema.Segment{Text: "日本", Start: 0, End: 1}, true),
		Entry("too short", schema.Segment{Text: "hello", Start: 1, End: 1.05}, false),
	)

	It("rebases onto the session timeline with exp confidence", func() {
		res := &schema.TranscriptionResult{Segments: []schema.TranscriptionSegment{
			segment(0.5, 1.5, " hi there ", -0.5, 0.2),
		}}
		out := pipeline.Rebase("bob", 1500*time.Millisecond, res)
		Expect(out).To(HaveLen(1))
		Expect(out[0].Speaker).To(Equal("bob"))
		Expect(out[0].Text).To(Equal("hi there"))
		Expect(out[0].Start).To(BeNumerically("~", 2.0, 1e-9))
		Expect(out[0].End).To(BeNumerically("~", 3.0, 1e-9))
		Expect(out[0].Confidence).To(BeNumerically("~", math.Exp(-0.5), 1e-12))
	})
})

var _ = Describe("RenderTranscript", func() {
	It("prints the header, one line per segment and the cutoff", func() {
		doc := pipeline.RenderTranscript(pipeline.TranscriptDocument{
			Folder:    "/rec/2024-05-01_18-02-11-042",
			StartedAt: sessionStart,
			Duration:  75*time.Second + 400*time.Millisecond,
			Segments: []schema.Segment{
				{Speaker: "alice", Text: "hello", Start: 1.2, Confidence: 0.914},
				{Speaker: "bob", Text: "hi", Start: 62, Confidence: 0.5},
			},
			NoSpeechThreshold: 0.6,
		})
		Expect(doc).To(HavePrefix("# Voice Session Transcript\n"))
		Expect(doc).To(ContainSubstring("**Session:** 2024-05-01_18-02-11-042\n"))
		Expect(doc).To(ContainSubstring("**Started:** 2024-05-01T18:02:11Z\n"))
		Expect(doc).To(ContainSubstring("**Duration:** 01:15\n"))
		Expect(doc).To(ContainSubstring("**Segments:** 2\n"))
		Expect(doc).To(ContainSubstring("[00:01] alice (91%): hello\n"))
		Expect(doc).To(ContainSubstring("[01:02] bob (50%): hi\n"))
		Expect(doc).To(ContainSubstring("no-speech probability above 60% were discarded"))
	})

	It("formats clocks past an hour as minutes", func() {
		Expect(pipeline.FormatClock(3725)).To(Equal("62:05"))
		Expect(pipeline.FormatClock(-1)).To(Equal("00:00"))
	})
})
