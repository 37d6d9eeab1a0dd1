package backend_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/mudler/voxlog/core/backend"
	"github.com/mudler/voxlog/core/config"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Summarizers", func() {
	var (
		srv  *httptest.Server
		body map[string]any
	)

	AfterEach(func() {
		if srv != nil {
			srv.Close()
		}
	})

	capture := func(r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		Expect(err).ToNot(HaveOccurred())
		body = map[string]any{}
		Expect(json.Unmarshal(raw, &body)).To(Succeed())
	}

	It("selects the provider from config", func() {
		s, err := NewSummarizer(config.NewApplicationConfig(config.WithSummaryProvider(config.SummaryProviderNone, "")))
		Expect(err).ToNot(HaveOccurred())
		Expect(s).To(BeNil())

		_, err = NewSummarizer(config.NewApplicationConfig(config.WithSummaryProvider(config.SummaryProviderAnthropic, "")))
		Expect(err).To(HaveOccurred())

		s, err = NewSummarizer(config.NewApplicationConfig())
		Expect(err).ToNot(HaveOccurred())
		Expect(s).To(BeAssignableToTypeOf(&OpenAISummarizer{}))
	})

	It("sends the system prompt and transcript to chat completions", func() {
		srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/chat/completions"))
			capture(r)
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini-2024-07-18",
				"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"## Overview\nShort chat."}}]}`)
		}))
		s := NewOpenAISummarizer(config.NewApplicationConfig(config.WithOpenAI("sk-test", srv.URL+"/v1")))

		summary, err := s.Summarize(context.Background(), "be brief", "[00:01] alice (90%): hi")
		Expect(err).ToNot(HaveOccurred())
		Expect(summary.Text).To(ContainSubstring("Short chat."))
		Expect(summary.Model).To(Equal("gpt-4o-mini-2024-07-18"))

		messages := body["messages"].([]any)
		Expect(messages).To(HaveLen(2))
		Expect(messages[0].(map[string]any)["role"]).To(Equal("system"))
		Expect(messages[1].(map[string]any)["content"]).To(Equal("[00:01] alice (90%): hi"))
	})

	It("rejects an empty completion", func() {
		srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`)
		}))
		s := NewOpenAISummarizer(config.NewApplicationConfig(config.WithOpenAI("sk-test", srv.URL)))
		_, err := s.Summarize(context.Background(), "p", "t")
		Expect(err).To(MatchError(ErrEmptySummary))
	})

	It("joins the text blocks of an Anthropic message", func() {
		srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/messages"))
			Expect(r.Header.Get("X-Api-Key")).To(Equal("sk-ant"))
			capture(r)
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-haiku-4-5",
				"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":2},
				"content":[{"type":"text","text":"Part one. "},{"type":"text","text":"Part two."}]}`)
		}))
		s := NewAnthropicSummarizer(config.NewApplicationConfig(
			config.WithSummaryProvider(config.SummaryProviderAnthropic, "claude-haiku-4-5"),
			config.WithAnthropic("sk-ant", srv.URL),
		))

		summary, err := s.Summarize(context.Background(), "be brief", "transcript")
		Expect(err).ToNot(HaveOccurred())
		Expect(summary.Text).To(Equal("Part one. Part two."))
		Expect(summary.Model).To(Equal("claude-haiku-4-5"))
		Expect(body["system"]).To(HaveLen(1))
		Expect(body["model"]).To(Equal("claude-haiku-4-5"))
	})
})
