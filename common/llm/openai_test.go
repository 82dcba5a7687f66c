package llm_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/storepilot/common/llm"
)

var _ = Describe("OpenAI generator", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
		gen     llm.Generator
	)

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			handler(w, r)
		}))

		var err error
		gen, err = llm.New(context.Background(), llm.Config{
			Provider: llm.ProviderOpenAI,
			APIKey:   "sk-test",
			BaseURL:  server.URL,
			Model:    "gpt-test",
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("returns the completion text and requests a JSON object", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(HaveSuffix("/chat/completions"))
			var body map[string]any
			Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
			Expect(body["model"]).To(Equal("gpt-test"))
			Expect(body["response_format"]).To(HaveKeyWithValue("type", "json_object"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-test",
				"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"actions\":[]}"}}],
				"usage":{"prompt_tokens":12,"completion_tokens":4,"total_tokens":16}}`)
		}

		resp, err := gen.Generate(context.Background(), llm.Request{UserPrompt: "plan", JSON: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Text).To(Equal(`{"actions":[]}`))
		Expect(resp.PromptTokens).To(Equal(12))
		Expect(gen.Provider()).To(Equal(llm.ProviderOpenAI))
		Expect(gen.Model()).To(Equal("gpt-test"))
	})

	It("classifies a leaked-key rejection as a credential error", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"error":{"message":"Your API key was reported as leaked.","type":"invalid_request_error","param":null,"code":"leaked_key"}}`)
		}

		_, err := gen.Generate(context.Background(), llm.Request{UserPrompt: "plan"})
		Expect(err).To(HaveOccurred())
		Expect(llm.StatusCode(err)).To(Equal(http.StatusForbidden))
		Expect(llm.IsCredentialError(err)).To(BeTrue())
	})
})

var _ = Describe("New", func() {
	It("requires an API key", func() {
		_, err := llm.New(context.Background(), llm.Config{Provider: llm.ProviderOpenAI})
		Expect(err).To(MatchError(ContainSubstring("API key is required")))
	})

	It("rejects unknown providers", func() {
		_, err := llm.New(context.Background(), llm.Config{Provider: "cohere", APIKey: "k"})
		Expect(err).To(MatchError(ContainSubstring("unsupported LLM provider")))
	})

	It("defaults the model per provider", func() {
		gen, err := llm.New(context.Background(), llm.Config{Provider: llm.ProviderAnthropic, APIKey: "k"})
		Expect(err).NotTo(HaveOccurred())
		Expect(gen.Model()).To(Equal(llm.DefaultModel(llm.ProviderAnthropic)))
	})
})
