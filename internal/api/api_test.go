package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ragcore/internal/embedding"
	"ragcore/internal/embedding/hashing"
	"ragcore/internal/embedding/ollama"
	"ragcore/internal/logger"
	"ragcore/internal/retry"
	"ragcore/internal/service"
	"ragcore/internal/summarizer"
	"ragcore/internal/vectorstore/memory"
	testutils "ragcore/internal/testutil"
)

const document = "Cats are small domesticated felines. Cats purr when content. " +
	"Dogs are loyal companions. Dogs bark at strangers. " +
	"Fish live in water. Fish breathe through gills."

var _ = Describe("Server", func() {
	var (
		server *Server
		store  *memory.Storage
	)

	newServer := func(provider embedding.Provider) *Server {
		cfg := service.DefaultConfig()
		cfg.MaxChunkSize = 60
		pipeline := service.NewPipeline(provider, cfg, logger.Nop())
		return NewServer(
			Config{ListenAddr: ":0", Retry: retry.Policy{MaxAttempts: 1}},
			pipeline,
			store,
			summarizer.NewFrequencySummarizer(2),
			logger.Nop(),
		)
	}

	do := func(req *http.Request) (*http.Response, []byte) {
		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp, body
	}

	create := func(text string) (*http.Response, []byte) {
		payload, err := json.Marshal(CreateCollectionRequest{Text: text})
		Expect(err).NotTo(HaveOccurred())
		req, err := http.NewRequest(http.MethodPost, "/v1/collections", bytes.NewReader(payload))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		return do(req)
	}

	search := func(id, query, topK string) (*http.Response, []byte) {
		q := url.Values{"query": {query}}
		if topK != "" {
			q.Set("top_k", topK)
		}
		req, err := http.NewRequest(http.MethodGet, "/v1/collections/"+id+"/search?"+q.Encode(), nil)
		Expect(err).NotTo(HaveOccurred())
		return do(req)
	}

	BeforeEach(func() {
		store = memory.NewStorage(memory.Config{CleanupInterval: -1})
		DeferCleanup(store.Close)
		server = newServer(hashing.NewEmbedder(128))
	})

	It("reports health", func() {
		req, err := http.NewRequest(http.MethodGet, "/health", nil)
		Expect(err).NotTo(HaveOccurred())
		resp, body := do(req)
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(body).To(MatchJSON(`{"status":"ok"}`))
	})

	Context("creating collections", func() {
		It("chunks, embeds and stores the text", func() {
			resp, body := create(document)
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			var out CollectionResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.ID).NotTo(BeEmpty())
			Expect(out.Chunks).To(BeNumerically(">=", 3))
			Expect(out.Dimension).To(Equal(128))
			Expect(out.Summary).NotTo(BeEmpty())
			Expect(out.ExpiresAt).NotTo(BeZero())
		})

		It("rejects blank text", func() {
			resp, body := create("   ")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("invalid input"))
		})

		It("rejects malformed bodies", func() {
			req, err := http.NewRequest(http.MethodPost, "/v1/collections", strings.NewReader("{"))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")
			resp, _ := do(req)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 429 with Retry-After when the provider is rate limited", func() {
			provider := testutils.NewMockProvider()
			provider.RateLimitOn = "busy"
			server = newServer(provider)
			resp, body := create("busy")
			Expect(resp.StatusCode).To(Equal(fiber.StatusTooManyRequests))
			Expect(resp.Header.Get("Retry-After")).To(Equal("1"))
			Expect(string(body)).To(ContainSubstring("rate limited"))
		})

		It("returns 502 when the provider is unavailable", func() {
			provider := testutils.NewMockProvider()
			provider.FailOn = "down"
			server = newServer(provider)
			resp, _ := create("down")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadGateway))
		})

		It("returns 504 when the provider outlives the request timeout", func() {
			slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				<-r.Context().Done()
			}))
			DeferCleanup(slow.Close)
			server = newServer(ollama.NewEmbedder(ollama.Config{BaseURL: slow.URL}))
			server.config.Retry = retry.Policy{MaxAttempts: 3}
			server.config.RequestTimeout = 100 * time.Millisecond

			resp, body := create(document)
			Expect(resp.StatusCode).To(Equal(fiber.StatusGatewayTimeout))
			Expect(string(body)).To(ContainSubstring("deadline exceeded"))
		})

		It("retries rate-limited work under the configured policy", func() {
			provider := testutils.NewMockProvider()
			provider.RateLimitOn = "busy"
			server = newServer(provider)
			server.config.Retry = retry.Policy{MaxAttempts: 3}
			resp, _ := create("busy")
			Expect(resp.StatusCode).To(Equal(fiber.StatusTooManyRequests))
			Expect(provider.Batches()).To(HaveLen(3))
		})
	})

	Context("uploading documents", func() {
		upload := func(name, content string) (*http.Response, []byte) {
			var buf bytes.Buffer
			w := multipart.NewWriter(&buf)
			part, err := w.CreateFormFile("file", name)
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write([]byte(content))
			Expect(err).NotTo(HaveOccurred())
			Expect(w.Close()).To(Succeed())
			req, err := http.NewRequest(http.MethodPost, "/v1/collections/upload", &buf)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", w.FormDataContentType())
			return do(req)
		}

		It("accepts text files", func() {
			resp, _ := upload("notes.txt", document)
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
		})

		It("rejects unsupported files", func() {
			resp, body := upload("sheet.xlsx", "data")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("unsupported file type"))
		})

		It("requires the file field", func() {
			req, err := http.NewRequest(http.MethodPost, "/v1/collections/upload", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, _ := do(req)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Context("searching", func() {
		var id string

		BeforeEach(func() {
			resp, body := create(document)
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
			var out CollectionResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			id = out.ID
		})

		It("returns the most relevant chunk first", func() {
			resp, body := search(id, "dogs bark", "1")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			var out SearchResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Count).To(Equal(1))
			Expect(out.Chunks[0].Text).To(ContainSubstring("Dogs"))
			Expect(out.Context).To(Equal(out.Chunks[0].Text))
		})

		It("uses the default top_k", func() {
			resp, body := search(id, "cats", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			var out SearchResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Count).To(BeNumerically(">=", 3))
		})

		It("returns no chunks for top_k=0", func() {
			_, body := search(id, "cats", "0")
			var out SearchResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Chunks).To(BeEmpty())
		})

		It("rejects a missing query", func() {
			resp, body := search(id, "", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("query parameter is required"))
		})

		It("rejects a bad top_k", func() {
			resp, _ := search(id, "cats", "abc")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			resp, _ = search(id, "cats", "-1")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 404 for unknown collections", func() {
			resp, _ := search("nope", "cats", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("deletes collections", func() {
			req, err := http.NewRequest(http.MethodDelete, "/v1/collections/"+id, nil)
			Expect(err).NotTo(HaveOccurred())
			resp, _ := do(req)
			Expect(resp.StatusCode).To(Equal(fiber.StatusNoContent))

			resp, _ = search(id, "cats", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))

			resp, _ = do(req)
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})
})
