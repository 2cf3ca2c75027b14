package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/service"
	"github.com/papercomputeco/recall/pkg/store/inmemory"
)

func decodeBody(resp *http.Response, out any) {
	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(data, out)).To(Succeed())
}

func jsonRequest(method, target string, payload any) *http.Request {
	body, err := json.Marshal(payload)
	Expect(err).NotTo(HaveOccurred())

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	return req
}

var _ = Describe("API Server", func() {
	var (
		server *Server
		svc    *service.Service
	)

	BeforeEach(func() {
		var err error
		svc, err = service.New(context.Background(), service.Config{
			Store:  inmemory.NewDriver(),
			Logger: logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		server = NewServer(Config{ListenAddr: ":0"}, svc, nil, logger.Nop())
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("GET /version", func() {
		It("reports the build", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/version", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body map[string]string
			decodeBody(resp, &body)
			Expect(body).To(HaveKey("version"))
		})
	})

	Describe("GET /memory/:user_id", func() {
		It("returns 404 for an unknown user", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/memory/nobody", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("returns the record", func() {
			_, err := svc.Create(context.Background(), "u1", map[string]any{
				"profile": map[string]any{"name": "Sam"},
			}, false)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/memory/u1", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var record memory.Record
			decodeBody(resp, &record)
			Expect(record.UserID).To(Equal("u1"))
			Expect(record.Profile.Name).To(Equal("Sam"))
		})
	})

	Describe("POST /memory/:user_id", func() {
		It("creates a record", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/memory/u1", map[string]any{
				"profile": map[string]any{"name": "Sam"},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var record memory.Record
			decodeBody(resp, &record)
			Expect(record.UserID).To(Equal("u1"))
		})

		It("returns 409 for a duplicate create", func() {
			_, err := svc.Create(context.Background(), "u1", map[string]any{}, false)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/memory/u1", map[string]any{}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})

		It("honors the overwrite query parameter", func() {
			_, err := svc.Create(context.Background(), "u1", map[string]any{
				"profile": map[string]any{"name": "Sam"},
			}, false)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/memory/u1?overwrite=true", map[string]any{
				"profile": map[string]any{"name": "Alex"},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var record memory.Record
			decodeBody(resp, &record)
			Expect(record.Profile.Name).To(Equal("Alex"))
		})

		It("returns 400 for a malformed body", func() {
			req := httptest.NewRequest(http.MethodPost, "/memory/u1", bytes.NewReader([]byte("{ not json")))
			req.Header.Set("Content-Type", "application/json")

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns 422 for an invalid record", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/memory/u1", map[string]any{
				"profile": map[string]any{
					"weekly_planning": map[string]any{"planning_time_local": "late"},
				},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))

			var body ErrorResponse
			decodeBody(resp, &body)
			Expect(body.Error).To(ContainSubstring("planning_time_local"))
		})

		It("returns 400 for non-object event entries", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/memory/u1", map[string]any{
				"events": []any{"bare string"},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("PATCH /memory/:user_id", func() {
		BeforeEach(func() {
			_, err := svc.Create(context.Background(), "u1", map[string]any{
				"profile": map[string]any{"name": "Sam"},
			}, false)
			Expect(err).NotTo(HaveOccurred())
		})

		It("merges the payload into the record", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPatch, "/memory/u1", map[string]any{
				"profile": map[string]any{"role": "PM"},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var record memory.Record
			decodeBody(resp, &record)
			Expect(record.Profile.Name).To(Equal("Sam"))
			Expect(record.Profile.Role).To(Equal("PM"))
		})

		It("creates the record when patching an unknown user", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPatch, "/memory/fresh", map[string]any{
				"profile": map[string]any{"name": "Alex"},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("returns 422 when the merge result is invalid", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPatch, "/memory/u1", map[string]any{
				"events": []any{map[string]any{"id": "bogus", "type": "meeting"}},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
		})
	})

	Describe("GET /memory/stats", func() {
		It("reports index totals", func() {
			_, err := svc.Create(context.Background(), "u1", map[string]any{
				"events": []any{map[string]any{"type": "note", "title": "n1"}},
			}, false)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/memory/stats", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body map[string]any
			decodeBody(resp, &body)
			Expect(body).To(HaveKeyWithValue("users", float64(1)))
			Expect(body).To(HaveKeyWithValue("events", float64(1)))
		})
	})
})
