package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/book-qa/internal/config"
	"github.com/kirillkom/book-qa/internal/core/domain"
	"github.com/kirillkom/book-qa/internal/core/ports"
	"github.com/kirillkom/book-qa/internal/observability/metrics"
)

const serviceName = "book-qa-api"

// IndexCounter reports how many entries the current index holds.
type IndexCounter interface {
	Count(ctx context.Context) (int, error)
}

type Services struct {
	Converter ports.DocumentConverter
	Indexer   ports.IndexBuilder
	Answerer  ports.QuestionAnswerer
	Resetter  ports.SessionResetter
	Index     IndexCounter
}

type Router struct {
	cfg     config.Config
	svc     Services
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(cfg config.Config, svc Services, m *metrics.HTTPServerMetrics) *Router {
	if m == nil {
		m = metrics.NewHTTPServerMetrics(serviceName)
	}
	return &Router{cfg: cfg, svc: svc, metrics: m}
}

func (rt *Router) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	routes := map[string]http.HandlerFunc{
		"/healthz":      rt.healthz,
		"/v1/languages": rt.languages,
		"/v1/documents": rt.convertDocument,
		"/v1/index":     rt.buildIndex,
		"/v1/questions": rt.askQuestion,
		"/v1/history":   rt.history,
		"/v1/reset":     rt.reset,
		"/openapi.yaml": serveOpenAPI,
	}
	for pattern, handle := range routes {
		mux.Handle(pattern, rt.metrics.Route(pattern, handle))
	}
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.Handle("/", rt.metrics.Route(metrics.UnmatchedRoute, http.HandlerFunc(notFound)))

	validated, err := validationMiddleware(mux)
	if err != nil {
		return nil, err
	}

	wait := time.Duration(rt.cfg.APIBackpressureWaitMS) * time.Millisecond
	var handler http.Handler = validated
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, wait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = rt.metrics.InFlight(handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler, nil
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	resp := map[string]any{"status": "ok"}
	if rt.svc.Index != nil {
		count, err := rt.svc.Index.Count(r.Context())
		if err != nil {
			resp["status"] = "degraded"
			resp["error"] = err.Error()
		} else {
			resp["index_entries"] = count
			rt.metrics.Pipeline().SetIndexedChunks(count)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) languages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, domain.Languages)
}

func (rt *Router) convertDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if rt.cfg.APIMaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.APIMaxUploadBytes)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload exceeds size limit", Kind: "invalid_input"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "multipart field 'file' is required", Kind: "invalid_input"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("read upload: %v", err), Kind: "invalid_input"})
		return
	}

	done := rt.metrics.Pipeline().Track("convert")
	conversion, err := rt.svc.Converter.Convert(r.Context(), domain.Document{
		Name:     fileHeader.Filename,
		Language: strings.TrimSpace(r.FormValue("language")),
		Content:  content,
	})
	done(err)
	if err != nil {
		writeError(w, err)
		return
	}

	out := *conversion
	out.Text = ""
	writeJSON(w, http.StatusCreated, out)
}

func (rt *Router) buildIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	done := rt.metrics.Pipeline().Track("index")
	report, err := rt.svc.Indexer.Build(r.Context())
	done(err)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.metrics.Pipeline().SetIndexedChunks(report.Chunks)
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) askQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json", Kind: "invalid_input"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question is required", Kind: "invalid_input"})
		return
	}

	done := rt.metrics.Pipeline().Track("ask")
	answer, err := rt.svc.Answerer.Ask(r.Context(), req.Question)
	done(err)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.metrics.Pipeline().RecordRetrieval(answer.Matched, len(answer.Sources))
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	records, err := rt.svc.Answerer.History(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.QueryRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (rt *Router) reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	done := rt.metrics.Pipeline().Track("reset")
	err := rt.svc.Resetter.Reset(r.Context())
	done(err)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.metrics.Pipeline().SetIndexedChunks(0)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func serveOpenAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openAPIDocument)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
