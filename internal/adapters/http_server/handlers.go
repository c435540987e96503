package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"review_insights/internal/app"
	"review_insights/internal/domain"
	"review_insights/internal/suggest"
)

// Ingester runs one ingestion; *app.Pipeline satisfies it.
type Ingester interface {
	RunIngestion(ctx context.Context, url string, businessID int64) (domain.IngestionReport, error)
}

type Handlers struct {
	Q       *app.QueryService
	Ingest  Ingester
	Suggest domain.SuggestionDetector
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type ingestRequest struct {
	URL string `json:"url"`
}

type ingestResponse struct {
	Outcome string                 `json:"outcome"`
	Error   string                 `json:"error,omitempty"`
	Report  domain.IngestionReport `json:"report"`
}

type predictRequest struct {
	Text string `json:"text"`
}

type predictResponse struct {
	IsSuggestion bool `json:"is_suggestion"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Group(func(r chi.Router) {
		r.Use(Timeout(15 * time.Second))
		r.Get("/v1/businesses/{id}/reviews", h.listReviews)
		r.With(LimitBody(64<<10)).Post("/v1/suggestions/predict", h.predict)
	})
	if h.Ingest != nil {
		s.mux.With(LimitBody(8<<10)).Post("/v1/businesses/{id}/ingest", h.ingest)
	}
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

func businessID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handlers) ingest(w http.ResponseWriter, r *http.Request) {
	id, ok := businessID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "expected {\"url\": \"...\"}")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		writeProblem(w, http.StatusBadRequest, "Invalid URL", "url must be an absolute http(s) URL")
		return
	}

	// A client hanging up must not abandon a half-committed run; the
	// collector's own deadline and Abort bound it.
	rep, err := h.Ingest.RunIngestion(context.WithoutCancel(r.Context()), req.URL, id)
	resp := ingestResponse{Outcome: app.Outcome(err), Report: rep}
	if err != nil {
		resp.Error = err.Error()
	}
	// A failed run still answers 200 so the caller can keep the business.
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := businessID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}

	limit := app.DefaultReviewLimit
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}
	sort := app.DefaultReviewSort
	if ss := r.URL.Query().Get("sort"); ss != "" {
		if !app.ValidSort(ss) {
			writeProblem(w, http.StatusBadRequest, "Invalid sort", "sort must be one of review_date, -review_date, senti_score, -senti_score, -rating")
			return
		}
		sort = ss
	}

	out, err := h.Q.ListReviews(r.Context(), id, domain.PageQuery{Limit: limit, Sort: sort})
	if err != nil {
		log.Error().Err(err).Int64("business_id", id).Msg("list reviews failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "reviews unavailable")
		return
	}

	etag, body := calcETagAndBody(out)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write listReviews body")
	}
}

func (h *Handlers) predict(w http.ResponseWriter, r *http.Request) {
	if h.Suggest == nil {
		writeProblem(w, http.StatusServiceUnavailable, "Unavailable", "no suggestion detector configured")
		return
	}
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "expected {\"text\": \"...\"}")
		return
	}
	ok, err := h.Suggest.Predict(req.Text)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, suggest.ErrNotTrained) {
			status = http.StatusServiceUnavailable
		}
		writeProblem(w, status, http.StatusText(status), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, predictResponse{IsSuggestion: ok})
}
