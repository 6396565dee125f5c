// internal/api/handler/api/artifacts.go
package api

import (
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/newthinker/buddy/internal/api/response"
	"github.com/newthinker/buddy/internal/backtest"
	"github.com/newthinker/buddy/internal/storage/archive"
	"github.com/shopspring/decimal"
)

// ArtifactSummary is what a stored result table says about its run.
type ArtifactSummary struct {
	Path       string          `json:"path"`
	Name       string          `json:"name"`
	Start      string          `json:"start,omitempty"`
	End        string          `json:"end,omitempty"`
	Periods    int             `json:"periods"`
	Invested   decimal.Decimal `json:"invested"`
	Balance    decimal.Decimal `json:"balance"`
	Rate       decimal.Decimal `json:"rate"`
	LastSignal string          `json:"last_signal,omitempty"`
	Size       string          `json:"size,omitempty"`
}

// ArtifactsHandler serves stored backtest result tables.
type ArtifactsHandler struct {
	store *backtest.ArtifactStore
}

// NewArtifactsHandler creates a new artifacts handler.
func NewArtifactsHandler(store *backtest.ArtifactStore) *ArtifactsHandler {
	return &ArtifactsHandler{store: store}
}

// List returns the stored artifact paths. With summary=true each entry is
// reloaded and summarized.
func (h *ArtifactsHandler) List(w http.ResponseWriter, r *http.Request) {
	paths, err := h.store.List(r.Context())
	if err != nil {
		response.Fail(w, err)
		return
	}

	if r.URL.Query().Get("summary") != "true" {
		response.JSON(w, http.StatusOK, map[string]any{
			"artifacts": paths,
			"total":     len(paths),
		})
		return
	}

	summaries := make([]ArtifactSummary, 0, len(paths))
	for _, p := range paths {
		s, err := h.summarize(r, p)
		if err != nil {
			response.Fail(w, err)
			return
		}
		summaries = append(summaries, s)
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"artifacts": summaries,
		"total":     len(summaries),
	})
}

// Get downloads one artifact, or its summary with ?view=summary.
func (h *ArtifactsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := archive.Clean(r.PathValue("path"))
	if err != nil {
		response.Fail(w, err)
		return
	}

	if r.URL.Query().Get("view") == "summary" {
		s, err := h.summarize(r, p)
		if err != nil {
			response.Fail(w, err)
			return
		}
		response.JSON(w, http.StatusOK, s)
		return
	}

	data, err := h.store.Storage().Read(r.Context(), p)
	if err != nil {
		response.Fail(w, err)
		return
	}
	w.Header().Set("Content-Type", archive.ContentType(p))
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(p)+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *ArtifactsHandler) summarize(r *http.Request, p string) (ArtifactSummary, error) {
	data, err := h.store.Storage().Read(r.Context(), p)
	if err != nil {
		return ArtifactSummary{}, err
	}
	rows, err := h.store.Load(r.Context(), p)
	if err != nil {
		return ArtifactSummary{}, err
	}
	s := backtest.Summarize(rows)
	out := ArtifactSummary{
		Path:     p,
		Name:     strings.TrimSuffix(path.Base(p), path.Ext(p)),
		Periods:  s.Periods,
		Invested: s.Invested,
		Balance:  s.Balance,
		Rate:     s.Rate,
		Size:     humanize.Bytes(uint64(len(data))),
	}
	if s.Periods > 0 {
		out.Start = s.Start.Format(time.DateOnly)
		out.End = s.End.Format(time.DateOnly)
		out.LastSignal = s.LastSignal.Label()
	}
	return out, nil
}
