// internal/api/handler/api/history.go
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/buddy/internal/api/response"
	"github.com/newthinker/buddy/internal/core"
	"github.com/newthinker/buddy/internal/storage/history"
	"github.com/newthinker/buddy/internal/ticker"
	"go.uber.org/zap"
)

// SaveHistoryRequest is the body of a search history save. stock_name is
// accepted for older web clients.
type SaveHistoryRequest struct {
	Query     string `json:"query"`
	StockName string `json:"stock_name,omitempty"`
}

// HistoryHandler records and lists web searches.
type HistoryHandler struct {
	store     history.Store
	directory *ticker.Directory
	logger    *zap.Logger
}

// NewHistoryHandler creates a new history handler. directory may be nil.
func NewHistoryHandler(store history.Store, directory *ticker.Directory, logger *zap.Logger) *HistoryHandler {
	if directory == nil {
		directory = ticker.NewDirectory(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryHandler{store: store, directory: directory, logger: logger}
}

// Save records one search and returns the stored entry.
func (h *HistoryHandler) Save(w http.ResponseWriter, r *http.Request) {
	e, err := h.save(r)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, e)
}

// SaveLegacy records one search and answers {"success": true}.
func (h *HistoryHandler) SaveLegacy(w http.ResponseWriter, r *http.Request) {
	if _, err := h.save(r); err != nil {
		response.Fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"success":true}`))
}

func (h *HistoryHandler) save(r *http.Request) (history.Entry, error) {
	var body SaveHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return history.Entry{}, core.WrapError(core.ErrInvalidParameters, err)
	}
	query := strings.TrimSpace(body.Query)
	if query == "" {
		query = strings.TrimSpace(body.StockName)
	}

	e := history.Entry{Query: query}
	if symbol, err := h.directory.Resolve(query); err == nil {
		e.Symbol = symbol
	}
	saved, err := h.store.Save(r.Context(), e)
	if err != nil {
		return history.Entry{}, err
	}
	h.logger.Info("search saved", zap.String("query", saved.Query), zap.String("symbol", saved.Symbol))
	return saved, nil
}

// List returns entries matching query parameters.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := history.ListFilter{
		Query:  q.Get("query"),
		Symbol: q.Get("symbol"),
	}

	if from := q.Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.From = t
		} else if t, err := time.Parse(time.DateOnly, from); err == nil {
			filter.From = t
		}
	}

	if to := q.Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = t
		} else if t, err := time.Parse(time.DateOnly, to); err == nil {
			filter.To = t
		}
	}

	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			filter.Limit = n
		}
	} else {
		filter.Limit = 50 // Default limit
	}

	if offset := q.Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			filter.Offset = n
		}
	}

	entries, err := h.store.List(r.Context(), filter)
	if err != nil {
		response.Fail(w, err)
		return
	}

	count, _ := h.store.Count(r.Context(), filter)

	response.JSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   count,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}
