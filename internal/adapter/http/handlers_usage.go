package adapthttp

import (
	"fmt"
	"net/http"
	"time"

	"datausage/internal/domain"
	"datausage/internal/wire"
)

const (
	defaultPageSize = 500
	maxPageSize     = 1000
)

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		keys := r.URL.Query()["day"]
		days := make([]time.Time, 0, len(keys))
		for _, k := range keys {
			d, err := domain.ParseDay(k)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("invalid day %q", k))
				return
			}
			days = append(days, d)
		}
		recs, err := s.remote.FetchUsage(ctx, days)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, wire.UsageBatch{Records: wire.FromUsages(recs)})

	case http.MethodPost, http.MethodPut:
		var body wire.UsageBatch
		if err := parseJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		recs, err := wire.Records(body.Records)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		var ok bool
		if r.Method == http.MethodPost {
			ok, err = s.remote.InsertUsage(ctx, recs)
		} else {
			ok, err = s.remote.UpdateUsage(ctx, recs)
		}
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, wire.Result{OK: ok})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleUsageAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	after := r.URL.Query().Get("after")
	if after != "" {
		if _, err := domain.ParseDay(after); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid after %q", after))
			return
		}
	}
	limit := min(intQuery(r, "limit", defaultPageSize), maxPageSize)

	recs, next, err := s.remote.UsagePage(r.Context(), after, limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.UsagePage{Records: wire.FromUsages(recs), Next: next})
}
