package adapthttp

import (
	"errors"
	"net/http"

	"datausage/internal/wire"
)

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		p, err := s.remote.FetchPlan(ctx)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if p == nil {
			writeError(w, http.StatusNotFound, errors.New("no plan stored"))
			return
		}
		writeJSON(w, http.StatusOK, wire.FromPlan(*p))

	case http.MethodPost, http.MethodPut:
		var body wire.Plan
		if err := parseJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		p, err := body.Record()
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		var ok bool
		if r.Method == http.MethodPost {
			ok, err = s.remote.InsertPlan(ctx, p)
		} else {
			ok, err = s.remote.UpdatePlan(ctx, p)
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
