package adapthttp

import (
	"fmt"
	"net/http"

	"datausage/internal/wire"
)

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status, err := s.remote.AccountStatus(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if p := principalFrom(r.Context()); p != nil {
		s.logger.Debug("account status", "subject", p.Subject, "method", p.Method, "status", string(status))
	}
	writeJSON(w, http.StatusOK, wire.Account{Status: status})
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		ids, err := s.remote.FetchSubscriptionIDs(ctx)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		writeJSON(w, http.StatusOK, wire.Subscriptions{IDs: ids})

	case http.MethodPost:
		var body wire.Subscription
		if err := parseJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if !body.RecordType.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown record type %q", body.RecordType))
			return
		}
		ok, err := s.remote.CreateSubscription(ctx, body.RecordType, body.ID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, wire.Result{OK: ok})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
