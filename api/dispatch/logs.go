package dispatch

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/carrierchain/core/dispatch/logging"
)

// NewLogHandler returns an HTTP handler exposing the dispatch timeline via
// GET /api/dispatch/logs. Supported query parameters are order_id,
// carrier_id, kind, start and end (RFC 3339) and limit. Requests must
// include an Authorization header with "Bearer <token>" when token is
// non-empty.
func NewLogHandler(store logging.LogStore, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		params := r.URL.Query()
		q := logging.LogQuery{
			OrderID:   params.Get("order_id"),
			CarrierID: params.Get("carrier_id"),
			Kind:      params.Get("kind"),
		}
		if s := params.Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := params.Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		if s := params.Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			q.Limit = n
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []logging.LogRecord{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
