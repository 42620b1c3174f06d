package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sensorgrid/sensorgrid-core/internal/auth"
)

// handlePurchaseAccess buys one subscription period for the caller.
//
//	POST /devices/{deviceID}/access
//	{"payment": 1000000000000000}
func (s *Server) handlePurchaseAccess(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Payment *int64 `json:"payment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Payment == nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "body must set payment")
		return
	}

	caller := auth.PrincipalFromContext(r.Context())
	entry, err := s.ledger.PurchaseAccess(r.Context(), caller, chi.URLParam(r, "deviceID"), *body.Payment)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

// handleGetAccess returns the access state for a subscriber/device pair.
//
// A pair that never purchased reports a zero expiry and total, not an
// error, so callers can probe access without special-casing 404s.
//
//	GET /devices/{deviceID}/access?subscriber=alice
func (s *Server) handleGetAccess(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	subscriber := r.URL.Query().Get("subscriber")
	if subscriber == "" {
		writeError(w, http.StatusBadRequest, "missing_subscriber", "subscriber query parameter required")
		return
	}

	expiry, err := s.ledger.Expiry(r.Context(), subscriber, deviceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	totalPaid, err := s.ledger.TotalPaid(r.Context(), subscriber, deviceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	live, err := s.ledger.HasAccess(r.Context(), subscriber, deviceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":     deviceID,
		"subscriber_id": subscriber,
		"expiry":        expiry,
		"total_paid":    totalPaid,
		"has_access":    live,
	})
}

// handleListDeviceSubscribers lists every access entry for a device.
//
//	GET /devices/{deviceID}/subscribers
func (s *Server) handleListDeviceSubscribers(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledger.ListByDevice(r.Context(), chi.URLParam(r, "deviceID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

// handleListSubscriptions lists the caller's access entries.
//
//	GET /subscriptions
func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	caller := auth.PrincipalFromContext(r.Context())
	entries, err := s.ledger.ListBySubscriber(r.Context(), caller)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}
