package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sensorgrid/sensorgrid-core/internal/auth"
	"github.com/sensorgrid/sensorgrid-core/internal/registry"
)

// handleRegisterDevice registers a device owned by the caller.
//
//	POST /devices
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var in registry.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "malformed request body")
		return
	}

	caller := auth.PrincipalFromContext(r.Context())
	device, err := s.registry.Register(r.Context(), caller, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, device)
}

// handleListDevices lists devices in registration order.
//
//	GET /devices
//	GET /devices?owner=alice
//	GET /devices?ids_only=true
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	idsOnly := r.URL.Query().Get("ids_only") == "true"

	if idsOnly {
		var ids []string
		var err error
		if owner != "" {
			ids, err = s.registry.ListIDsByOwner(r.Context(), owner)
		} else {
			ids, err = s.registry.ListIDs(r.Context())
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"device_ids": ids, "count": len(ids)})
		return
	}

	var devices []*registry.Device
	var err error
	if owner != "" {
		devices, err = s.registry.ListByOwner(r.Context(), owner)
	} else {
		devices, err = s.registry.List(r.Context())
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device record.
//
//	GET /devices/{deviceID}
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	device, err := s.registry.Get(r.Context(), chi.URLParam(r, "deviceID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

// handleDeviceExists reports whether the identifier is registered.
//
//	GET /devices/{deviceID}/exists
func (s *Server) handleDeviceExists(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	exists, err := s.registry.Exists(r.Context(), deviceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"device_id": deviceID, "exists": exists})
}

// handleUpdateDevice changes listing terms. Owner only.
//
//	PATCH /devices/{deviceID}
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var in registry.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "malformed request body")
		return
	}

	caller := auth.PrincipalFromContext(r.Context())
	device, err := s.registry.UpdateTerms(r.Context(), caller, chi.URLParam(r, "deviceID"), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, device)
}

// handleSetActive toggles purchase availability. Owner only.
//
//	PUT /devices/{deviceID}/active
func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsActive *bool `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IsActive == nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "body must set is_active")
		return
	}

	caller := auth.PrincipalFromContext(r.Context())
	device, err := s.registry.SetActive(r.Context(), caller, chi.URLParam(r, "deviceID"), *body.IsActive)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, device)
}
