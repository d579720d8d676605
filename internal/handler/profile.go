package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/schemer/internal/config"
	"github.com/faucetdb/schemer/internal/model"
)

// ProfileHandler manages stored connection profiles.
type ProfileHandler struct {
	store    *config.Store
	sessions Sessions
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(store *config.Store, sessions Sessions) *ProfileHandler {
	return &ProfileHandler{store: store, sessions: sessions}
}

// ListProfiles returns all stored profiles with passwords redacted.
// GET /api/v1/system/profile
func (h *ProfileHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.store.ListProfiles(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list profiles: "+err.Error())
		return
	}
	for i := range profiles {
		profiles[i] = profiles[i].Redacted()
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: profiles,
		Meta:     &model.ResponseMeta{Count: len(profiles)},
	})
}

// CreateProfile stores a new profile.
// POST /api/v1/system/profile
func (h *ProfileHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var p model.ConnectionProfile
	if err := readJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if p.Name == "" {
		writeError(w, http.StatusBadRequest, "Profile name is required")
		return
	}
	if p.Server == "" {
		writeError(w, http.StatusBadRequest, "Server is required")
		return
	}

	if _, err := config.ConnectorConfig(p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.CreateProfile(r.Context(), &p); err != nil {
		if errors.Is(err, config.ErrProfileExists) {
			writeError(w, http.StatusConflict, "Profile already exists: "+p.Name)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create profile: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, p.Redacted())
}

// GetProfile returns a single profile by name.
// GET /api/v1/system/profile/{name}
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, err := h.store.GetProfileByName(r.Context(), name)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found: "+name)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get profile: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p.Redacted())
}

// DeleteProfile removes a profile.
// DELETE /api/v1/system/profile/{name}
func (h *ProfileHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.store.DeleteProfile(r.Context(), name); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found: "+name)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete profile: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Profile '%s' deleted", name),
	})
}

// TestProfile checks that the profile's server is reachable by listing its
// databases.
// GET /api/v1/system/profile/{name}/test
func (h *ProfileHandler) TestProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s, err := h.sessions.Session(r.Context(), name, "")
	if err != nil {
		writeOpError(w, err, "Failed to open profile")
		return
	}
	dbs, err := s.ListDatabases(r.Context())
	if err != nil {
		writeOpError(w, err, "Connection failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   "Connection successful",
		"databases": len(dbs),
	})
}
