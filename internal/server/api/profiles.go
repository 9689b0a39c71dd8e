package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/madhubani/internal/calibration"
	"github.com/ayusman/madhubani/internal/store"
)

// Activator installs a stored profile as the live calibration.
type Activator interface {
	ActivateProfile(id string) (*store.Profile, error)
}

// ProfileHandler handles HTTP requests for calibration profiles.
type ProfileHandler struct {
	store     *store.Store
	activator Activator
}

// NewProfileHandler creates a ProfileHandler. activator may be nil, in
// which case activation only updates the store.
func NewProfileHandler(s *store.Store, activator Activator) *ProfileHandler {
	return &ProfileHandler{store: s, activator: activator}
}

// ServeHTTP routes /api/profiles, /api/profiles/{id} and
// /api/profiles/{id}/activate.
func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/profiles")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			methodNotAllowed(w)
		}
		return
	}

	if id, ok := strings.CutSuffix(path, "/activate"); ok {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.activate(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, path)
	case http.MethodDelete:
		h.delete(w, r, path)
	default:
		methodNotAllowed(w)
	}
}

type createProfileRequest struct {
	Name   string             `json:"name"`
	Values calibration.Values `json:"values"`
	Active bool               `json:"active"`
}

type profileResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Values    calibration.Values `json:"values"`
	Active    bool               `json:"active"`
	CreatedAt string             `json:"created_at"`
	UpdatedAt string             `json:"updated_at"`
}

type listProfilesResponse struct {
	Profiles []profileResponse `json:"profiles"`
}

func toProfileResponse(p *store.Profile) profileResponse {
	return profileResponse{
		ID:        p.ID,
		Name:      p.Name,
		Values:    p.Values,
		Active:    p.Active,
		CreatedAt: p.CreatedAt.Format(timeFormat),
		UpdatedAt: p.UpdatedAt.Format(timeFormat),
	}
}

// list handles GET /api/profiles.
func (h *ProfileHandler) list(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.store.Profiles().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list profiles")
		return
	}

	response := listProfilesResponse{
		Profiles: make([]profileResponse, 0, len(profiles)),
	}
	for _, p := range profiles {
		response.Profiles = append(response.Profiles, toProfileResponse(p))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/profiles/{id}.
func (h *ProfileHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.store.Profiles().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get profile")
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// create handles POST /api/profiles. The profile is stored inactive unless
// the request asks for it to be activated.
func (h *ProfileHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if err := req.Values.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.store.Profiles().GetByName(req.Name); err == nil {
		writeError(w, http.StatusConflict, "Profile name already exists")
		return
	}

	p := &store.Profile{
		ID:     uuid.New().String(),
		Name:   req.Name,
		Values: req.Values,
	}
	if err := h.store.Profiles().Create(p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create profile")
		return
	}

	if req.Active {
		activated, err := h.setActive(p.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to activate profile")
			return
		}
		p = activated
	}

	writeJSON(w, http.StatusCreated, toProfileResponse(p))
}

// activate handles POST /api/profiles/{id}/activate.
func (h *ProfileHandler) activate(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.setActive(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to activate profile")
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

func (h *ProfileHandler) setActive(id string) (*store.Profile, error) {
	if h.activator != nil {
		return h.activator.ActivateProfile(id)
	}
	if err := h.store.Profiles().SetActive(id); err != nil {
		return nil, err
	}
	return h.store.Profiles().GetByID(id)
}

// delete handles DELETE /api/profiles/{id}. Deleting the active profile
// leaves the live calibration in place until the next restart.
func (h *ProfileHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Profiles().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete profile")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
