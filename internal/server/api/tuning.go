package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/ayusman/madhubani/internal/config"
	"github.com/ayusman/madhubani/internal/store"
)

const maxTuningBody = 1 << 20

// TuningHandler serves the live tuning and stores overrides. Stored
// overrides take effect on the next start.
type TuningHandler struct {
	store   *store.Store
	current func() config.Tuning
}

// NewTuningHandler creates a TuningHandler. current reports the tuning the
// engine is running with.
func NewTuningHandler(s *store.Store, current func() config.Tuning) *TuningHandler {
	return &TuningHandler{store: s, current: current}
}

type tuningSavedResponse struct {
	Saved           bool          `json:"saved"`
	RestartRequired bool          `json:"restart_required"`
	Tuning          config.Tuning `json:"tuning"`
}

func (h *TuningHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.current())
	case http.MethodPut:
		h.put(w, r)
	case http.MethodDelete:
		if err := h.store.Settings().Delete(store.SettingTuning); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to reset tuning")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// put handles PUT /api/tuning. The body is a partial tuning document. It
// is layered over the stored override, validated against the running
// tuning, and the combined override is stored.
func (h *TuningHandler) put(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTuningBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body")
		return
	}
	if len(body) > maxTuningBody {
		writeError(w, http.StatusRequestEntityTooLarge, "Tuning document too large")
		return
	}

	stored, err := h.store.Settings().Get(store.SettingTuning)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to load saved tuning")
		return
	}
	override, err := config.MergeOverrides([]byte(stored), body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t := h.current()
	if err := t.Merge(override); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := t.Validate(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, config.ErrInvalid) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	if err := h.store.Settings().Set(store.SettingTuning, string(override)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save tuning")
		return
	}

	writeJSON(w, http.StatusOK, tuningSavedResponse{Saved: true, RestartRequired: true, Tuning: t})
}
