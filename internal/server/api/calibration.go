package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/madhubani/internal/calibration"
)

// Calibrator runs calibration phases.
type Calibrator interface {
	BeginCalibration() calibration.Status
	AbortCalibration() bool
	FinalizeCalibration() (*calibration.Profile, error)
	CalibrationStatus() calibration.Status
}

// CalibrationHandler exposes the calibration phase over HTTP:
//
//	GET  /api/calibration           status
//	POST /api/calibration/start     begin a phase
//	POST /api/calibration/abort     abandon the phase
//	POST /api/calibration/finalize  freeze the collected samples
type CalibrationHandler struct {
	calib Calibrator
}

// NewCalibrationHandler creates a CalibrationHandler.
func NewCalibrationHandler(c Calibrator) *CalibrationHandler {
	return &CalibrationHandler{calib: c}
}

type abortResponse struct {
	Aborted bool               `json:"aborted"`
	Status  calibration.Status `json:"status"`
}

type finalizeResponse struct {
	Values    calibration.Values      `json:"values"`
	Spread    calibration.Measurement `json:"spread"`
	CreatedAt string                  `json:"created_at"`
	Status    calibration.Status      `json:"status"`
}

func (h *CalibrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/calibration"), "/")

	if action == "" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		writeJSON(w, http.StatusOK, h.calib.CalibrationStatus())
		return
	}

	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	switch action {
	case "start":
		writeJSON(w, http.StatusOK, h.calib.BeginCalibration())

	case "abort":
		aborted := h.calib.AbortCalibration()
		writeJSON(w, http.StatusOK, abortResponse{Aborted: aborted, Status: h.calib.CalibrationStatus()})

	case "finalize":
		p, err := h.calib.FinalizeCalibration()
		switch {
		case errors.Is(err, calibration.ErrNotCalibrating):
			writeError(w, http.StatusConflict, err.Error())
			return
		case errors.Is(err, calibration.ErrInsufficientSamples):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, "Failed to finalize calibration")
			return
		}
		writeJSON(w, http.StatusOK, finalizeResponse{
			Values:    p.Values(),
			Spread:    p.Spread(),
			CreatedAt: p.CreatedAt().Format(timeFormat),
			Status:    h.calib.CalibrationStatus(),
		})

	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}
