package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"errorledger/src/capture"
	"errorledger/src/model"
	"errorledger/src/repository"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"
)

type topErrorsLister interface {
	TopErrors(ctx context.Context, limit int) ([]model.ErrorRecord, error)
}

type errorGetter interface {
	GetError(ctx context.Context, signature string) (*model.ErrorDetail, error)
}

type reportCapturer interface {
	Capture(ctx context.Context, report capture.Report) capture.Result
}

// CaptureResponse is returned by CaptureHandler.
type CaptureResponse struct {
	Outcome   string `json:"outcome"`
	Signature string `json:"signature,omitempty"`
	CaptureID string `json:"capture_id,omitempty"`
	Persisted bool   `json:"persisted"`
}

// TopErrorsHandler lists the most frequent errors. Supports ?limit=N (default 50).
func TopErrorsHandler(repo topErrorsLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			http.Error(w, "Error ledger not initialized", http.StatusServiceUnavailable)
			return
		}

		limit := repository.DefaultTopLimit
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		records, err := repo.TopErrors(r.Context(), limit)
		if err != nil {
			logger.WithError(err).Error("failed to list top errors")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []model.ErrorRecord{}
		}

		writeJSON(w, http.StatusOK, records)
	}
}

// GetErrorHandler returns one error with its most recent context snapshots.
func GetErrorHandler(repo errorGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			http.Error(w, "Error ledger not initialized", http.StatusServiceUnavailable)
			return
		}

		signature := chi.URLParam(r, "signature")
		if signature == "" {
			http.Error(w, "missing signature", http.StatusBadRequest)
			return
		}

		detail, err := repo.GetError(r.Context(), signature)
		if err != nil {
			logger.WithError(err).WithField("signature", signature).Error("failed to fetch error")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if detail == nil {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, detail)
	}
}

// CaptureHandler accepts an error report from a remote host.
func CaptureHandler(pipeline reportCapturer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var report capture.Report
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&report); err != nil {
			logger.WithError(err).Warn("invalid capture payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		result := pipeline.Capture(r.Context(), report)
		response := CaptureResponse{
			Outcome:   result.Outcome.String(),
			Signature: result.Signature,
			CaptureID: result.CaptureID,
			Persisted: result.Persisted,
		}

		status := http.StatusAccepted
		if result.Outcome == capture.Discarded {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, response)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}
