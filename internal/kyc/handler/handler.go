// Package handler exposes the verification service over HTTP.
package handler

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"kycgate/internal/kyc/models"
	"kycgate/internal/kyc/service"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/requestcontext"
)

type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("kyc service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}, nil
}

type submitPayload struct {
	Tier            string `json:"tier"`
	Country         string `json:"country"`
	DocumentType    string `json:"document_type"`
	DocumentPayload string `json:"document_payload"`
	SelfiePayload   string `json:"selfie_payload"`
	OTPCode         string `json:"otp_code"`
}

// Submit handles POST /kyc/submit for the authenticated user.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	var payload submitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}

	tier, err := models.ParseTier(payload.Tier)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	req := service.SubmitRequest{
		UserID:          userID,
		Tier:            tier,
		Country:         payload.Country,
		DocumentPayload: payload.DocumentPayload,
		SelfiePayload:   payload.SelfiePayload,
		OTPCode:         payload.OTPCode,
	}
	if payload.DocumentType != "" {
		docType, err := models.ParseDocumentType(payload.DocumentType)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		req.DocumentType = docType
	}

	result, err := h.svc.Submit(ctx, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Status == models.StatusPending {
		status = http.StatusAccepted
	}
	h.writeJSON(w, status, result)
}

// Status handles GET /kyc/status for the authenticated user.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Status(r.Context(), requestcontext.UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

type overridePayload struct {
	UserID string `json:"user_id"`
	Tier   string `json:"tier"`
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// Override handles POST /admin/kyc/override. The acting approver, taken from
// the token, is recorded as the reviewer.
func (h *Handler) Override(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reviewer := id.ReviewerID(requestcontext.UserID(ctx))

	var payload overridePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}

	userID, err := id.ParseUserID(payload.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tier, err := models.ParseTier(payload.Tier)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status, err := models.ParseStatus(payload.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.svc.AdminOverride(ctx, reviewer, userID, tier, status, payload.Notes); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

// Statistics handles GET /admin/kyc/statistics.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.Statistics(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

// Reviews handles GET /admin/kyc/reviews/{userID}.
func (h *Handler) Reviews(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	reviews, err := h.svc.ReviewHistory(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}

// Export handles GET /admin/kyc/export?status=verified&format=csv. JSON is
// the default format.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	status, err := models.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	records, err := h.svc.ExportByStatus(r.Context(), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		h.writeCSV(w, r, records)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"records": records, "count": len(records)})
}

func (h *Handler) writeCSV(w http.ResponseWriter, r *http.Request, records []models.VerificationRecord) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="kyc-records.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"user_id", "tier", "status", "country", "verified_at", "updated_at"})
	for _, record := range records {
		verifiedAt := ""
		if record.VerifiedAt != nil {
			verifiedAt = record.VerifiedAt.Format(time.RFC3339)
		}
		_ = cw.Write([]string{
			record.UserID.String(),
			record.Tier.String(),
			record.Status.String(),
			record.Country,
			verifiedAt,
			record.UpdatedAt.Format(time.RFC3339),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to stream csv export", "error", err)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := dErrors.ToHTTPStatus(err)
	body := map[string]any{"error": dErrors.Message(err)}

	var limited *service.LimitExceeded
	if errors.As(err, &limited) {
		body["reason"] = limited.Decision.Reason
		if !limited.Decision.ResetAt.IsZero() {
			retryAfter := int(time.Until(limited.Decision.ResetAt).Seconds())
			if retryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			}
			body["reset_at"] = limited.Decision.ResetAt.Format(time.RFC3339)
		}
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path, "status", status, "error", err)
	}
	h.writeJSON(w, status, body)
}
