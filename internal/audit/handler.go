package audit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/requestcontext"
)

// Handler exposes the compliance ledger's read side to approvers.
type Handler struct {
	svc       *Service
	publisher *Publisher
	logger    *slog.Logger
}

func NewHandler(svc *Service, publisher *Publisher, logger *slog.Logger) (*Handler, error) {
	if svc == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "audit service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, publisher: publisher, logger: logger}, nil
}

// Report handles GET /admin/kyc/report?start=...&end=... with RFC 3339
// bounds. Generating a report is itself an audited operation.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	start, err := parseTimeParam(r, "start")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	end, err := parseTimeParam(r, "end")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	report, err := h.svc.Report(ctx, start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if h.publisher != nil {
		details := map[string]string{
			"start":         start.Format(time.RFC3339),
			"end":           end.Format(time.RFC3339),
			"total_actions": strconv.Itoa(report.TotalActions),
		}
		if err := h.publisher.Record(ctx, requestcontext.UserID(ctx), ActionReportGenerated, details); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	h.writeJSON(w, http.StatusOK, report)
}

// Trail handles GET /admin/kyc/trail/{userID}?cursor=...&limit=....
func (h *Handler) Trail(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	limit := MaxTrailPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			h.writeError(w, r, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer"))
			return
		}
	}

	entries, next, err := h.svc.Trail(r.Context(), userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response := map[string]any{"entries": entries}
	if next != "" {
		response["next_cursor"] = next
	}
	h.writeJSON(w, http.StatusOK, response)
}

func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", name)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be RFC 3339", name)
	}
	return t, nil
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
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path, "status", status, "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": dErrors.Message(err)})
}
