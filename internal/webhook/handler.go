package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/sentinel"
)

// maxBodyBytes bounds webhook payloads. Provider callbacks are small JSON
// envelopes; anything larger is not one of ours.
const maxBodyBytes = 1 << 20

const SignatureHeader = "X-Webhook-Signature"

const (
	auditActionSignatureInvalid = "webhook_signature_invalid"
	auditActionStaleWebhook     = "webhook_stale_rejected"
)

// Verdict is the authenticated outcome delivered by a provider callback.
type Verdict struct {
	SessionID       string            `json:"sessionId"`
	Status          string            `json:"verdict"`
	Confidence      float64           `json:"confidence"`
	ExtractedFields map[string]string `json:"extractedFields"`
	Reason          string            `json:"reason"`
	Provider        string            `json:"-"`
}

// VerdictApplier advances verification state from an authenticated verdict.
type VerdictApplier interface {
	ApplyProviderVerdict(ctx context.Context, verdict Verdict) error
}

// SecretSource resolves the shared signing secret for a provider.
type SecretSource func(providerID string) string

// AuditPublisher records webhook security events.
type AuditPublisher interface {
	Record(ctx context.Context, userID string, action string, details map[string]string) error
}

type Handler struct {
	applier VerdictApplier
	secrets SecretSource
	audit   AuditPublisher
	logger  *slog.Logger
}

type HandlerOption func(*Handler)

func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = logger }
}

func WithAuditPublisher(audit AuditPublisher) HandlerOption {
	return func(h *Handler) { h.audit = audit }
}

func NewHandler(applier VerdictApplier, secrets SecretSource, opts ...HandlerOption) (*Handler, error) {
	if applier == nil {
		return nil, errors.New("verdict applier is required")
	}
	if secrets == nil {
		return nil, errors.New("secret source is required")
	}
	h := &Handler{applier: applier, secrets: secrets, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// ServeCallback handles POST /kyc/webhook/{provider}. The signature is
// checked against the raw body before any JSON decoding happens.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerID := chi.URLParam(r, "provider")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if len(body) > maxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	secret := h.secrets(providerID)
	provided := r.Header.Get(SignatureHeader)
	if secret == "" || !VerifySignature(body, provided, secret) {
		h.recordSecurityEvent(ctx, auditActionSignatureInvalid, map[string]string{
			"provider":      providerID,
			"has_signature": boolString(provided != ""),
		})
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var verdict Verdict
	if err := json.Unmarshal(body, &verdict); err != nil {
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}
	verdict.Provider = providerID
	if verdict.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	if err := h.applier.ApplyProviderVerdict(ctx, verdict); err != nil {
		h.writeApplyError(ctx, w, providerID, verdict, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

func (h *Handler) writeApplyError(ctx context.Context, w http.ResponseWriter, providerID string, verdict Verdict, err error) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		writeError(w, http.StatusNotFound, "unknown session")
	case errors.Is(err, sentinel.ErrExpired):
		h.recordSecurityEvent(ctx, auditActionStaleWebhook, map[string]string{
			"provider":   providerID,
			"session_id": verdict.SessionID,
		})
		writeError(w, http.StatusGone, "session expired")
	case dErrors.HasCode(err, dErrors.CodeInvalidInput):
		writeError(w, http.StatusBadRequest, dErrors.Message(err))
	default:
		h.logger.ErrorContext(ctx, "failed to apply provider verdict",
			"provider", providerID, "session_id", verdict.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) recordSecurityEvent(ctx context.Context, action string, details map[string]string) {
	if h.audit == nil {
		return
	}
	if err := h.audit.Record(ctx, "", action, details); err != nil {
		h.logger.ErrorContext(ctx, "failed to audit webhook event", "action", action, "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
