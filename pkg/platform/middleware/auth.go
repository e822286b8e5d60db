package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/requestcontext"
)

// Claims are the claims this service reads from the session layer's tokens.
// KYCApprover mirrors the platform's kyc-approval permission; the permission
// system itself lives outside this service.
type Claims struct {
	UserID      string `json:"sub"`
	KYCApprover bool   `json:"kyc_approver"`
	jwt.RegisteredClaims
}

// TokenValidator validates bearer tokens issued by the platform session layer.
type TokenValidator struct {
	signingKey []byte
}

func NewTokenValidator(signingKey string) *TokenValidator {
	return &TokenValidator{signingKey: []byte(signingKey)}
}

// Validate parses and verifies a bearer token.
func (v *TokenValidator) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}
	if !token.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return claims, nil
}

// RequireAuth validates the bearer token and injects the user ID into the
// request context. Unauthenticated requests are rejected before reaching any
// handler.
func RequireAuth(validator *TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(validator, logger, w, r)
			if !ok {
				return
			}

			userID, err := id.ParseUserID(claims.UserID)
			if err != nil {
				logger.WarnContext(r.Context(), "token carries invalid subject",
					"request_id", requestcontext.RequestID(r.Context()),
				)
				writeUnauthorized(w)
				return
			}

			ctx := requestcontext.WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireKYCApprover additionally demands the kyc-approval permission claim.
// Used by administrative override and compliance export endpoints.
func RequireKYCApprover(validator *TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(validator, logger, w, r)
			if !ok {
				return
			}
			if !claims.KYCApprover {
				logger.WarnContext(r.Context(), "kyc approver permission missing",
					"request_id", requestcontext.RequestID(r.Context()),
					"user_id", claims.UserID,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden"}`))
				return
			}

			ctx := r.Context()
			if userID, err := id.ParseUserID(claims.UserID); err == nil {
				ctx = requestcontext.WithUserID(ctx, userID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(validator *TokenValidator, logger *slog.Logger, w http.ResponseWriter, r *http.Request) (*Claims, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		writeUnauthorized(w)
		return nil, false
	}

	claims, err := validator.Validate(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		logger.WarnContext(r.Context(), "token validation failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err.Error(),
		)
		writeUnauthorized(w)
		return nil, false
	}
	return claims, true
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
