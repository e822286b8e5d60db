// Package hyperverge integrates the HyperVerge verification API: synchronous
// OTP verification, document OCR, and biometric face match.
package hyperverge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kycgate/internal/provider"
)

const ProviderID = "hyperverge"

// Adapter implements provider.Provider against the HyperVerge HTTP API.
type Adapter struct {
	baseURL    string
	appID      string
	appKey     string
	httpClient *http.Client
	tracer     trace.Tracer
}

// New creates a HyperVerge adapter. A nil httpClient gets a default with the
// given timeout.
func New(baseURL, appID, appKey string, timeout time.Duration, httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Adapter{
		baseURL:    baseURL,
		appID:      appID,
		appKey:     appKey,
		httpClient: httpClient,
		tracer:     otel.Tracer("kycgate/provider/hyperverge"),
	}
}

func (a *Adapter) ID() string { return ProviderID }

func (a *Adapter) Capabilities() []provider.Capability {
	return []provider.Capability{
		provider.CapabilityOTPVerify,
		provider.CapabilityDocumentOCR,
		provider.CapabilityBiometricMatch,
	}
}

// apiResponse is the HyperVerge response envelope.
type apiResponse struct {
	Status string `json:"status"`
	Result struct {
		Confidence float64           `json:"confidence"`
		Details    map[string]string `json:"details"`
		RequestID  string            `json:"requestId"`
	} `json:"result"`
	Error string `json:"error"`
}

func (a *Adapter) Verify(ctx context.Context, req provider.Request) (*provider.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, provider.InvalidInput(ProviderID, err)
	}

	var endpoint string
	var payload map[string]string
	switch req.Capability {
	case provider.CapabilityOTPVerify:
		endpoint = "/otp/verify"
		payload = map[string]string{"identifier": req.UserRef, "otp": req.OTPCode}
	case provider.CapabilityDocumentOCR:
		endpoint = "/document/ocr"
		payload = map[string]string{"image": req.DocumentPayload, "country": req.Country}
	case provider.CapabilityBiometricMatch:
		endpoint = "/face/match"
		payload = map[string]string{"documentImage": req.DocumentPayload, "selfieImage": req.SelfiePayload}
	default:
		return nil, provider.NewError(provider.ErrorRejected, ProviderID,
			fmt.Sprintf("capability %s not supported", req.Capability), nil)
	}

	ctx, span := a.tracer.Start(ctx, "hyperverge.verify",
		trace.WithAttributes(
			attribute.String("provider.id", ProviderID),
			attribute.String("provider.capability", string(req.Capability)),
		))
	defer span.End()

	resp, err := a.post(ctx, endpoint, payload)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if resp.Status != "success" {
		reason := resp.Error
		if reason == "" {
			reason = "verification rejected by provider"
		}
		return nil, provider.Rejected(ProviderID, reason)
	}

	return &provider.Result{
		Confidence:      resp.Result.Confidence,
		ExtractedFields: resp.Result.Details,
		RawStatus:       resp.Status,
		Reference:       resp.Result.RequestID,
		CheckedAt:       time.Now(),
	}, nil
}

func (a *Adapter) post(ctx context.Context, endpoint string, payload map[string]string) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, provider.NewError(provider.ErrorBadData, ProviderID, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, provider.NewError(provider.ErrorBadData, ProviderID, "build request", err)
	}
	req.Header.Set("appId", a.appID)
	req.Header.Set("appKey", a.appKey)
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, provider.Unavailable(ProviderID, err)
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
		return nil, provider.NewError(provider.ErrorAuthentication, ProviderID,
			fmt.Sprintf("credentials rejected (%d)", httpResp.StatusCode), nil)
	case httpResp.StatusCode >= 500:
		return nil, provider.Unavailable(ProviderID,
			fmt.Errorf("upstream status %d", httpResp.StatusCode))
	}

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, provider.NewError(provider.ErrorBadData, ProviderID, "decode response", err)
	}
	return &resp, nil
}

func (a *Adapter) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	req.Header.Set("appId", a.appID)
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return provider.Unavailable(ProviderID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return provider.Unavailable(ProviderID, fmt.Errorf("health status %d", resp.StatusCode))
	}
	return nil
}
