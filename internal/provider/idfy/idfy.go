// Package idfy integrates the IDfy verification API, used for video KYC
// session initiation and advanced document checks.
package idfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kycgate/internal/provider"
)

const ProviderID = "idfy"

type Adapter struct {
	baseURL    string
	accountID  string
	apiKey     string
	httpClient *http.Client
	tracer     trace.Tracer
}

func New(baseURL, accountID, apiKey string, timeout time.Duration, httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Adapter{
		baseURL:    baseURL,
		accountID:  accountID,
		apiKey:     apiKey,
		httpClient: httpClient,
		tracer:     otel.Tracer("kycgate/provider/idfy"),
	}
}

func (a *Adapter) ID() string { return ProviderID }

func (a *Adapter) Capabilities() []provider.Capability {
	return []provider.Capability{
		provider.CapabilityVideoKYCInitiate,
		provider.CapabilityDocumentOCR,
	}
}

// taskRequest is the IDfy async task envelope. Each submission carries a
// caller-generated task id that comes back on the webhook.
type taskRequest struct {
	TaskID  string         `json:"task_id"`
	GroupID string         `json:"group_id"`
	Data    map[string]any `json:"data"`
}

type taskResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Result    struct {
		Confidence float64           `json:"confidence"`
		Extracted  map[string]string `json:"extracted_data"`
	} `json:"result"`
	Message string `json:"message"`
}

func (a *Adapter) Verify(ctx context.Context, req provider.Request) (*provider.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, provider.InvalidInput(ProviderID, err)
	}

	var endpoint string
	var data map[string]any
	switch req.Capability {
	case provider.CapabilityVideoKYCInitiate:
		endpoint = "/tasks/sync/video_kyc"
		data = map[string]any{"reference_id": req.UserRef}
	case provider.CapabilityDocumentOCR:
		endpoint = "/tasks/sync/extract/document"
		data = map[string]any{"document1": req.DocumentPayload, "country": req.Country}
	default:
		return nil, provider.NewError(provider.ErrorRejected, ProviderID,
			fmt.Sprintf("capability %s not supported", req.Capability), nil)
	}

	ctx, span := a.tracer.Start(ctx, "idfy.verify",
		trace.WithAttributes(
			attribute.String("provider.id", ProviderID),
			attribute.String("provider.capability", string(req.Capability)),
		))
	defer span.End()

	task := taskRequest{TaskID: uuid.NewString(), GroupID: req.UserRef, Data: data}
	resp, err := a.post(ctx, endpoint, task)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// IDfy reports "completed" for synchronous success and "in_progress" for
	// tasks that will resolve over a webhook. Both are successful submissions.
	switch resp.Status {
	case "completed", "in_progress":
	case "failed":
		reason := resp.Message
		if reason == "" {
			reason = "task failed"
		}
		return nil, provider.Rejected(ProviderID, reason)
	default:
		return nil, provider.Unavailable(ProviderID,
			fmt.Errorf("unexpected task status %q", resp.Status))
	}

	return &provider.Result{
		Confidence:      resp.Result.Confidence,
		ExtractedFields: resp.Result.Extracted,
		RawStatus:       resp.Status,
		Reference:       resp.RequestID,
		CheckedAt:       time.Now(),
	}, nil
}

func (a *Adapter) post(ctx context.Context, endpoint string, task taskRequest) (*taskResponse, error) {
	body, err := json.Marshal(task)
	if err != nil {
		return nil, provider.NewError(provider.ErrorBadData, ProviderID, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, provider.NewError(provider.ErrorBadData, ProviderID, "build request", err)
	}
	req.Header.Set("account-id", a.accountID)
	req.Header.Set("api-key", a.apiKey)
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
	case httpResp.StatusCode == http.StatusUnprocessableEntity:
		return nil, provider.Rejected(ProviderID, "submission rejected by provider")
	}

	var resp taskResponse
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
	req.Header.Set("account-id", a.accountID)
	req.Header.Set("api-key", a.apiKey)
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
