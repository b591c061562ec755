package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voicedesk/internal/config"
)

const maxErrorBody = 512

// VapiProvider places calls through the Vapi REST API.
type VapiProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewVapiProvider(cfg config.VapiConfig) (*VapiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("telephony: vapi api key is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, errors.New("telephony: vapi base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VapiProvider{
		apiKey:  cfg.APIKey,
		baseURL: base,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (p *VapiProvider) Name() string { return "vapi" }

type vapiBatchRequest struct {
	AssistantID        string         `json:"assistantId"`
	PhoneNumberID      string         `json:"phoneNumberId"`
	Customers          []Customer     `json:"customers"`
	AssistantOverrides map[string]any `json:"assistantOverrides,omitempty"`
}

type vapiCallObject struct {
	ID       string        `json:"id"`
	Status   string        `json:"status"`
	Customer *vapiCustomer `json:"customer"`
}

func (p *VapiProvider) PlaceBatchCalls(ctx context.Context, req BatchCallRequest) ([]PlacedCall, error) {
	if req.AssistantID == "" || req.PhoneNumberID == "" {
		return nil, errors.New("telephony: assistant and phone number ids are required")
	}
	if len(req.Customers) == 0 {
		return nil, errors.New("telephony: at least one customer is required")
	}

	body, err := json.Marshal(vapiBatchRequest{
		AssistantID:        req.AssistantID,
		PhoneNumberID:      req.PhoneNumberID,
		Customers:          req.Customers,
		AssistantOverrides: req.AssistantOverrides,
	})
	if err != nil {
		return nil, err
	}

	raw, err := p.do(ctx, http.MethodPost, "/call", body)
	if err != nil {
		return nil, err
	}
	calls, err := decodeBatchResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("telephony: vapi batch response: %w", err)
	}

	out := make([]PlacedCall, 0, len(calls))
	for _, c := range calls {
		pc := PlacedCall{ProviderCallID: c.ID, Status: c.Status}
		if c.Customer != nil {
			pc.CustomerNumber = c.Customer.Number
		}
		out = append(out, pc)
	}
	return out, nil
}

func (p *VapiProvider) EndCall(ctx context.Context, providerCallID string) error {
	if providerCallID == "" {
		return errors.New("telephony: provider call id is required")
	}
	_, err := p.do(ctx, http.MethodDelete, "/call/"+url.PathEscape(providerCallID), nil)
	return err
}

func (p *VapiProvider) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telephony: vapi %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("telephony: vapi read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := raw
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	return raw, nil
}

// ProviderError is a non-2xx answer from the provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("telephony: vapi http status %d: %s", e.StatusCode, e.Body)
}

// decodeBatchResponse accepts a bare array, {"calls": [...]}, {"results": [...]}
// or a single call object.
func decodeBatchResponse(raw []byte) ([]vapiCallObject, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("empty body")
	}
	if raw[0] == '[' {
		var list []vapiCallObject
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var wrapped struct {
		Calls    []vapiCallObject `json:"calls"`
		Results  []vapiCallObject `json:"results"`
		ID       string           `json:"id"`
		Status   string           `json:"status"`
		Customer *vapiCustomer    `json:"customer"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	switch {
	case wrapped.Calls != nil:
		return wrapped.Calls, nil
	case wrapped.Results != nil:
		return wrapped.Results, nil
	case wrapped.ID != "":
		return []vapiCallObject{{ID: wrapped.ID, Status: wrapped.Status, Customer: wrapped.Customer}}, nil
	default:
		return nil, errors.New("no calls in response")
	}
}
