// Package voice integrates the conversational-AI telephony vendor: placing
// outbound calls and verifying the webhooks the vendor sends back.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"outreach_backend/internal/outreach/service"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

// Client places calls through the vendor's REST API. A nil Client means voice
// is not configured; callers treat it as a disabled dialer.
type Client struct {
	baseURL    string
	apiKey     string
	agentID    string
	fromNumber string
	http       *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

var _ service.Dialer = (*Client)(nil)

type callRequest struct {
	AgentID          string            `json:"agentId"`
	To               string            `json:"to"`
	From             string            `json:"from,omitempty"`
	DynamicVariables map[string]string `json:"dynamicVariables,omitempty"`
}

type callResponse struct {
	CallID string `json:"callId"`
	Status string `json:"status"`
}

func NewClient(cfg config.VoiceConfig, log *logger.Logger) *Client {
	if !cfg.IsVoiceEnabled() {
		return nil
	}

	timeout := cfg.GetVoiceCallTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	perMinute := cfg.GetVoiceCallsPerMinute()
	if perMinute < 1 {
		perMinute = 30
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.GetVoiceAPIBaseURL(), "/"),
		apiKey:     cfg.GetVoiceAPIKey(),
		agentID:    cfg.GetVoiceAgentID(),
		fromNumber: cfg.GetVoiceFromNumber(),
		http:       &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		log:        log,
	}
}

// PlaceCall asks the vendor to dial the lead. The returned provider call ID
// is the correlation key for every webhook about this call.
func (c *Client) PlaceCall(ctx context.Context, req service.CallRequest) (service.CallResult, error) {
	if c == nil {
		return service.CallResult{}, apperr.Unavailable("voice client not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return service.CallResult{}, fmt.Errorf("voice rate limit: %w", err)
	}

	body, err := json.Marshal(callRequest{
		AgentID:          c.agentID,
		To:               req.To,
		From:             c.fromNumber,
		DynamicVariables: req.DynamicVariables,
	})
	if err != nil {
		return service.CallResult{}, fmt.Errorf("marshal call request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/calls", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return service.CallResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return service.CallResult{}, apperr.Wrap(apperr.KindUnavailable, "voice vendor unreachable", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		detail := fmt.Sprintf("voice vendor returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return service.CallResult{}, apperr.Unavailable(detail)
		}
		return service.CallResult{}, apperr.BadRequest(detail)
	}

	var parsed callResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return service.CallResult{}, fmt.Errorf("decode call response: %w", err)
	}
	if parsed.CallID == "" {
		return service.CallResult{}, apperr.Internal("voice vendor accepted call without a call id")
	}

	c.log.Info("call placed with vendor", "provider_call_id", parsed.CallID, "status", parsed.Status)
	return service.CallResult{ProviderCallID: parsed.CallID, Status: parsed.Status}, nil
}
