// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package semantic implements the natural-language detector. It sends page
// text with the exemption taxonomy to an external classification service and
// parses the structured response into candidates. Every failure mode (network,
// timeout, unparseable output) degrades to an empty result; the pattern
// detector must still produce results when this detector cannot.
package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"opra-redact/internal/categories"
	"opra-redact/internal/detector"
	"opra-redact/internal/observability"
	"opra-redact/internal/resilience"
	"opra-redact/internal/security"
)

const (
	defaultEndpoint  = "https://api.anthropic.com/v1/messages"
	defaultModel     = "claude-3-5-sonnet-latest"
	defaultTimeout   = 60 * time.Second
	defaultMaxTokens = 4000
	apiVersion       = "2023-06-01"
)

// Detector is the classification-service client.
type Detector struct {
	endpoint   string
	model      string
	apiKey     *security.SecureString
	maxTokens  int
	taxonomy   *categories.Taxonomy
	httpClient *http.Client
	retry      resilience.RetryConfig
	observer   *observability.StandardObserver
}

// Option configures a Detector.
type Option func(*Detector)

// WithEndpoint overrides the classification service URL.
func WithEndpoint(endpoint string) Option {
	return func(d *Detector) { d.endpoint = endpoint }
}

// WithModel selects the classifier model.
func WithModel(model string) Option {
	return func(d *Detector) {
		if model != "" {
			d.model = model
		}
	}
}

// WithTimeout sets the hard request timeout. The call is treated as a failure
// (empty result) once the timeout elapses; it is never left pending.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Detector) {
		if timeout > 0 {
			d.httpClient.Timeout = timeout
		}
	}
}

// WithMaxTokens caps the response size requested from the service.
func WithMaxTokens(maxTokens int) Option {
	return func(d *Detector) {
		if maxTokens > 0 {
			d.maxTokens = maxTokens
		}
	}
}

// WithRetryConfig overrides the retry policy for service calls.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(d *Detector) { d.retry = cfg }
}

// WithObserver sets the observability component.
func WithObserver(observer *observability.StandardObserver) Option {
	return func(d *Detector) { d.observer = observer }
}

// NewDetector creates a classification-service client. The taxonomy is
// included in every instruction and used to map the service's free-text
// category labels back onto the closed enumeration.
func NewDetector(apiKey string, taxonomy *categories.Taxonomy, opts ...Option) *Detector {
	d := &Detector{
		endpoint:  defaultEndpoint,
		model:     defaultModel,
		apiKey:    security.NewSecureString(apiKey),
		maxTokens: defaultMaxTokens,
		taxonomy:  taxonomy,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		retry: resilience.APIRetryConfig(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enabled reports whether the detector has credentials to call the service.
func (d *Detector) Enabled() bool {
	return !d.apiKey.IsEmpty()
}

// messagesRequest is the classification service's request body.
type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the subset of the response body the detector reads.
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Detect classifies one page of text. On any failure it returns an empty
// slice together with the error for logging; callers must not abort the page
// analysis on it.
func (d *Detector) Detect(ctx context.Context, pageText string, docTypeHint string) ([]detector.Candidate, error) {
	var finishTiming func(bool, map[string]interface{})
	if d.observer != nil {
		finishTiming = d.observer.StartTiming("semantic_detector", "detect", "")
	} else {
		finishTiming = func(bool, map[string]interface{}) {}
	}

	if !d.Enabled() {
		finishTiming(false, map[string]interface{}{"error": "no api key"})
		return nil, fmt.Errorf("semantic detector disabled: no API key configured")
	}

	prompt := buildPrompt(d.taxonomy, pageText, docTypeHint)
	responseText, err := resilience.RetryWithResult(ctx, d.retry, func(ctx context.Context) (string, error) {
		return d.call(ctx, prompt)
	})
	if err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	candidates := parseCandidates(responseText, d.taxonomy)
	for i := range candidates {
		candidates[i].Span = detector.Span{} // positions are unverified until resolved
	}

	finishTiming(true, map[string]interface{}{
		"candidate_count": len(candidates),
		"content_length":  len(pageText),
	})
	return candidates, nil
}

// call performs one round-trip to the classification service and returns the
// text portion of its reply.
func (d *Detector) call(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     d.model,
		MaxTokens: d.maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode classification request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build classification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", d.apiKey.String())
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("classification request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read classification response: %w", err)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("malformed classification response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("classification service error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("classification service returned status %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", resilience.NewTransientError(err.Error(), err)
		}
		return "", resilience.NewPermanentError(err.Error(), err)
	}

	var text bytes.Buffer
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("classification response contained no text content")
	}
	return text.String(), nil
}
