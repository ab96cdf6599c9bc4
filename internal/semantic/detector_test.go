// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package semantic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opra-redact/internal/categories"
	"opra-redact/internal/resilience"
)

// noRetry keeps failure-path tests fast.
var noRetry = WithRetryConfig(resilience.RetryConfig{MaxRetries: 0})

// fakeService builds a classification-service stub that always answers with
// the given text content block.
func fakeService(t *testing.T, responseText string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NotEmpty(t, r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req["model"])

		resp := map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": responseText}},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestDetectParsesDirectJSONArray(t *testing.T) {
	server := fakeService(t, `[
		{"text": "123-45-6789", "category": "personal-identifying", "confidence": 0.98, "justification": "social security number"},
		{"text": "EMP-12345", "category": "personnel", "confidence": 0.9, "justification": "employee identifier"}
	]`)
	defer server.Close()

	d := NewDetector("test-key", categories.Default(), WithEndpoint(server.URL))
	candidates, err := d.Detect(context.Background(), "SSN: 123-45-6789 Employee ID: EMP-12345", "")
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, "123-45-6789", candidates[0].Text)
	assert.Equal(t, categories.Category("personal-identifying"), candidates[0].Category)
	assert.Equal(t, "semantic", candidates[0].DetectionMethod)
	assert.Equal(t, categories.Category("personnel"), candidates[1].Category)
}

func TestDetectExtractsFencedArrayFromProse(t *testing.T) {
	server := fakeService(t, "Here is the analysis you asked for:\n\n```json\n"+
		`[{"text": "SecurePass123", "category": "security-measures", "confidence": 0.95, "justification": "credential value"}]`+
		"\n```\n\nLet me know if you need anything else.")
	defer server.Close()

	d := NewDetector("test-key", categories.Default(), WithEndpoint(server.URL))
	candidates, err := d.Detect(context.Background(), "Password: SecurePass123", "")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "SecurePass123", candidates[0].Text)
	assert.Equal(t, categories.Category("security-measures"), candidates[0].Category)
}

func TestDetectDropsInvalidElementsIndividually(t *testing.T) {
	server := fakeService(t, `[
		{"text": "John A. Smith", "category": "personal-identifying", "confidence": 0.9, "justification": "full name"},
		{"text": "", "category": "personal-identifying", "confidence": 0.9, "justification": "empty text"},
		{"text": "ghost", "category": "privacy", "confidence": 1.5, "justification": "confidence out of range"},
		"not an object"
	]`)
	defer server.Close()

	d := NewDetector("test-key", categories.Default(), WithEndpoint(server.URL))
	candidates, err := d.Detect(context.Background(), "John A. Smith", "")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "John A. Smith", candidates[0].Text)
}

func TestDetectUnparseableResponseIsEmpty(t *testing.T) {
	server := fakeService(t, "I could not find any structured data in this document.")
	defer server.Close()

	d := NewDetector("test-key", categories.Default(), WithEndpoint(server.URL))
	candidates, err := d.Detect(context.Background(), "some text", "")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestDetectMapsUnknownCategoryToDefault(t *testing.T) {
	server := fakeService(t, `[{"text": "mystery value", "category": "something made up", "confidence": 0.8, "justification": "unsure"}]`)
	defer server.Close()

	taxonomy := categories.Default()
	d := NewDetector("test-key", taxonomy, WithEndpoint(server.URL))
	candidates, err := d.Detect(context.Background(), "mystery value", "")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, taxonomy.DefaultCategory(), candidates[0].Category)
}

func TestDetectServiceErrorReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"type": "rate_limit_error", "message": "slow down"}}`))
	}))
	defer server.Close()

	d := NewDetector("test-key", categories.Default(), WithEndpoint(server.URL), noRetry)
	candidates, err := d.Detect(context.Background(), "some text", "")
	assert.Error(t, err)
	assert.Empty(t, candidates)
}

func TestDetectRetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error": {"type": "overloaded_error", "message": "try again"}}`))
			return
		}
		resp := map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": `[{"text": "123-45-6789", "category": "personal-identifying", "confidence": 0.95, "justification": "ssn"}]`}},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	d := NewDetector("test-key", categories.Default(), WithEndpoint(server.URL),
		WithRetryConfig(resilience.RetryConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, Multiplier: 2.0}))
	candidates, err := d.Detect(context.Background(), "SSN: 123-45-6789", "")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestDetectTimeoutReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	d := NewDetector("test-key", categories.Default(),
		WithEndpoint(server.URL), WithTimeout(20*time.Millisecond), noRetry)
	candidates, err := d.Detect(context.Background(), "some text", "")
	assert.Error(t, err)
	assert.Empty(t, candidates)
}

func TestDetectWithoutKeyIsDisabled(t *testing.T) {
	d := NewDetector("", categories.Default())
	assert.False(t, d.Enabled())

	candidates, err := d.Detect(context.Background(), "some text", "")
	assert.Error(t, err)
	assert.Empty(t, candidates)
}
