// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opra-redact/internal/categories"
	"opra-redact/internal/config"
	"opra-redact/internal/detector"
	"opra-redact/internal/patterns"
	"opra-redact/internal/pipeline"
	"opra-redact/internal/redactor"
	"opra-redact/internal/resolve"
	"opra-redact/internal/store"
)

func testServer(t *testing.T) (*Server, *store.MemoryStore) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.UploadDir = t.TempDir()
	cfg.Server.ProcessedDir = t.TempDir()

	repo := store.NewMemoryStore("")
	p := pipeline.New(patterns.NewDetector(patterns.DefaultRules()), nil, resolve.New(), nil, pipeline.Config{})
	return NewServer(cfg, p, repo, redactor.New(nil), nil), repo
}

func seedAnalysis(t *testing.T, repo *store.MemoryStore, id string) *store.DocumentAnalysis {
	t.Helper()
	analysis := &store.DocumentAnalysis{
		DocumentID: id,
		Filename:   "report.pdf",
		SourcePath: "/tmp/" + id + ".pdf",
		TotalPages: 2,
		Status:     store.StatusAnalyzed,
		AnalyzedAt: time.Now(),
		Redactions: []detector.Redaction{{
			Candidate: detector.Candidate{
				Text:       "123-45-6789",
				Category:   categories.Category("personal-identifying"),
				Confidence: 0.98,
				Approved:   true,
			},
			Box: detector.BoundingBox{X1: 100, Y1: 80, X2: 170, Y2: 92},
		}},
	}
	require.NoError(t, repo.Put(analysis))
	return analysis
}

func request(s *Server, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := testServer(t)
	w := request(s, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestUploadRejectsNonPDF(t *testing.T) {
	s, _ := testServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("plain text"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := request(s, http.MethodPost, "/upload", buf.Bytes(), mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "PDF")
}

func TestUploadRequiresFileField(t *testing.T) {
	s, _ := testServer(t)
	w := request(s, http.MethodPost, "/upload", nil, "multipart/form-data")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetDocumentNotFound(t *testing.T) {
	s, _ := testServer(t)
	w := request(s, http.MethodGet, "/document/no-such-id", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetDocumentReturnsRecord(t *testing.T) {
	s, repo := testServer(t)
	seedAnalysis(t, repo, "doc-1")

	w := request(s, http.MethodGet, "/document/doc-1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var analysis store.DocumentAnalysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analysis))
	assert.Equal(t, "doc-1", analysis.DocumentID)
	require.Len(t, analysis.Redactions, 1)
	assert.Equal(t, "123-45-6789", analysis.Redactions[0].Text)
}

func TestUpdateRedactionsMarksReviewed(t *testing.T) {
	s, repo := testServer(t)
	seeded := seedAnalysis(t, repo, "doc-1")

	// The reviewer rejects the only candidate.
	seeded.Redactions[0].Approved = false
	body, err := json.Marshal(map[string]interface{}{"redactions": seeded.Redactions})
	require.NoError(t, err)

	w := request(s, http.MethodPut, "/document/doc-1/redactions", body, "application/json")
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := repo.Get("doc-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusReviewed, stored.Status)
	assert.False(t, stored.Redactions[0].Approved)
}

func TestUpdateRedactionsAfterRedactionConflicts(t *testing.T) {
	s, repo := testServer(t)
	seeded := seedAnalysis(t, repo, "doc-1")
	seeded.Status = store.StatusRedacted
	seeded.RedactedPath = "/tmp/doc-1_redacted.pdf"
	require.NoError(t, repo.Put(seeded))

	// Once boxes are burned in, the redaction list is immutable.
	w := request(s, http.MethodPut, "/document/doc-1/redactions", []byte(`{"redactions": []}`), "application/json")
	assert.Equal(t, http.StatusConflict, w.Code)

	stored, err := repo.Get("doc-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusRedacted, stored.Status)
	require.Len(t, stored.Redactions, 1)
}

func TestUpdateRedactionsRejectsInvalidCandidate(t *testing.T) {
	s, repo := testServer(t)
	seedAnalysis(t, repo, "doc-1")

	body := []byte(`{"redactions": [{"text": "", "confidence": 0.5}]}`)
	w := request(s, http.MethodPut, "/document/doc-1/redactions", body, "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadBeforeRedactionConflicts(t *testing.T) {
	s, repo := testServer(t)
	seedAnalysis(t, repo, "doc-1")

	w := request(s, http.MethodGet, "/download/doc-1", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteDocumentInvalidatesID(t *testing.T) {
	s, repo := testServer(t)
	seedAnalysis(t, repo, "doc-1")

	w := request(s, http.MethodDelete, "/document/doc-1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = request(s, http.MethodGet, "/document/doc-1", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPageTextRejectsBadIndex(t *testing.T) {
	s, repo := testServer(t)
	seedAnalysis(t, repo, "doc-1")

	w := request(s, http.MethodGet, "/document/doc-1/text/9", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = request(s, http.MethodGet, "/document/doc-1/text/notanumber", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflightHandled(t *testing.T) {
	s, _ := testServer(t)
	w := request(s, http.MethodOptions, "/document/doc-1", nil, "")
	assert.Equal(t, 204, w.Code)
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
