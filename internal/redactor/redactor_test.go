// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opra-redact/internal/categories"
	"opra-redact/internal/detector"
)

// writeMinimalPDF writes a valid single-page PDF with a 612x792 media box and
// an empty content stream, tracking byte offsets for the cross-reference table.
func writeMinimalPDF(t *testing.T, path string) {
	t.Helper()

	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	obj("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	obj("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> /Contents 4 0 R >>\nendobj\n")
	obj("4 0 obj\n<< /Length 0 >>\nstream\n\nendstream\nendobj\n")

	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 5\n0000000000 65535 f \n")
	for _, offset := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offset)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 5 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
}

func TestApplyMissingSourceFails(t *testing.T) {
	r := New(nil)
	_, err := r.Apply(filepath.Join(t.TempDir(), "absent.pdf"), filepath.Join(t.TempDir(), "out.pdf"), nil, nil)
	assert.Error(t, err)
}

func TestApplyStampsPDFRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "report.pdf")
	writeMinimalPDF(t, sourcePath)
	require.NoError(t, api.ValidateFile(sourcePath, model.NewDefaultConfiguration()))

	redactions := []detector.Redaction{
		{
			Candidate: detector.Candidate{
				Text:       "123-45-6789",
				Category:   categories.Category("personal-identifying"),
				Confidence: 0.98,
				Approved:   true,
			},
			Box: detector.BoundingBox{X1: 100, Y1: 80, X2: 170, Y2: 92, ResolutionMethod: "exact_search", PositionConfidence: 0.95},
		},
		{
			Candidate: detector.Candidate{
				Text:       "left unapproved",
				Category:   categories.Category("privacy"),
				Confidence: 0.7,
			},
			Box: detector.BoundingBox{X1: 100, Y1: 120, X2: 200, Y2: 138},
		},
	}

	outputPath := filepath.Join(dir, "report_redacted.pdf")
	r := New(nil)
	result, err := r.Apply(sourcePath, outputPath, redactions, []float64{792})
	require.NoError(t, err)
	assert.Equal(t, 1, result.AppliedCount)
	assert.Equal(t, 0, result.FailedCount)

	// the stamped output must still be a valid PDF and differ from the source
	require.NoError(t, api.ValidateFile(outputPath, model.NewDefaultConfiguration()))
	source, err := os.ReadFile(sourcePath)
	require.NoError(t, err)
	stamped, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.NotEqual(t, source, stamped)
	assert.Greater(t, len(stamped), len(source))

	assert.FileExists(t, result.AuditFilePath)
}

func TestStampBoxRejectsDegenerateBox(t *testing.T) {
	r := New(nil)
	err := r.stampBox("unused.pdf", detector.Redaction{
		Box: detector.BoundingBox{X1: 100, Y1: 100, X2: 100, Y2: 100},
	}, nil)
	assert.Error(t, err)
}

func TestWriteAuditSidecar(t *testing.T) {
	dir := t.TempDir()
	outputPath := filepath.Join(dir, "report_redacted.pdf")

	redactions := []detector.Redaction{{
		Candidate: detector.Candidate{
			Text:       "123-45-6789",
			Category:   categories.Category("personal-identifying"),
			Confidence: 0.98,
			Approved:   true,
		},
		Box: detector.BoundingBox{X1: 100, Y1: 80, X2: 170, Y2: 92, ResolutionMethod: "exact_search", PositionConfidence: 0.95},
	}}

	r := New(nil)
	auditPath, err := r.writeAudit(outputPath, redactions, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report_redacted_audit.json"), auditPath)

	data, err := os.ReadFile(auditPath)
	require.NoError(t, err)

	var record auditRecord
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, 1, record.AppliedCount)
	require.Len(t, record.Redactions, 1)
	assert.Equal(t, "123-45-6789", record.Redactions[0].Text)
	assert.Equal(t, "exact_search", record.Redactions[0].Box.ResolutionMethod)
}

func TestCopyFileCreatesOutputDirectory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.4 stub"), 0600))

	dst := filepath.Join(dir, "processed", "nested", "out.pdf")
	require.NoError(t, copyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 stub", string(data))
}
