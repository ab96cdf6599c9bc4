// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package redactor burns approved redactions into a PDF copy using pdfcpu.
// The original file is never modified. Box stamping is best effort: a box
// that cannot be stamped is logged and recorded in the audit sidecar, it does
// not abort the remaining boxes.
package redactor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"opra-redact/internal/detector"
	"opra-redact/internal/observability"
)

// Result summarizes one redaction run.
type Result struct {
	RedactedFilePath string        `json:"redacted_file_path"`
	AuditFilePath    string        `json:"audit_file_path"`
	AppliedCount     int           `json:"applied_count"`
	FailedCount      int           `json:"failed_count"`
	ProcessingTime   time.Duration `json:"processing_time"`
}

// Redactor applies approved redactions to PDF files.
type Redactor struct {
	observer  *observability.StandardObserver
	pdfConfig *model.Configuration
}

// New creates a Redactor.
func New(observer *observability.StandardObserver) *Redactor {
	return &Redactor{
		observer:  observer,
		pdfConfig: model.NewDefaultConfiguration(),
	}
}

// Apply copies the source PDF to outputPath and stamps an opaque box over
// every approved redaction. pageHeights carries each page's height in points,
// needed to flip top-origin boxes into the PDF's bottom-origin space. An
// audit sidecar listing every box, applied or failed, is written next to the
// output file.
func (r *Redactor) Apply(sourcePath, outputPath string, redactions []detector.Redaction, pageHeights []float64) (*Result, error) {
	finishTiming := r.startTiming("redactor", "apply", sourcePath)
	startTime := time.Now()

	if err := r.validatePDF(sourcePath); err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("PDF validation failed: %w", err)
	}
	if err := copyFile(sourcePath, outputPath); err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("failed to copy PDF file: %w", err)
	}

	applied, failed := 0, 0
	for _, redaction := range redactions {
		if !redaction.Approved {
			continue
		}
		if err := r.stampBox(outputPath, redaction, pageHeights); err != nil {
			failed++
			r.logEvent("box_stamp_failed", false, map[string]interface{}{
				"page":  redaction.Box.PageIndex,
				"error": err.Error(),
			})
			continue
		}
		applied++
	}

	auditPath, err := r.writeAudit(outputPath, redactions, applied, failed)
	if err != nil {
		r.logEvent("audit_write_failed", false, map[string]interface{}{"error": err.Error()})
	}

	result := &Result{
		RedactedFilePath: outputPath,
		AuditFilePath:    auditPath,
		AppliedCount:     applied,
		FailedCount:      failed,
		ProcessingTime:   time.Since(startTime),
	}
	finishTiming(true, map[string]interface{}{
		"applied": applied,
		"failed":  failed,
	})
	return result, nil
}

// validatePDF checks that the file exists and parses as a PDF.
func (r *Redactor) validatePDF(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", path)
	}
	if err := api.ValidateFile(path, r.pdfConfig); err != nil {
		return fmt.Errorf("invalid PDF file: %w", err)
	}
	return nil
}

// stampBox covers one bounding box with an opaque black stamp. The opaque
// bgcolor fill is what covers the content; the glyphs only size the stamp, so
// they stay within the core Courier WinAnsi encoding.
func (r *Redactor) stampBox(path string, redaction detector.Redaction, pageHeights []float64) error {
	box := redaction.Box
	if box.Width() <= 0 || box.Height() <= 0 {
		return fmt.Errorf("degenerate box on page %d", box.PageIndex)
	}

	pageHeight := 792.0
	if box.PageIndex >= 0 && box.PageIndex < len(pageHeights) && pageHeights[box.PageIndex] > 0 {
		pageHeight = pageHeights[box.PageIndex]
	}

	// pdfcpu positions from the bottom-left corner.
	offX := box.X1
	offY := pageHeight - box.Y2

	points := int(box.Height())
	if points < 6 {
		points = 6
	}
	glyphs := int(box.Width()/(float64(points)*0.6)) + 1

	desc := fmt.Sprintf(
		"fontname:Courier, points:%d, pos:bl, off:%.1f %.1f, scalefactor:1 abs, rotation:0, opacity:1, fillcolor:#000000, bgcolor:#000000",
		points, offX, offY)

	wm, err := api.TextWatermark(strings.Repeat("X", glyphs), desc, true, false, types.POINTS)
	if err != nil {
		return fmt.Errorf("failed to build redaction stamp: %w", err)
	}

	pages := []string{strconv.Itoa(box.PageIndex + 1)}
	if err := api.AddWatermarksFile(path, "", pages, wm, r.pdfConfig); err != nil {
		return fmt.Errorf("failed to stamp page %d: %w", box.PageIndex+1, err)
	}
	return nil
}

// auditRecord is the sidecar document describing what was redacted and where.
type auditRecord struct {
	RedactedFile string               `json:"redacted_file"`
	CreatedAt    time.Time            `json:"created_at"`
	AppliedCount int                  `json:"applied_count"`
	FailedCount  int                  `json:"failed_count"`
	Redactions   []detector.Redaction `json:"redactions"`
}

func (r *Redactor) writeAudit(outputPath string, redactions []detector.Redaction, applied, failed int) (string, error) {
	auditPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "_audit.json"
	record := auditRecord{
		RedactedFile: filepath.Base(outputPath),
		CreatedAt:    time.Now(),
		AppliedCount: applied,
		FailedCount:  failed,
		Redactions:   redactions,
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(auditPath, data, 0600); err != nil {
		return "", err
	}
	return auditPath, nil
}

func copyFile(src, dst string) error {
	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read source file: %w", err)
	}
	if err := os.WriteFile(dst, data, 0600); err != nil {
		return fmt.Errorf("failed to write destination file: %w", err)
	}
	return nil
}

func (r *Redactor) startTiming(component, operation, id string) func(bool, map[string]interface{}) {
	if r.observer == nil {
		return func(bool, map[string]interface{}) {}
	}
	return r.observer.StartTiming(component, operation, id)
}

func (r *Redactor) logEvent(operation string, success bool, metadata map[string]interface{}) {
	if r.observer != nil {
		r.observer.StartTiming("redactor", operation, "")(success, metadata)
	}
}
