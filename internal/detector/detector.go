// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package detector

import (
	"context"
	"fmt"
	"strings"

	"opra-redact/internal/categories"
)

// Span is a half-open character offset range [Start, End) within a page's
// extracted text. Semantic detections carry a zero Span until verified.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Valid reports whether the span is well formed.
func (s Span) Valid() bool {
	return s.End >= s.Start && s.Start >= 0
}

// Empty reports whether the span carries no position information.
func (s Span) Empty() bool {
	return s.Start == 0 && s.End == 0
}

// Overlaps reports whether two spans share at least one character.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && s.End > o.Start
}

// Candidate is a proposed redaction: a sensitive text value, its exemption
// category, and how confident the producing detector is. The Text field holds
// the value only, never an accompanying label such as "SSN:".
type Candidate struct {
	Text            string              `json:"text"`
	Category        categories.Category `json:"category"`
	Confidence      float64             `json:"confidence"`
	PageIndex       int                 `json:"page"`
	Span            Span                `json:"span"`
	DetectionMethod string              `json:"detection_method"`
	Justification   string              `json:"justification"`
	Approved        bool                `json:"approved"`
}

// Key returns the deduplication key: case-insensitive, whitespace-trimmed text.
func (c Candidate) Key() string {
	return strings.ToLower(strings.TrimSpace(c.Text))
}

// Validate checks the candidate invariants.
func (c Candidate) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("candidate has empty text")
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("candidate confidence %.3f outside [0,1]", c.Confidence)
	}
	if !c.Span.Valid() {
		return fmt.Errorf("candidate span [%d,%d) is malformed", c.Span.Start, c.Span.End)
	}
	return nil
}

// BoundingBox is a resolved physical location on a rendered page. Coordinates
// use the page source's coordinate space. PositionConfidence reflects trust in
// the geometry only, independent of the candidate's detection confidence.
type BoundingBox struct {
	PageIndex          int     `json:"page"`
	X1                 float64 `json:"x1"`
	Y1                 float64 `json:"y1"`
	X2                 float64 `json:"x2"`
	Y2                 float64 `json:"y2"`
	ResolutionMethod   string  `json:"resolution_method"`
	PositionConfidence float64 `json:"position_confidence"`
}

// Width returns the horizontal extent of the box.
func (b BoundingBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b BoundingBox) Height() float64 { return b.Y2 - b.Y1 }

// Redaction pairs a candidate with its resolved location. This is the unit a
// reviewer approves or rejects and the unit the redaction applier consumes.
type Redaction struct {
	Candidate
	Box BoundingBox `json:"box"`
}

// PatternDetector is the synchronous, deterministic detector contract.
type PatternDetector interface {
	Detect(pageText string) []Candidate
}

// SemanticDetector is the asynchronous classifier contract. Implementations
// must degrade to an empty slice on any failure; the error return exists for
// logging, never for aborting a page analysis.
type SemanticDetector interface {
	Detect(ctx context.Context, pageText string, docTypeHint string) ([]Candidate, error)
}
