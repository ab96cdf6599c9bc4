// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package report renders analysis results for the terminal.
package report

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"opra-redact/internal/categories"
	"opra-redact/internal/store"
)

// Options control report rendering
type Options struct {
	NoColor   bool
	ShowBoxes bool
	Verbose   bool
}

// Formatter implements text-based output formatting
type Formatter struct {
	colors map[string]*color.Color
}

// NewFormatter creates a new text formatter
func NewFormatter() *Formatter {
	return &Formatter{
		colors: map[string]*color.Color{
			"green":  color.New(color.FgGreen),
			"yellow": color.New(color.FgYellow),
			"red":    color.New(color.FgRed),
			"cyan":   color.New(color.FgCyan),
			"white":  color.New(color.FgWhite, color.Bold),
		},
	}
}

// IsTerminal reports whether stdout is an interactive terminal; callers
// usually disable color when it is not.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Format renders one analysis record as a human-readable report
func (f *Formatter) Format(analysis *store.DocumentAnalysis, options Options) string {
	if options.NoColor {
		color.NoColor = true
	}

	var b strings.Builder

	b.WriteString(f.colors["white"].Sprintf("Redaction analysis: %s\n", analysis.Filename))
	fmt.Fprintf(&b, "Document ID: %s\n", analysis.DocumentID)
	fmt.Fprintf(&b, "Pages: %d   Status: %s   Candidates: %d\n\n",
		analysis.TotalPages, analysis.Status, len(analysis.Redactions))

	if len(analysis.Redactions) == 0 {
		b.WriteString("No redaction candidates found.\n")
		return b.String()
	}

	for _, r := range analysis.Redactions {
		confColor := f.confidenceColor(r.Confidence)
		fmt.Fprintf(&b, "  [page %d] %s\n", r.PageIndex+1, f.colors["cyan"].Sprint(r.Text))
		fmt.Fprintf(&b, "    category: %-22s confidence: %s   via %s\n",
			r.Category, confColor.Sprintf("%.2f", r.Confidence), r.DetectionMethod)
		if options.Verbose && r.Justification != "" {
			fmt.Fprintf(&b, "    reason: %s\n", r.Justification)
		}
		if options.ShowBoxes {
			fmt.Fprintf(&b, "    box: (%.1f, %.1f)-(%.1f, %.1f) via %s (position confidence %.2f)\n",
				r.Box.X1, r.Box.Y1, r.Box.X2, r.Box.Y2, r.Box.ResolutionMethod, r.Box.PositionConfidence)
		}
	}

	b.WriteString("\n")
	b.WriteString(f.formatCoverage(analysis))
	return b.String()
}

// formatCoverage summarizes candidates per exemption category
func (f *Formatter) formatCoverage(analysis *store.DocumentAnalysis) string {
	coverage := make(map[categories.Category]int)
	for _, r := range analysis.Redactions {
		coverage[r.Category]++
	}

	tags := make([]string, 0, len(coverage))
	for tag := range coverage {
		tags = append(tags, string(tag))
	}
	sort.Strings(tags)

	var b strings.Builder
	b.WriteString(f.colors["white"].Sprint("Coverage by category:\n"))
	for _, tag := range tags {
		fmt.Fprintf(&b, "  %-24s %d\n", tag, coverage[categories.Category(tag)])
	}
	return b.String()
}

func (f *Formatter) confidenceColor(confidence float64) *color.Color {
	switch {
	case confidence >= 0.9:
		return f.colors["green"]
	case confidence >= 0.7:
		return f.colors["yellow"]
	default:
		return f.colors["red"]
	}
}
