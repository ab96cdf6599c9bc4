// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package resolve maps candidate text back to bounding boxes on the source
// page. Resolution is a tiered fallback chain that never fails: every tier
// either produces a box or falls through to a cheaper, lower-confidence one,
// ending in a synthetic placeholder. A wrong box beats no box, because an
// unplaced redaction leaves the flagged value exposed.
package resolve

import (
	"hash/fnv"
	"regexp"
	"strings"
	"unicode"

	"opra-redact/internal/detector"
	"opra-redact/internal/pagesource"
)

// Resolution method tags, recorded on every box so reviewers can tell a
// measured position from a guess.
const (
	MethodExactSearch      = "exact_search"
	MethodNormalizedSearch = "normalized_search"
	MethodTokenAnchor      = "token_anchor"
	MethodPatternResearch  = "pattern_research"
	MethodStructural       = "structural"
	MethodFallbackContent  = "fallback_content"
	MethodFallbackHash     = "fallback_hash"
	MethodFallbackDefault  = "fallback_default"
)

const (
	exactConfidence      = 0.95
	tokenConfidence      = 0.85
	patternConfidence    = 0.98
	structuralConfidence = 0.80
	contentConfidence    = 0.30
	hashConfidence       = 0.20
	defaultConfidence    = 0.10

	// Extrapolated widths are damped and kept off the right margin.
	widthDamping = 0.9
	rightMargin  = 5
)

var (
	ssnShape   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	streetWord = regexp.MustCompile(`(?i)\b(street|st|avenue|ave|road|rd|drive|dr|lane|ln|boulevard|blvd|court|ct|place|pl|way)\b`)
)

// Resolver locates candidate text on pages.
type Resolver struct{}

// New creates a Resolver.
func New() *Resolver {
	return &Resolver{}
}

// Resolve returns a bounding box for text on the given page. The page may be
// nil (extraction failed entirely); resolution then goes straight to the
// synthetic fallback. The same text on the same page content always yields
// the same box.
func (r *Resolver) Resolve(text string, page pagesource.Page, pageIndex int) detector.BoundingBox {
	text = strings.TrimSpace(text)
	if text == "" || page == nil {
		return r.syntheticFallback(text, pageIndex)
	}

	if box, ok := r.exactSearch(text, page, pageIndex); ok {
		return box
	}
	if box, ok := r.tokenAnchor(text, page, pageIndex); ok {
		return box
	}
	if box, ok := r.patternResearch(text, page, pageIndex); ok {
		return box
	}
	if box, ok := r.structural(text, page, pageIndex); ok {
		return box
	}
	return r.syntheticFallback(text, pageIndex)
}

// exactSearch tries the candidate verbatim, then with newlines collapsed to
// spaces, then with all whitespace runs collapsed. The first hit in document
// order wins.
func (r *Resolver) exactSearch(text string, page pagesource.Page, pageIndex int) (detector.BoundingBox, bool) {
	variants := []struct {
		term   string
		method string
	}{
		{text, MethodExactSearch},
		{strings.ReplaceAll(text, "\n", " "), MethodNormalizedSearch},
		{strings.Join(strings.Fields(text), " "), MethodNormalizedSearch},
	}

	seen := make(map[string]bool, len(variants))
	for _, v := range variants {
		if v.term == "" || seen[v.term] {
			continue
		}
		seen[v.term] = true
		if rects := page.Search(v.term); len(rects) > 0 {
			return boxFromRect(rects[0], pageIndex, v.method, exactConfidence), true
		}
	}
	return detector.BoundingBox{}, false
}

// tokenAnchor finds a single distinctive word of the candidate on the page
// and extrapolates the full span's width from that word's glyph metrics.
// Short and purely numeric tokens are skipped as anchors since they collide
// with unrelated page content too often.
func (r *Resolver) tokenAnchor(text string, page pagesource.Page, pageIndex int) (detector.BoundingBox, bool) {
	var bestRect pagesource.Rect
	var bestToken string
	bestScore := 0.0

	for _, token := range strings.Fields(text) {
		if len(token) < 3 || allDigits(token) {
			continue
		}
		rects := page.Search(token)
		if len(rects) == 0 {
			continue
		}
		score := anchorScore(token)
		if score > bestScore {
			bestScore = score
			bestToken = token
			bestRect = rects[0]
		}
	}
	if bestToken == "" {
		return detector.BoundingBox{}, false
	}

	charWidth := bestRect.Width() / float64(len(bestToken))
	width := float64(len(text)) * charWidth * widthDamping
	x2 := bestRect.X1 + width
	if limit := page.Width() - rightMargin; x2 > limit {
		x2 = limit
	}

	rect := pagesource.Rect{X1: bestRect.X1, Y1: bestRect.Y1, X2: x2, Y2: bestRect.Y2}
	return boxFromRect(rect, pageIndex, MethodTokenAnchor, tokenConfidence), true
}

// anchorScore ranks candidate anchor tokens; longer tokens are less likely to
// match unrelated page content.
func anchorScore(token string) float64 {
	score := 0.5 + float64(len(token))*0.05
	if score > 0.9 {
		score = 0.9
	}
	return score
}

// patternResearch handles structured shapes that rarely have false positional
// matches. Government-ID-shaped strings are re-extracted from the page text
// and searched again; these re-derived matches can succeed where the
// candidate string failed over a formatting difference.
func (r *Resolver) patternResearch(text string, page pagesource.Page, pageIndex int) (detector.BoundingBox, bool) {
	if !ssnShape.MatchString(text) {
		return detector.BoundingBox{}, false
	}
	for _, match := range ssnShape.FindAllString(page.Text(), -1) {
		if rects := page.Search(match); len(rects) > 0 {
			return boxFromRect(rects[0], pageIndex, MethodPatternResearch, patternConfidence), true
		}
	}
	return detector.BoundingBox{}, false
}

// structural walks the page's line/run tree looking for the line whose text
// contains the candidate, then computes a sub-rectangle proportionally from
// the containing run's glyph width. This catches candidates whose spacing
// differs between extraction and rendering.
func (r *Resolver) structural(text string, page pagesource.Page, pageIndex int) (detector.BoundingBox, bool) {
	needle := strings.ToLower(strings.Join(strings.Fields(text), " "))
	if needle == "" {
		return detector.BoundingBox{}, false
	}

	for _, line := range page.Lines() {
		lower := strings.ToLower(line.Text)

		// Offsets into the raw line text map straight onto run geometry.
		if idx := strings.Index(lower, needle); idx >= 0 {
			if rect, ok := line.RangeRect(idx, idx+len(needle)); ok {
				rect.X2 = clipRight(rect.X2, page)
				return boxFromRect(rect, pageIndex, MethodStructural, structuralConfidence), true
			}
		}

		// Spacing differs between extraction and rendering; compare with
		// whitespace collapsed and estimate proportionally across the line.
		collapsed := strings.Join(strings.Fields(lower), " ")
		idx := strings.Index(collapsed, needle)
		if idx < 0 || len(collapsed) == 0 {
			continue
		}
		charWidth := line.Rect.Width() / float64(len(collapsed))
		x1 := line.Rect.X1 + float64(idx)*charWidth
		x2 := clipRight(x1+float64(len(needle))*charWidth, page)
		rect := pagesource.Rect{X1: x1, Y1: line.Rect.Y1, X2: x2, Y2: line.Rect.Y2}
		return boxFromRect(rect, pageIndex, MethodStructural, structuralConfidence), true
	}
	return detector.BoundingBox{}, false
}

func clipRight(x2 float64, page pagesource.Page) float64 {
	if limit := page.Width() - rightMargin; x2 > limit {
		return limit
	}
	return x2
}

// syntheticFallback places a box with no positional evidence. Recognized
// content shapes get fixed default regions; anything else gets coordinates
// derived from a hash of the text, so repeated runs on the same input give
// identical output.
func (r *Resolver) syntheticFallback(text string, pageIndex int) detector.BoundingBox {
	if text == "" {
		return detector.BoundingBox{
			PageIndex: pageIndex,
			X1:        50, Y1: 100, X2: 200, Y2: 120,
			ResolutionMethod:   MethodFallbackDefault,
			PositionConfidence: defaultConfidence,
		}
	}

	switch {
	case ssnShape.MatchString(text):
		return contentBox(pageIndex, 200, 400, 300, 420)
	case strings.Contains(text, "@"):
		return contentBox(pageIndex, 150, 350, 350, 370)
	case looksLikeAddress(text):
		return contentBox(pageIndex, 100, 500, 400, 520)
	}

	h := fnv.New32a()
	h.Write([]byte(text))
	hash := h.Sum32()

	y := 200 + float64(hash%20)*30
	x := 80 + float64(len(text)%5)*20
	w := float64(len(text) * 8)
	if w > 300 {
		w = 300
	}
	return detector.BoundingBox{
		PageIndex: pageIndex,
		X1:        x, Y1: y, X2: x + w, Y2: y + 18,
		ResolutionMethod:   MethodFallbackHash,
		PositionConfidence: hashConfidence,
	}
}

func contentBox(pageIndex int, x1, y1, x2, y2 float64) detector.BoundingBox {
	return detector.BoundingBox{
		PageIndex: pageIndex,
		X1:        x1, Y1: y1, X2: x2, Y2: y2,
		ResolutionMethod:   MethodFallbackContent,
		PositionConfidence: contentConfidence,
	}
}

func looksLikeAddress(text string) bool {
	hasDigit := strings.IndexFunc(text, unicode.IsDigit) >= 0
	return hasDigit && streetWord.MatchString(text)
}

func boxFromRect(rect pagesource.Rect, pageIndex int, method string, confidence float64) detector.BoundingBox {
	return detector.BoundingBox{
		PageIndex:          pageIndex,
		X1:                 rect.X1,
		Y1:                 rect.Y1,
		X2:                 rect.X2,
		Y2:                 rect.Y2,
		ResolutionMethod:   method,
		PositionConfidence: confidence,
	}
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
