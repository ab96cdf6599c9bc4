// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opra-redact/internal/pagesource"
)

// fakePage is a scripted page: search hits are keyed by lowercase term.
type fakePage struct {
	text    string
	lines   []pagesource.Line
	matches map[string][]pagesource.Rect
	width   float64
	height  float64
}

func (p *fakePage) Text() string             { return p.text }
func (p *fakePage) Lines() []pagesource.Line { return p.lines }
func (p *fakePage) Width() float64           { return p.width }
func (p *fakePage) Height() float64          { return p.height }
func (p *fakePage) Search(term string) []pagesource.Rect {
	return p.matches[strings.ToLower(term)]
}

func newFakePage() *fakePage {
	return &fakePage{
		matches: map[string][]pagesource.Rect{},
		width:   612,
		height:  792,
	}
}

func TestResolveExactSearchFirstOccurrence(t *testing.T) {
	page := newFakePage()
	page.matches["123-45-6789"] = []pagesource.Rect{
		{X1: 100, Y1: 80, X2: 170, Y2: 92},
		{X1: 100, Y1: 300, X2: 170, Y2: 312},
	}

	r := New()
	for i := 0; i < 5; i++ {
		box := r.Resolve("123-45-6789", page, 0)
		assert.Equal(t, MethodExactSearch, box.ResolutionMethod)
		assert.Equal(t, 0.95, box.PositionConfidence)
		assert.Equal(t, 80.0, box.Y1)
	}
}

func TestResolveNormalizedVariants(t *testing.T) {
	page := newFakePage()
	page.matches["john a. smith"] = []pagesource.Rect{{X1: 72, Y1: 60, X2: 160, Y2: 72}}

	box := New().Resolve("John\nA.  Smith", page, 2)
	assert.Equal(t, MethodNormalizedSearch, box.ResolutionMethod)
	assert.Equal(t, 2, box.PageIndex)
}

func TestResolveTokenAnchorExtrapolatesWidth(t *testing.T) {
	page := newFakePage()
	// Only the word "Maplewood" is findable; it is 9 chars over 54pt, so
	// 6pt per glyph. "123 Maplewood Avenue" is 20 chars: 20 * 6 * 0.9 = 108.
	page.matches["maplewood"] = []pagesource.Rect{{X1: 100, Y1: 500, X2: 154, Y2: 512}}

	box := New().Resolve("123 Maplewood Avenue", page, 0)
	require.Equal(t, MethodTokenAnchor, box.ResolutionMethod)
	assert.Equal(t, 0.85, box.PositionConfidence)
	assert.InDelta(t, 100, box.X1, 0.01)
	assert.InDelta(t, 208, box.X2, 0.01)
}

func TestResolveTokenAnchorClipsToRightMargin(t *testing.T) {
	page := newFakePage()
	page.matches["identifier"] = []pagesource.Rect{{X1: 580, Y1: 200, X2: 640, Y2: 212}}

	box := New().Resolve("identifier "+strings.Repeat("x", 80), page, 0)
	require.Equal(t, MethodTokenAnchor, box.ResolutionMethod)
	assert.Equal(t, 612-5.0, box.X2)
}

func TestResolveTokenAnchorSkipsShortAndNumericTokens(t *testing.T) {
	page := newFakePage()
	// Hits exist for tokens that must not be used as anchors.
	page.matches["12"] = []pagesource.Rect{{X1: 10, Y1: 10, X2: 20, Y2: 22}}
	page.matches["9876"] = []pagesource.Rect{{X1: 10, Y1: 10, X2: 40, Y2: 22}}

	box := New().Resolve("12 9876", page, 0)
	assert.NotEqual(t, MethodTokenAnchor, box.ResolutionMethod)
	assert.LessOrEqual(t, box.PositionConfidence, 0.3)
}

func TestResolvePatternResearchForGovernmentIDs(t *testing.T) {
	// The candidate's own string is unfindable (formatting drifted between
	// extraction and rendering), but the page text carries an ID-shaped
	// string that is.
	page := newFakePage()
	page.text = "SSN on file: 987-65-4321 (verified)"
	page.matches["987-65-4321"] = []pagesource.Rect{{X1: 150, Y1: 400, X2: 220, Y2: 412}}

	box := New().Resolve("123-45-6789", page, 1)
	require.Equal(t, MethodPatternResearch, box.ResolutionMethod)
	assert.Equal(t, 0.98, box.PositionConfidence)
	assert.Equal(t, 1, box.PageIndex)
}

func TestResolveStructuralProportionalSubRect(t *testing.T) {
	// One run of 30 chars spanning 180pt (6pt per glyph); the candidate
	// starts at offset 7.
	lineText := "Email: john.smith@example.com!"
	page := newFakePage()
	page.lines = []pagesource.Line{{
		Runs:    []pagesource.Run{{Text: lineText, Rect: pagesource.Rect{X1: 60, Y1: 90, X2: 240, Y2: 102}}},
		Rect:    pagesource.Rect{X1: 60, Y1: 90, X2: 240, Y2: 102},
		Text:    lineText,
		Offsets: []int{0},
	}}

	box := New().Resolve("john.smith@example.com", page, 0)
	require.Equal(t, MethodStructural, box.ResolutionMethod)
	assert.Equal(t, 0.80, box.PositionConfidence)
	assert.InDelta(t, 60+7*6, box.X1, 0.01)
	assert.InDelta(t, 60+29*6, box.X2, 0.01)
	assert.Equal(t, 90.0, box.Y1)
	assert.Equal(t, 102.0, box.Y2)
}

func TestResolveAlwaysReturnsABox(t *testing.T) {
	page := newFakePage()
	r := New()

	for _, text := range []string{
		"completely absent nonsense",
		"zz",
		"123-45-6789",
		"someone@example.com",
		"742 Evergreen Terrace",
		strings.Repeat("q", 500),
	} {
		box := r.Resolve(text, page, 3)
		assert.Equal(t, 3, box.PageIndex, text)
		assert.Greater(t, box.X2, box.X1, text)
		assert.Greater(t, box.Y2, box.Y1, text)
		assert.LessOrEqual(t, box.PositionConfidence, 0.3, text)
	}
}

func TestResolveNilPageUsesFallback(t *testing.T) {
	box := New().Resolve("anything", nil, 0)
	assert.LessOrEqual(t, box.PositionConfidence, 0.3)
	assert.NotEmpty(t, box.ResolutionMethod)
}

func TestResolveContentAwareFallbackRegions(t *testing.T) {
	page := newFakePage()
	r := New()

	ssn := r.Resolve("987-65-4321", page, 0)
	assert.Equal(t, MethodFallbackContent, ssn.ResolutionMethod)
	assert.Equal(t, [4]float64{200, 400, 300, 420}, [4]float64{ssn.X1, ssn.Y1, ssn.X2, ssn.Y2})

	email := r.Resolve("ghost@example.com", page, 0)
	assert.Equal(t, [4]float64{150, 350, 350, 370}, [4]float64{email.X1, email.Y1, email.X2, email.Y2})

	address := r.Resolve("742 Evergreen Terrace Lane", page, 0)
	assert.Equal(t, [4]float64{100, 500, 400, 520}, [4]float64{address.X1, address.Y1, address.X2, address.Y2})
}

func TestResolveHashFallbackIsDeterministic(t *testing.T) {
	page := newFakePage()
	r := New()

	first := r.Resolve("some unfindable phrase", page, 0)
	require.Equal(t, MethodFallbackHash, first.ResolutionMethod)
	assert.Equal(t, 0.20, first.PositionConfidence)

	for i := 0; i < 10; i++ {
		again := r.Resolve("some unfindable phrase", page, 0)
		assert.Equal(t, first, again)
	}

	other := r.Resolve("a different unfindable phrase", page, 0)
	assert.NotEqual(t, [2]float64{first.X1, first.Y1}, [2]float64{other.X1, other.Y1})
}
