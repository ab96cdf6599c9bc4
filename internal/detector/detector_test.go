// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpanOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Span
		want bool
	}{
		{"identical", Span{0, 5}, Span{0, 5}, true},
		{"partial", Span{0, 5}, Span{3, 8}, true},
		{"contained", Span{0, 10}, Span{3, 5}, true},
		{"adjacent", Span{0, 5}, Span{5, 8}, false},
		{"disjoint", Span{0, 5}, Span{10, 12}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestSpanValidity(t *testing.T) {
	assert.True(t, Span{}.Valid())
	assert.True(t, Span{}.Empty())
	assert.True(t, Span{3, 3}.Valid())
	assert.False(t, Span{5, 3}.Valid())
	assert.False(t, Span{-1, 3}.Valid())
	assert.False(t, Span{3, 8}.Empty())
}

func TestCandidateKeyNormalizes(t *testing.T) {
	a := Candidate{Text: "  John Smith "}
	b := Candidate{Text: "JOHN SMITH"}
	assert.Equal(t, a.Key(), b.Key())
}

func TestCandidateValidate(t *testing.T) {
	valid := Candidate{Text: "123-45-6789", Confidence: 0.98, Span: Span{5, 16}}
	assert.NoError(t, valid.Validate())

	assert.Error(t, Candidate{Text: "   ", Confidence: 0.5}.Validate())
	assert.Error(t, Candidate{Text: "x", Confidence: 1.2}.Validate())
	assert.Error(t, Candidate{Text: "x", Confidence: -0.1}.Validate())
	assert.Error(t, Candidate{Text: "x", Confidence: 0.5, Span: Span{8, 2}}.Validate())
}

func TestBoundingBoxDimensions(t *testing.T) {
	box := BoundingBox{X1: 100, Y1: 200, X2: 250, Y2: 218}
	assert.InDelta(t, 150.0, box.Width(), 1e-9)
	assert.InDelta(t, 18.0, box.Height(), 1e-9)
}
