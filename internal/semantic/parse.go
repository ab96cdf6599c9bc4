// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package semantic

import (
	"encoding/json"
	"strings"

	"opra-redact/internal/categories"
	"opra-redact/internal/detector"
)

// rawCandidate mirrors one element of the classifier's JSON array. Category is
// free text here; it is mapped onto the closed taxonomy during conversion.
type rawCandidate struct {
	Text          string  `json:"text"`
	Category      string  `json:"category"`
	Confidence    float64 `json:"confidence"`
	Justification string  `json:"justification"`
}

// parseCandidates turns a classifier response into candidates. Three encodings
// are tried in order: the body is itself a JSON array; the array is wrapped in
// a fenced or bracketed block inside surrounding prose; neither, in which case
// the result is empty. Individual malformed elements are dropped, never the
// whole batch.
func parseCandidates(raw string, taxonomy *categories.Taxonomy) []detector.Candidate {
	body := strings.TrimSpace(raw)
	if body == "" {
		return nil
	}

	elements := parseArray(body)
	if elements == nil {
		if inner := extractArrayBlock(body); inner != "" {
			elements = parseArray(inner)
		}
	}
	if elements == nil {
		return nil
	}

	var candidates []detector.Candidate
	for _, element := range elements {
		var rc rawCandidate
		if err := json.Unmarshal(element, &rc); err != nil {
			continue
		}
		c := detector.Candidate{
			Text:            strings.TrimSpace(rc.Text),
			Category:        taxonomy.MapLabel(rc.Category),
			Confidence:      rc.Confidence,
			DetectionMethod: "semantic",
			Justification:   rc.Justification,
			Approved:        true,
		}
		if c.Validate() != nil {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates
}

// parseArray parses s as a JSON array of opaque elements, returning nil when s
// is not an array.
func parseArray(s string) []json.RawMessage {
	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(s), &elements); err != nil {
		return nil
	}
	return elements
}

// extractArrayBlock pulls the bracketed JSON region out of surrounding prose.
// A fenced block is preferred; otherwise the outermost [...] region is taken.
func extractArrayBlock(s string) string {
	if fenceStart := strings.Index(s, "```"); fenceStart >= 0 {
		fenced := s[fenceStart+3:]
		fenced = strings.TrimPrefix(fenced, "json")
		if fenceEnd := strings.Index(fenced, "```"); fenceEnd >= 0 {
			fenced = fenced[:fenceEnd]
		}
		fenced = strings.TrimSpace(fenced)
		if strings.HasPrefix(fenced, "[") {
			return fenced
		}
	}

	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return ""
}
