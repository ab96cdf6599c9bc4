// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package reconcile merges pattern and semantic detection results into one
// deduplicated candidate list. Deduplication works on normalized text first,
// then on overlapping spans within a page, keeping the higher-confidence
// candidate each time.
package reconcile

import (
	"sort"

	"opra-redact/internal/categories"
	"opra-redact/internal/detector"
)

// Result is the merged candidate set with per-category counts.
type Result struct {
	Candidates []detector.Candidate
	Coverage   map[categories.Category]int
}

// Merge combines detection results from any number of sources. For candidates
// whose normalized text matches, the higher-confidence one wins; among equals
// the earliest-seen wins, so pattern results passed first take precedence over
// semantic ones. Candidates on the same page with overlapping spans are then
// reduced the same way. The output is ordered by page, span start, then text.
func Merge(sources ...[]detector.Candidate) Result {
	byKey := make(map[string]detector.Candidate)
	var order []string
	for _, source := range sources {
		for _, c := range source {
			if c.Validate() != nil {
				continue
			}
			key := c.Key()
			existing, seen := byKey[key]
			if !seen {
				byKey[key] = c
				order = append(order, key)
				continue
			}
			if c.Confidence > existing.Confidence {
				byKey[key] = c
			}
		}
	}

	merged := make([]detector.Candidate, 0, len(order))
	for _, key := range order {
		merged = append(merged, byKey[key])
	}
	merged = resolveOverlaps(merged)

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.PageIndex != b.PageIndex {
			return a.PageIndex < b.PageIndex
		}
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		return a.Text < b.Text
	})

	coverage := make(map[categories.Category]int)
	for _, c := range merged {
		coverage[c.Category]++
	}
	return Result{Candidates: merged, Coverage: coverage}
}

// resolveOverlaps drops the lower-confidence candidate wherever two candidates
// on the same page claim overlapping character ranges. Candidates without a
// span (semantic results before position resolution) never conflict.
func resolveOverlaps(candidates []detector.Candidate) []detector.Candidate {
	ordered := make([]detector.Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].PageIndex != ordered[j].PageIndex {
			return ordered[i].PageIndex < ordered[j].PageIndex
		}
		return ordered[i].Span.Start < ordered[j].Span.Start
	})

	kept := ordered[:0]
	for _, c := range ordered {
		if c.Span.Empty() {
			kept = append(kept, c)
			continue
		}
		conflict := -1
		for i := len(kept) - 1; i >= 0; i-- {
			prev := kept[i]
			if prev.PageIndex != c.PageIndex {
				break
			}
			if !prev.Span.Empty() && prev.Span.Overlaps(c.Span) {
				conflict = i
				break
			}
		}
		if conflict < 0 {
			kept = append(kept, c)
			continue
		}
		if c.Confidence > kept[conflict].Confidence {
			kept[conflict] = c
		}
	}
	return kept
}
