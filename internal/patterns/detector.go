// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package patterns implements the deterministic pattern detector. It applies a
// fixed rule set against raw extracted page text; rules are data, so a
// malformed expression disables that rule only and never the detector.
package patterns

import (
	"fmt"
	"os"
	"regexp"

	"opra-redact/internal/detector"
	"opra-redact/internal/observability"
)

type compiledRule struct {
	Rule
	regex *regexp.Regexp
}

// Detector applies compiled rules against page text. Detection is synchronous
// and has no failure modes beyond a rule being skipped at construction.
type Detector struct {
	rules    []compiledRule
	observer *observability.StandardObserver
}

// NewDetector compiles the given rules. Rules that fail to compile are skipped
// with a warning on stderr.
func NewDetector(rules []Rule) *Detector {
	d := &Detector{}
	for _, rule := range rules {
		expr := rule.Expr
		if !rule.CaseSensitive {
			expr = "(?i)" + expr
		}
		regex, err := regexp.Compile(expr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping malformed pattern rule %q: %v\n", rule.Name, err)
			continue
		}
		d.rules = append(d.rules, compiledRule{Rule: rule, regex: regex})
	}
	return d
}

// SetObserver sets the observability component
func (d *Detector) SetObserver(observer *observability.StandardObserver) {
	d.observer = observer
}

// RuleCount returns the number of rules that compiled successfully.
func (d *Detector) RuleCount() int {
	return len(d.rules)
}

// Detect scans pageText and returns one candidate per rule match. For rules
// with a value capture group, only the group's text and position are emitted;
// matches whose value group is empty are discarded.
func (d *Detector) Detect(pageText string) []detector.Candidate {
	var finishTiming func(bool, map[string]interface{})
	if d.observer != nil {
		finishTiming = d.observer.StartTiming("pattern_detector", "detect", "")
	}

	var candidates []detector.Candidate
	for _, rule := range d.rules {
		for _, idx := range rule.regex.FindAllStringSubmatchIndex(pageText, -1) {
			start, end := idx[0], idx[1]
			if rule.ValueGroup > 0 {
				g := 2 * rule.ValueGroup
				if g+1 >= len(idx) || idx[g] < 0 || idx[g] == idx[g+1] {
					continue
				}
				start, end = idx[g], idx[g+1]
			}

			candidates = append(candidates, detector.Candidate{
				Text:            pageText[start:end],
				Category:        rule.Category,
				Confidence:      rule.Confidence,
				Span:            detector.Span{Start: start, End: end},
				DetectionMethod: "pattern:" + rule.Name,
				Justification:   "Pattern match: " + rule.Name,
				Approved:        true,
			})
		}
	}

	if finishTiming != nil {
		finishTiming(true, map[string]interface{}{
			"rule_count":      len(d.rules),
			"candidate_count": len(candidates),
			"content_length":  len(pageText),
		})
	}
	return candidates
}
