// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package patterns

import "opra-redact/internal/categories"

// Rule is one deterministic detection rule. ValueGroup, when non-zero, names
// the capture group holding the sensitive value; the surrounding label text is
// never emitted. Confidence is static per rule and reflects the pattern's
// specificity, not the individual match.
type Rule struct {
	Name       string
	Expr       string
	Category   categories.Category
	Confidence float64

	// ValueGroup selects the value-only capture group. Zero means the whole
	// match is the value.
	ValueGroup int

	// CaseSensitive opts a rule out of the default case-insensitive matching.
	// Capitalization is the detection signal for name-shaped patterns, so
	// those rules keep their case.
	CaseSensitive bool
}

// DefaultRules returns the built-in rule set. Exact structured shapes score
// near the top of the range; loosely shaped patterns such as standalone ZIP
// codes score low to reflect their false positive risk.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:       "ssn",
			Expr:       `\b\d{3}-\d{2}-\d{4}\b`,
			Category:   "personal-identifying",
			Confidence: 0.98,
		},
		{
			Name:       "phone",
			Expr:       `(?:\(\d{3}\)[ ]?|\b\d{3}[- ]?)\d{3}[- ]?\d{4}\b`,
			Category:   "personal-identifying",
			Confidence: 0.95,
		},
		{
			Name:       "email",
			Expr:       `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
			Category:   "personal-identifying",
			Confidence: 0.95,
		},
		{
			Name:       "employee_id_value",
			Expr:       `\b(?:Employee ID|EMP|ID)\b[:\s#]*\s*([A-Z0-9][A-Z0-9-]{2,14})\b`,
			Category:   "personal-identifying",
			Confidence: 0.90,
			ValueGroup: 1,
		},
		{
			Name:       "birth_date_value",
			Expr:       `(?:DOB|Date of Birth|Birth Date)[:\s]*\s*(\d{1,2}/\d{1,2}/\d{4})\b`,
			Category:   "personal-identifying",
			Confidence: 0.95,
			ValueGroup: 1,
		},
		{
			Name:       "date_standalone",
			Expr:       `\b(?:0[1-9]|1[0-2])/(?:0[1-9]|[12][0-9]|3[01])/(?:19|20)\d{2}\b`,
			Category:   "personal-identifying",
			Confidence: 0.80,
		},
		{
			Name:          "person_name",
			Expr:          `\b[A-Z][a-z]+\s+[A-Z]\.\s+[A-Z][a-z]+\b|\b[A-Z][a-z]+\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?\b`,
			Category:      "personal-identifying",
			Confidence:    0.85,
			CaseSensitive: true,
		},
		{
			Name:       "street_address",
			Expr:       `\b\d+\s+[A-Z][A-Za-z\s]+(?:Street|St|Avenue|Ave|Road|Rd|Drive|Dr|Lane|Ln|Court|Ct|Place|Pl|Boulevard|Blvd)\b`,
			Category:   "personal-identifying",
			Confidence: 0.90,
		},
		{
			Name:       "security_code_value",
			Expr:       `(?:Security Code|Access Code|Code)[:\s]*\s*(\d{4,6})\b`,
			Category:   "security-measures",
			Confidence: 0.95,
			ValueGroup: 1,
		},
		{
			Name:       "access_code_value",
			Expr:       `(?:Building|Room|Access)[:\s]*(?:Code|Key)[:\s]*\s*(\d{4,8})\b`,
			Category:   "security-measures",
			Confidence: 0.95,
			ValueGroup: 1,
		},
		{
			Name:       "password_value",
			Expr:       `(?:Password|PWD|Pass)[:\s]*\s*([A-Za-z0-9!@#$%^&*]{6,25})\b`,
			Category:   "security-measures",
			Confidence: 0.95,
			ValueGroup: 1,
		},
		{
			Name:       "cvv_value",
			Expr:       `(?:CVV|CVC)[:\s]*\s*(\d{3,4})\b`,
			Category:   "personal-identifying",
			Confidence: 0.95,
			ValueGroup: 1,
		},
		{
			Name:       "credit_card",
			Expr:       `\b(?:\d{4}[- ]?){3}\d{4}\b`,
			Category:   "personal-identifying",
			Confidence: 0.95,
		},
		{
			Name:       "salary_amount",
			Expr:       `\$\d[\d,]*(?:\.\d{2})?`,
			Category:   "personnel",
			Confidence: 0.85,
		},
		{
			Name:       "zip_code",
			Expr:       `\b\d{5}(?:-\d{4})?\b`,
			Category:   "personal-identifying",
			Confidence: 0.75,
		},
	}
}
