// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package semantic

import (
	"fmt"
	"strings"

	"opra-redact/internal/categories"
)

// buildPrompt renders the classification instruction for one page of text.
// The instruction demands value-only spans: a label like "Password:" stays
// visible in the document while only the credential value is marked sensitive.
func buildPrompt(taxonomy *categories.Taxonomy, pageText, docTypeHint string) string {
	var b strings.Builder

	b.WriteString(`You are an expert in New Jersey's Open Public Records Act (OPRA). Analyze the following text and identify ONLY the sensitive VALUES that should be redacted, NOT the field labels.

CRITICAL INSTRUCTIONS:
- ONLY identify the sensitive VALUE, not the label
- For "Employee ID: EMP-12345" identify "EMP-12345" only
- For "SSN: 123-45-6789" identify "123-45-6789" only
- For "DOB: 04/12/1975" identify "04/12/1975" only
- For "Password: SecurePass123" identify "SecurePass123" only
- For "John A. Smith" identify the full name
- Be PRECISE: extract only the sensitive value, preserve field labels

OPRA EXEMPTION CATEGORIES:
`)
	b.WriteString(taxonomy.PromptSection())

	if docTypeHint != "" {
		fmt.Fprintf(&b, "\nDOCUMENT TYPE: %s\n", docTypeHint)
	}

	b.WriteString("\nTEXT TO ANALYZE:\n")
	b.WriteString(pageText)

	b.WriteString(`

SEARCH FOR THESE VALUE TYPES:
1. Names (full names of people)
2. ID numbers (employee IDs, case numbers, etc.)
3. SSNs (social security numbers)
4. Birth dates
5. Phone numbers
6. Email addresses
7. Street addresses
8. Security codes and passwords
9. Financial amounts
10. Access codes

Return ONLY a JSON array with this exact structure:
[
  {
    "text": "exact sensitive value only",
    "category": "personal-identifying",
    "confidence": 0.95,
    "justification": "specific reason"
  }
]

The "category" field must be one of the category tags listed above.
IMPORTANT: Extract ONLY the sensitive values, NOT the field labels!`)

	return b.String()
}
