package policy

import "regexp"

// Chat turns are persisted verbatim, so the obvious high-risk identifiers a
// mortgage applicant might type are masked before a turn leaves the process.
var (
	emailPattern    = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern    = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern     = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	sortCodePattern = regexp.MustCompile(`\b\d{2}-\d{2}-\d{2}\b`)
	ninoPattern     = regexp.MustCompile(`\b[A-CEGHJ-PR-TW-Z]{2}\s?\d{2}\s?\d{2}\s?\d{2}\s?[A-D]\b`)
)

// RedactTurn masks common high-risk identifiers before persistence.
func RedactTurn(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	next = ninoPattern.ReplaceAllString(out, "[REDACTED_NINO]")
	changed = changed || next != out
	out = next

	// Card redaction runs before phone so long digit runs are not classified
	// as phone numbers.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = sortCodePattern.ReplaceAllString(out, "[REDACTED_SORT_CODE]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}
