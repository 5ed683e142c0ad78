package capture

import "strings"

// RedactedValue replaces sensitive header values before persistence.
const RedactedValue = "[REDACTED]"

// RedactHeaders returns a copy of headers with the value of every key whose
// lower-cased form appears in deny replaced by RedactedValue. Key casing is
// preserved; the function is pure and idempotent.
func RedactHeaders(headers map[string]string, deny []string) map[string]string {
	denySet := make(map[string]struct{}, len(deny))
	for _, d := range deny {
		denySet[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}

	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if _, ok := denySet[strings.ToLower(k)]; ok {
			out[k] = RedactedValue
		} else {
			out[k] = v
		}
	}
	return out
}
