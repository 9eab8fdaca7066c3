package ussd

import "strings"

// Split turns the gateway's raw accumulated text into the ordered list of
// user entries for the session. Splitting is total: any input, including the
// empty string, yields a valid (possibly empty) sequence. Tokens are trimmed
// and empty tokens dropped; nothing is reordered.
func Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts := strings.Split(text, "*")
	entries := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			entries = append(entries, p)
		}
	}
	return entries
}
