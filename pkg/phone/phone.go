// Package phone normalizes Kenyan MSISDNs into the 2547XXXXXXXX form M-Pesa expects.
package phone

import (
	"regexp"
	"strings"
)

var canonical = regexp.MustCompile(`^254[0-9]{9}$`)

var stripper = strings.NewReplacer(" ", "", "\t", "", "\n", "", "\r", "", "-", "", "+", "")

// Validate reports whether raw is already in canonical 254XXXXXXXXX form.
func Validate(raw string) bool {
	return canonical.MatchString(raw)
}

// Format cleans raw and rewrites local prefixes to 254. The result is not
// validated; call Validate on it before sending it to the gateway.
func Format(raw string) string {
	s := stripper.Replace(raw)
	switch {
	case strings.HasPrefix(s, "0"):
		return "254" + s[1:]
	case strings.HasPrefix(s, "7"), strings.HasPrefix(s, "1"):
		return "254" + s
	}
	return s
}
