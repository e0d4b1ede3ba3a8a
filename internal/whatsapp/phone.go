package whatsapp

import "strings"

// FormatPhone normalizes a stored phone number into the digits-only form the
// Graph API expects. Ten-digit local numbers get the default country code
// prefixed; anything longer is assumed to carry its code already.
func FormatPhone(raw, defaultCountryCode string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 10 && defaultCountryCode != "" {
		return defaultCountryCode + digits
	}
	return digits
}
