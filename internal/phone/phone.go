// Package phone canonicalizes the heterogeneous phone representations seen
// across the provider, the clients table and the leads table into one
// comparable key. Identity matching silently fails unless every path runs raw
// phone strings through the same normalization, so this is the only place
// allowed to interpret a phone string.
package phone

import (
	"strings"

	"vetline/internal/constants"
)

// Normalize produces the canonical digit-only key for an arbitrary phone
// string: provider chat-address suffixes ("@c.us", "@g.us") and separators
// are stripped, a leading country calling code is replaced with the trunk
// digit, and a bare subscriber number gains the trunk digit. Empty or
// unparseable input normalizes to "", which is "no key" and must never be
// used to match.
func Normalize(raw string) string {
	s := raw
	if at := strings.IndexByte(s, '@'); at >= 0 {
		s = s[:at]
	}

	digits := digitsOnly(s)
	if digits == "" {
		return ""
	}

	if strings.HasPrefix(digits, constants.CountryCallingCode) &&
		len(digits) > len(constants.CountryCallingCode) {
		digits = constants.TrunkDigit + digits[len(constants.CountryCallingCode):]
	}

	if len(digits) == constants.SubscriberNumberLen &&
		!strings.HasPrefix(digits, constants.TrunkDigit) {
		digits = constants.TrunkDigit + digits
	}

	return digits
}

// Last9 returns the suffix used for widened matching at the persistence
// boundary, where the backend query cannot apply Normalize. Empty when the
// input carries fewer usable digits than the suffix length.
func Last9(raw string) string {
	digits := digitsOnly(stripChatSuffix(raw))
	if len(digits) < constants.PhoneSuffixMatchLen {
		return ""
	}
	return digits[len(digits)-constants.PhoneSuffixMatchLen:]
}

// ChatAddress converts a normalized local number into the provider's
// phone-number-addressed chat id (international digits plus the provider
// domain tag).
func ChatAddress(normalized string) string {
	digits := digitsOnly(normalized)
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(digits, constants.TrunkDigit) {
		digits = constants.CountryCallingCode + digits[len(constants.TrunkDigit):]
	} else if !strings.HasPrefix(digits, constants.CountryCallingCode) {
		digits = constants.CountryCallingCode + digits
	}
	return digits + "@c.us"
}

// DigitsOnly strips everything but digits. Exposed for the store layer,
// which keeps raw digit columns for suffix matching.
func DigitsOnly(raw string) string {
	return digitsOnly(stripChatSuffix(raw))
}

func stripChatSuffix(s string) string {
	if at := strings.IndexByte(s, '@'); at >= 0 {
		return s[:at]
	}
	return s
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
