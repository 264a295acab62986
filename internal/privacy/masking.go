package privacy

import (
	"strings"

	"vetline/internal/constants"
)

// MaskPhoneNumber masks a phone number showing only the last digits.
// Example: "0501234567" -> "******4567"
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}

	keep := constants.DefaultPhoneMaskLength
	if strings.HasPrefix(phone, "+") {
		if len(phone) <= keep+1 {
			return "+" + strings.Repeat("*", len(phone)-1)
		}
		return "+" + strings.Repeat("*", len(phone)-keep-1) + phone[len(phone)-keep:]
	}

	if len(phone) <= keep {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-keep) + phone[len(phone)-keep:]
}

// MaskChatAddress masks a provider chat address while keeping the domain tag
// visible. Example: "972501234567@c.us" -> "********4567@c.us"
func MaskChatAddress(chatID string) string {
	if chatID == "" {
		return ""
	}

	at := strings.IndexByte(chatID, '@')
	if at < 0 {
		return MaskPhoneNumber(chatID)
	}
	return MaskPhoneNumber(chatID[:at]) + chatID[at:]
}
