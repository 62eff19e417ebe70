package domain

import (
	"fmt"
	"strings"
)

const (
	UserServer   = "s.whatsapp.net"
	LegacyServer = "c.us"
	GroupServer  = "g.us"
)

var phoneStripper = strings.NewReplacer("+", "", " ", "", "-", "", "(", "", ")", "", ".", "")

// NormalizeChatID turns a phone number or chat ID into a canonical chat ID.
//
// Input containing '@' is taken as a chat ID, with the legacy "@c.us" suffix
// rewritten to "@s.whatsapp.net". Anything else is treated as a phone number:
// formatting characters are stripped and the user server is appended.
func NormalizeChatID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty number", ErrInvalidRecipient)
	}

	if user, server, ok := strings.Cut(raw, "@"); ok {
		if user == "" || server == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidRecipient, raw)
		}
		if server == LegacyServer {
			server = UserServer
		}
		return user + "@" + server, nil
	}

	digits := phoneStripper.Replace(raw)
	if digits == "" || !isDigits(digits) {
		return "", fmt.Errorf("%w: %q is not a phone number", ErrInvalidRecipient, raw)
	}
	return digits + "@" + UserServer, nil
}

// PhoneUser returns the user part of a chat ID or JID, without any device or
// agent suffix ("1555:12@s.whatsapp.net" -> "1555").
func PhoneUser(chatID string) string {
	user, _, _ := strings.Cut(chatID, "@")
	user, _, _ = strings.Cut(user, ":")
	user, _, _ = strings.Cut(user, ".")
	return user
}

// NormalizePhone reduces a configured number to bare digits
func NormalizePhone(raw string) string {
	if strings.Contains(raw, "@") {
		return PhoneUser(raw)
	}
	return phoneStripper.Replace(strings.TrimSpace(raw))
}

// IsGroupChat reports whether the chat ID belongs to a group
func IsGroupChat(chatID string) bool {
	return strings.HasSuffix(chatID, "@"+GroupServer)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
