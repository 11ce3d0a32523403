package email

import (
	"strings"
	"unicode"
)

// DisplayNameFromEmail builds a "First Last" display name from the local part
// of an address. It is used when the identity provider returns a profile
// without a display name.
func DisplayNameFromEmail(email string) string {
	first, last := DeriveNameFromEmail(email)
	if last == "" {
		return first
	}
	return first + " " + last
}

// DeriveNameFromEmail splits the local part on '.', '_', '-' and '+' and
// capitalizes the first and last pieces. "jane.doe@x" gives ("Jane", "Doe").
func DeriveNameFromEmail(email string) (string, string) {
	localPart := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	switch len(parts) {
	case 0:
		return "User", ""
	case 1:
		return capitalize(parts[0]), ""
	default:
		return capitalize(parts[0]), capitalize(parts[len(parts)-1])
	}
}

func capitalize(s string) string {
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
