package extract

import (
	"regexp"
	"strings"
)

var maskPrefix = regexp.MustCompile(`^[Xx*]+`)

// IsMasked reports whether ref hides leading digits behind X or *.
func IsMasked(ref string) bool {
	return maskPrefix.MatchString(ref)
}

// AccountMatches reports whether the account reference quoted in an
// alert denotes number. A masked reference only has its visible suffix
// compared against the same-length suffix of number.
func AccountMatches(ref, number string) bool {
	ref = strings.TrimSpace(ref)
	number = compactNumber(number)
	if ref == "" || number == "" {
		return false
	}

	if IsMasked(ref) {
		visible := maskPrefix.ReplaceAllString(ref, "")
		if visible == "" || len(visible) > len(number) {
			return false
		}
		return number[len(number)-len(visible):] == visible
	}

	return ref == number || (len(ref) >= 4 && strings.HasSuffix(number, ref))
}

// referencesAccount decides whether an alert is about the account. With
// no quoted reference the account's last four digits must appear.
func referencesAccount(text, ref, number string) bool {
	if ref != "" {
		return AccountMatches(ref, number)
	}
	number = compactNumber(number)
	if len(number) < 4 {
		return false
	}
	return strings.Contains(text, number[len(number)-4:])
}

func compactNumber(number string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(number))
}
