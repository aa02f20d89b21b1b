package phone

import "strings"

// CountryCode is the Brazilian country calling code prepended to every
// canonical number.
const CountryCode = "55"

// DefaultAreaCode is used when the input carries no area code of its own.
const DefaultAreaCode = "46"

// Normalize converts a raw Brazilian mobile number into the canonical
// dispatch form 55 + area code (2 digits) + local number (9 digits).
// It returns ("", false) for anything that cannot be a mobile number.
//
// Inputs with 10 or more digits (after stripping zeros and the country
// code) are always treated as carrying their own area code in the first
// two digits. This is a fixed policy, not a guess.
func Normalize(raw, defaultAreaCode string) (string, bool) {
	if defaultAreaCode == "" {
		defaultAreaCode = DefaultAreaCode
	}

	digits := onlyDigits(raw)
	if len(digits) < 8 {
		return "", false
	}

	digits = strings.TrimLeft(digits, "0")
	digits = strings.TrimPrefix(digits, CountryCode)

	var area, local string
	if len(digits) >= 10 {
		area = digits[:2]
		local = digits[2:]
	} else {
		area = defaultAreaCode
		local = digits
	}

	switch {
	case len(local) == 8:
		// Eight-digit locals predate the mobile "9" prefix.
		local = "9" + local
	case len(local) > 9:
		local = local[len(local)-9:]
	case len(local) < 8:
		return "", false
	}

	if len(area) != 2 {
		return "", false
	}

	return CountryCode + area + local, true
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
