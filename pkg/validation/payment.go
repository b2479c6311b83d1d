package validation

import (
	"regexp"
	"strings"
	"time"
)

// ExpiryWindowYears bounds how far in the future a card expiry may be.
const ExpiryWindowYears = 20

var (
	cardHolderPattern = regexp.MustCompile(`^[A-Za-z]+(?:\s+[A-Za-z]+)*$`)
	cvvPattern        = regexp.MustCompile(`^\d{3,4}$`)
	cardDigits        = regexp.MustCompile(`^\d{12,19}$`)
)

// NormalizeCardNumber strips the spaces and dashes shoppers type between digit groups.
func NormalizeCardNumber(number string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(number))
}

// Luhn reports whether number is 12 to 19 digits with a valid mod-10 checksum.
func Luhn(number string) bool {
	digits := NormalizeCardNumber(number)
	if !cardDigits.MatchString(digits) {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func ValidCardHolder(name string) bool {
	return cardHolderPattern.MatchString(strings.TrimSpace(name))
}

func ValidCVV(cvv string) bool {
	return cvvPattern.MatchString(strings.TrimSpace(cvv))
}

func ValidUPI(id string) bool {
	return strings.Contains(strings.TrimSpace(id), "@")
}

// ValidExpiry accepts month 1-12 and a four-digit year within [now, now+20], rejecting months already past.
func ValidExpiry(month, year int, now time.Time) bool {
	if month < 1 || month > 12 {
		return false
	}
	current := now.Year()
	if year < current || year > current+ExpiryWindowYears {
		return false
	}
	if year == current && month < int(now.Month()) {
		return false
	}
	return true
}
