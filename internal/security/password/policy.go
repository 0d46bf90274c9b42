package password

import "unicode"

type Policy struct {
	MinLength    int
	RequireDigit bool
}

func (p Policy) Validate(s string) (ok bool, reasons []string) {
	if len([]rune(s)) < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	if p.RequireDigit {
		var hasD bool
		for _, r := range s {
			if unicode.IsDigit(r) {
				hasD = true
				break
			}
		}
		if !hasD {
			reasons = append(reasons, "missing_digit")
		}
	}
	return len(reasons) == 0, reasons
}
