package emit

import (
	"fmt"
	"strings"
)

const (
	cardWidth  = 80
	cardIndent = "        "
)

// sci formats v in scientific notation with precision mantissa decimals and
// an exponent zero-padded to at least expPad digits, e.g. sci(1173.2e-3, 5, 2)
// gives "1.17320e+00".
func sci(v float64, precision, expPad int) string {
	s := fmt.Sprintf("%.*e", precision, v)
	mantissa, exp, ok := strings.Cut(s, "e")
	if !ok {
		// Inf and NaN have no exponent
		return s
	}
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	if len(digits) < expPad {
		digits = strings.Repeat("0", expPad-len(digits)) + digits
	}
	return mantissa + "e" + sign + digits
}

// wrapCard lays out an MCNP card: prefix followed by tokens separated by single
// spaces, wrapped so no line exceeds width where possible. Continuation lines
// start with indent. Tokens are never split, so a token longer than the
// available space overflows on a line of its own.
func wrapCard(prefix string, tokens []string, width int, indent string) string {
	var lines []string
	line := strings.TrimRight(prefix, " ")
	// the prefix keeps its own padding before the first token
	sep := prefix[len(line):]
	if sep == "" {
		sep = " "
	}

	for _, tok := range tokens {
		switch {
		case tok == "":
			continue
		case line == "":
			line = tok
		case len(line)+len(sep)+len(tok) > width:
			lines = append(lines, line)
			line = indent + tok
		default:
			line += sep + tok
		}
		sep = " "
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}
