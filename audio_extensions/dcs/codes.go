package dcs

import (
	"fmt"
	"strconv"
	"strings"
)

// Standard DCS code numbers: the decimal values of the EIA/TIA-603 octal
// code table. 105 codes total. Users conventionally write these in octal
// with a "D" prefix and an optional "N" suffix for inverted polarity
// (D023 = decimal 19, D023N = the same code transmitted inverted).
var standardCodes = [...]uint16{
	19, 21, 22, 25, 26, 30, 35, 39, 41, 43, 44, 53,
	57, 58, 59, 60,
	76, 77, 78, 82, 85, 89, 90, 92, 99, 101, 106, 109,
	110, 114, 117, 122, 124,
	133, 138, 140, 147, 149, 150, 163, 164, 165, 166, 169, 170,
	173, 177, 179, 181, 182, 185, 188,
	198, 201, 205, 213, 217, 218, 227, 230, 233, 238, 244, 245, 249,
	265, 266, 267, 275, 281, 282, 293, 294, 298, 300, 301, 306, 308,
	309, 310,
	323, 326, 334, 339, 342, 346, 358, 373,
	390, 394, 404, 407, 409, 410, 428, 434, 436,
	451, 458, 467, 473, 474, 476, 483, 492,
}

// Membership table indexed by the 9-bit code number.
var standardSet [512]bool

func init() {
	for _, c := range standardCodes {
		standardSet[c] = true
	}
}

// IsStandardCode reports whether code is one of the 105 standard DCS codes.
func IsStandardCode(code int) bool {
	return code >= 0 && code < len(standardSet) && standardSet[code]
}

// StandardCodes returns a copy of the standard code table in decimal.
func StandardCodes() []uint16 {
	out := make([]uint16, len(standardCodes))
	copy(out, standardCodes[:])
	return out
}

// FormatCode renders a code in the conventional octal notation,
// e.g. FormatCode(19, false) = "D023", FormatCode(19, true) = "D023N".
func FormatCode(code int, inverted bool) string {
	s := fmt.Sprintf("D%03o", code)
	if inverted {
		s += "N"
	}
	return s
}

// ParseCode parses the conventional octal notation into a decimal code
// number and polarity flag. Accepts "023", "D023", "023N" and "D023N"
// (case-insensitive). The code must be one of the standard DCS codes.
func ParseCode(s string) (code int, inverted bool, err error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	t = strings.TrimPrefix(t, "D")
	if strings.HasSuffix(t, "N") {
		inverted = true
		t = strings.TrimSuffix(t, "N")
	}
	if t == "" {
		return 0, false, fmt.Errorf("empty DCS code %q", s)
	}

	v, perr := strconv.ParseUint(t, 8, 16)
	if perr != nil {
		return 0, false, fmt.Errorf("invalid octal DCS code %q: %w", s, perr)
	}
	if !IsStandardCode(int(v)) {
		return 0, false, fmt.Errorf("not a standard DCS code: %q", s)
	}
	return int(v), inverted, nil
}
