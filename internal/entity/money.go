package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// Cents is a fixed-point monetary amount in hundredths of a currency
// unit. Arithmetic stays in int64; the JSON form is a decimal string
// with exactly two fractional digits, e.g. "140.00".
type Cents int64

// CentsFromUnits converts whole currency units to Cents.
func CentsFromUnits(units int64) Cents {
	return Cents(units * 100)
}

// Mul scales the amount by an integer factor.
func (c Cents) Mul(n int) Cents {
	return c * Cents(n)
}

func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON renders the amount as a quoted decimal string.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// UnmarshalJSON accepts a quoted decimal string with two fractional digits.
func (c *Cents) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	whole, frac, ok := strings.Cut(s, ".")
	if !ok || len(frac) != 2 {
		return fmt.Errorf("invalid money amount %q", s)
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid money amount %q", s)
	}
	hundredths, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid money amount %q", s)
	}
	v := units*100 + hundredths
	if neg {
		v = -v
	}
	*c = Cents(v)
	return nil
}
