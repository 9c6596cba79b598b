package client

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Number decodes backend decimals, which arrive either as JSON numbers or as
// strings such as "199000.00". It always encodes as a JSON number.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid number %s", b)
	}
	*n = Number(f)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(n), 'f', -1, 64)), nil
}

func (n Number) Float() float64 { return float64(n) }
