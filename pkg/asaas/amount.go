package asaas

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a currency value that tolerates whatever the provider sends:
// JSON numbers and numeric strings decode normally, while missing, null or
// non-numeric values decode to zero instead of failing the request.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		a.Decimal = decimal.Zero
		return nil
	}
	s = strings.Trim(s, `"`)
	d, err := decimal.NewFromString(s)
	if err != nil {
		a.Decimal = decimal.Zero
		return nil
	}
	a.Decimal = d
	return nil
}
