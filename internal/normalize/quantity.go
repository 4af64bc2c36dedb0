package normalize

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// unitFactor expresses a source unit in a standard unit.
type unitFactor struct {
	unit   UnitSpec
	factor decimal.Decimal
}

var sourceUnits = map[string]unitFactor{
	"mg":    {UnitKilogram, decimal.New(1, -6)},
	"g":     {UnitKilogram, decimal.New(1, -3)},
	"gr":    {UnitKilogram, decimal.New(1, -3)},
	"gram":  {UnitKilogram, decimal.New(1, -3)},
	"hg":    {UnitKilogram, decimal.New(1, -1)},
	"kg":    {UnitKilogram, decimal.New(1, 0)},
	"kilo":  {UnitKilogram, decimal.New(1, 0)},
	"ml":    {UnitLitre, decimal.New(1, -3)},
	"cl":    {UnitLitre, decimal.New(1, -2)},
	"dl":    {UnitLitre, decimal.New(1, -1)},
	"l":     {UnitLitre, decimal.New(1, 0)},
	"lit":   {UnitLitre, decimal.New(1, 0)},
	"liter": {UnitLitre, decimal.New(1, 0)},
	"litre": {UnitLitre, decimal.New(1, 0)},
	"st":    {UnitPiece, decimal.New(1, 0)},
	"styck": {UnitPiece, decimal.New(1, 0)},
	"stk":   {UnitPiece, decimal.New(1, 0)},
	"pcs":   {UnitPiece, decimal.New(1, 0)},
	"pack":  {UnitPiece, decimal.New(1, 0)},
	"förp":  {UnitPiece, decimal.New(1, 0)},
}

var (
	sizePattern  = regexp.MustCompile(`^(?:(\d+)\s*[x×]\s*)?(\d+(?:[.,]\d+)?)\s*([a-zåäö]+)\.?$`)
	labelPattern = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)?\s*([a-zåäö]+)\.?$`)
)

// quantity is a package size converted to a standard unit.
type quantity struct {
	unit  UnitSpec
	value decimal.Decimal
}

// parseSize reads package sizes such as "1 L", "500 g", "2 x 500 g" or "6 st". Approximate
// ("ca 500 g", "~1 kg") and ranged ("400-500 g") sizes are rejected because dividing by
// them would invent a precision the source does not have.
func parseSize(raw string) (quantity, bool) {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" || isApproximate(text) {
		return quantity{}, false
	}

	m := sizePattern.FindStringSubmatch(text)
	if m == nil {
		return quantity{}, false
	}
	uf, ok := sourceUnits[m[3]]
	if !ok {
		return quantity{}, false
	}

	value, err := decimal.NewFromString(strings.Replace(m[2], ",", ".", 1))
	if err != nil {
		return quantity{}, false
	}
	if m[1] != "" {
		count, err := decimal.NewFromString(m[1])
		if err != nil {
			return quantity{}, false
		}
		value = value.Mul(count)
	}
	value = value.Mul(uf.factor)
	if !value.IsPositive() {
		return quantity{}, false
	}
	return quantity{unit: uf.unit, value: value}, true
}

func isApproximate(text string) bool {
	if strings.HasPrefix(text, "ca") || strings.HasPrefix(text, "~") || strings.HasPrefix(text, "cirka") {
		return true
	}
	return strings.ContainsAny(text, "-–")
}

// parseUnitLabel reads the unit a price is quoted per ("kg", "kr/kg", "/l", "100g", "st")
// and returns the standard unit together with how many standard units the label covers.
func parseUnitLabel(raw string) (quantity, bool) {
	text := strings.ToLower(strings.TrimSpace(raw))
	if idx := strings.LastIndex(text, "/"); idx >= 0 {
		text = text[idx+1:]
	}
	text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "kr"))
	if text == "" {
		return quantity{}, false
	}

	m := labelPattern.FindStringSubmatch(text)
	if m == nil {
		return quantity{}, false
	}
	uf, ok := sourceUnits[m[2]]
	if !ok {
		return quantity{}, false
	}
	per := decimal.New(1, 0)
	if m[1] != "" {
		n, err := decimal.NewFromString(strings.Replace(m[1], ",", ".", 1))
		if err != nil || !n.IsPositive() {
			return quantity{}, false
		}
		per = n
	}
	return quantity{unit: uf.unit, value: per.Mul(uf.factor)}, true
}
