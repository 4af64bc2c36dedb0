package normalize

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type QuantityType string

const (
	QuantityWeight QuantityType = "weight"
	QuantityVolume QuantityType = "volume"
	QuantityCount  QuantityType = "count"
)

// UnitSpec is a standard unit that unit prices are expressed per.
type UnitSpec struct {
	Name         string
	Abbreviation string
	QuantityType QuantityType
}

var (
	UnitKilogram = UnitSpec{Name: "kilogram", Abbreviation: "kg", QuantityType: QuantityWeight}
	UnitLitre    = UnitSpec{Name: "litre", Abbreviation: "l", QuantityType: QuantityVolume}
	UnitPiece    = UnitSpec{Name: "piece", Abbreviation: "st", QuantityType: QuantityCount}
)

// StandardUnits lists every unit a canonical item can refer to.
var StandardUnits = []UnitSpec{UnitKilogram, UnitLitre, UnitPiece}

// CanonicalItem is a raw item after normalization. Optional fields are nil when the source
// did not supply them or they could not be derived unambiguously.
type CanonicalItem struct {
	Store          string
	SourceID       string
	Name           string
	NormalizedName string
	URL            string
	CategoryPath   []string

	Price        decimal.Decimal
	Currency     string
	UnitPrice    *decimal.Decimal
	Unit         *UnitSpec
	UnitQuantity *decimal.Decimal
	QuantityType QuantityType

	Availability string
	Nutrition    json.RawMessage
}
