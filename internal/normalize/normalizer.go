package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/Kronixion/matval/internal/config"
	"github.com/Kronixion/matval/internal/source"
)

// Normalizer turns raw store items into canonical items. It is pure: the result depends
// only on the item and the store configuration it was built with.
type Normalizer struct {
	stores config.Stores
}

func New(stores config.Stores) *Normalizer {
	return &Normalizer{stores: stores}
}

func (n *Normalizer) Normalize(item source.Item) (CanonicalItem, error) {
	storeName := strings.ToLower(strings.TrimSpace(item.StoreName()))
	store, ok := n.stores.Get(storeName)
	if !ok {
		return CanonicalItem{}, &Error{Store: storeName, Field: "store", Value: item.StoreName(), Err: ErrUnknownStore}
	}

	f := item.Fields()
	out := CanonicalItem{Store: store.Name}
	fail := func(field, value string, err error) (CanonicalItem, error) {
		return CanonicalItem{}, &Error{Store: store.Name, SourceID: out.SourceID, Field: field, Value: value, Err: err}
	}

	if f.Name == nil {
		return fail("name", "", ErrMissingField)
	}
	out.Name = cleanName(*f.Name)
	out.NormalizedName = NormalizeName(*f.Name)
	if f.URL != nil {
		out.URL = *f.URL
	}

	path := splitCategory(f.Category, store.CategoryDelimiter)
	if len(path) == 0 {
		return fail("category", "", ErrMissingField)
	}
	out.CategoryPath = path

	if f.SourceID != nil {
		out.SourceID = *f.SourceID
	} else {
		out.SourceID = derivedSourceID(out.NormalizedName, path)
	}

	out.Currency = store.Currency
	if f.Currency != nil {
		code, ok := normalizeCurrency(*f.Currency)
		if !ok || code != store.Currency {
			return fail("currency", *f.Currency, ErrCurrencyMismatch)
		}
	}

	if !f.Price.Set {
		return fail("price", "", ErrMissingField)
	}
	price, err := parseAmount(f.Price)
	if err != nil {
		return fail("price", f.Price.String(), ErrInvalidPrice)
	}
	if price.currency != "" && price.currency != store.Currency {
		return fail("price", f.Price.String(), ErrCurrencyMismatch)
	}
	out.Price = price.value.Round(priceScale)

	if err := n.unitPrice(&out, f, store.Currency); err != nil {
		return fail("unit_price", f.UnitPrice.String(), err)
	}

	out.Availability = config.AvailabilityUnknown
	if f.Availability != nil {
		status, ok := store.LookupAvailability(*f.Availability)
		if !ok {
			return fail("availability", *f.Availability, ErrUnknownAvailabilityStatus)
		}
		out.Availability = status
	}

	if f.Nutrition != nil {
		canonical, err := canonicalJSON(f.Nutrition)
		if err != nil {
			return fail("nutrition", "", ErrInvalidNutrition)
		}
		out.Nutrition = canonical
	}

	return out, nil
}

// unitPrice fills the unit price, unit and package quantity. An explicit unit price with a
// recognisable unit label wins; otherwise the unit price is derived from the package size.
// When neither is possible the fields stay nil.
func (n *Normalizer) unitPrice(out *CanonicalItem, f source.Fields, currency string) error {
	size, sized := quantity{}, false
	if f.Size != nil {
		size, sized = parseSize(*f.Size)
	}

	if f.UnitPrice.Set {
		explicit, err := parseAmount(f.UnitPrice)
		if errors.Is(err, errNegative) {
			return ErrInvalidPrice
		}
		if err == nil && explicit.currency != "" && explicit.currency != currency {
			return ErrCurrencyMismatch
		}
		label := explicit.label
		if f.UnitLabel != nil {
			label = *f.UnitLabel
		}
		if per, ok := parseUnitLabel(label); err == nil && ok {
			perStandard := explicit.value.DivRound(per.value, unitPriceScale)
			unit := per.unit
			out.UnitPrice = &perStandard
			out.Unit = &unit
			out.QuantityType = unit.QuantityType
			if sized && size.unit == unit {
				q := size.value.Round(unitPriceScale)
				out.UnitQuantity = &q
			}
			return nil
		}
	}

	if !sized {
		return nil
	}
	derived := out.Price.DivRound(size.value, unitPriceScale)
	q := size.value.Round(unitPriceScale)
	unit := size.unit
	out.UnitPrice = &derived
	out.UnitQuantity = &q
	out.Unit = &unit
	out.QuantityType = unit.QuantityType
	return nil
}

// derivedSourceID keys an item that carries neither a native id nor a URL on its product
// identity, so repeated sightings land on the same listing.
func derivedSourceID(normalizedName string, path []string) string {
	segments := make([]string, len(path))
	for i, seg := range path {
		segments[i] = NormalizeName(seg)
	}
	return normalizedName + "@" + strings.Join(segments, "/")
}

// splitCategory flattens breadcrumb parts into path segments. Segments are trimmed but
// empty ones are kept so a malformed path is rejected where categories are resolved.
func splitCategory(parts []string, delimiter string) []string {
	if delimiter == "" {
		delimiter = "/"
	}
	var path []string
	for _, part := range parts {
		for _, seg := range strings.Split(part, delimiter) {
			path = append(path, strings.Join(strings.Fields(seg), " "))
		}
	}
	return path
}

// canonicalJSON re-encodes a JSON document with sorted object keys and no insignificant
// whitespace, so equal documents compare equal byte for byte.
func canonicalJSON(raw json.RawMessage) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, ErrInvalidNutrition
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return out, nil
}
