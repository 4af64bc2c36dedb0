// Package source models the raw items crawl workers hand to the pipeline. Each store has
// its own record layout; every layout is decoded into a typed variant that exposes the
// same Fields with explicit presence, so no untyped maps travel past the input boundary.
package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownStore  = errors.New("unknown_store")
	ErrMalformedItem = errors.New("malformed_item")
)

// Item is one raw record of a store.
type Item interface {
	StoreName() string
	Fields() Fields
}

// Fields is the store-independent view of a raw item. Nil pointers and unset Values mean
// the source did not supply the field.
type Fields struct {
	SourceID     *string
	Name         *string
	URL          *string
	Category     []string
	Price        Value
	UnitPrice    Value
	UnitLabel    *string
	Size         *string
	Currency     *string
	Availability *string
	Nutrition    json.RawMessage
}

// Value is a scalar that sources send either as a JSON number or as text.
type Value struct {
	Text    string
	Numeric bool
	Set     bool
}

func Text(s string) Value   { return Value{Text: s, Set: true} }
func Number(s string) Value { return Value{Text: s, Numeric: true, Set: true} }

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*v = Value{}
			return nil
		}
		*v = Text(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = Number(n.String())
	default:
		return fmt.Errorf("%w: expected number or string, got %s", ErrMalformedItem, data)
	}
	return nil
}

func (v Value) String() string {
	if !v.Set {
		return ""
	}
	return v.Text
}

// record holds the fields every crawler emits under the same names.
type record struct {
	Name         *string         `json:"name"`
	URL          *string         `json:"url"`
	Category     *string         `json:"category"`
	Subcategory  *string         `json:"subcategory"`
	Price        Value           `json:"price"`
	UnitPrice    Value           `json:"unit_price"`
	UnitLabel    *string         `json:"unit_quantity_abbrev"`
	Size         *string         `json:"size"`
	QuantityType *string         `json:"quantity_type"`
	Currency     *string         `json:"currency"`
	Nutrition    json.RawMessage `json:"nutrition"`
}

func (r record) fields() Fields {
	f := Fields{
		Name:      nonEmpty(r.Name),
		URL:       nonEmpty(r.URL),
		Price:     r.Price,
		UnitPrice: r.UnitPrice,
		UnitLabel: nonEmpty(r.UnitLabel),
		Size:      nonEmpty(r.Size),
		Currency:  nonEmpty(r.Currency),
	}
	if f.Size == nil {
		f.Size = nonEmpty(r.QuantityType)
	}
	if c := nonEmpty(r.Category); c != nil {
		f.Category = append(f.Category, *c)
	}
	if s := nonEmpty(r.Subcategory); s != nil {
		f.Category = append(f.Category, *s)
	}
	if n := bytes.TrimSpace(r.Nutrition); len(n) > 0 && !bytes.Equal(n, []byte("null")) {
		f.Nutrition = n
	}
	return f
}

// sourceID picks the first identifier present, falling back to the product URL.
func (f *Fields) sourceID(ids ...Value) {
	for _, id := range ids {
		if id.Set {
			s := strings.TrimSpace(id.Text)
			f.SourceID = &s
			return
		}
	}
	if f.URL != nil {
		s := *f.URL
		f.SourceID = &s
	}
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// availabilityToken turns a source availability value into a vocabulary token. Booleans are
// mapped to onTrue and onFalse; strings pass through; objects carry a code or description.
func availabilityToken(raw json.RawMessage, onTrue, onFalse string) (*string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var token string
	switch raw[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("%w: availability: %v", ErrMalformedItem, err)
		}
		token = onFalse
		if b {
			token = onTrue
		}
	case '"':
		if err := json.Unmarshal(raw, &token); err != nil {
			return nil, fmt.Errorf("%w: availability: %v", ErrMalformedItem, err)
		}
	case '{':
		var obj struct {
			Code             string `json:"code"`
			Description      string `json:"description"`
			DescriptionShort string `json:"descriptionShort"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("%w: availability: %v", ErrMalformedItem, err)
		}
		token = firstNonEmpty(obj.Code, obj.Description, obj.DescriptionShort)
	default:
		token = string(raw)
	}
	return nonEmpty(&token), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
