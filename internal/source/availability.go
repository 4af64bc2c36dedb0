package source

import "encoding/json"

// AvailableFlag decodes an availability value where true means the item can be bought.
type AvailableFlag struct{ token *string }

func (a *AvailableFlag) UnmarshalJSON(data []byte) error {
	token, err := availabilityToken(json.RawMessage(data), "available", "unavailable")
	a.token = token
	return err
}

// OutOfStockFlag decodes an availability value where true means the item is sold out.
type OutOfStockFlag struct{ token *string }

func (a *OutOfStockFlag) UnmarshalJSON(data []byte) error {
	token, err := availabilityToken(json.RawMessage(data), "outofstock", "instock")
	a.token = token
	return err
}
