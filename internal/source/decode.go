package source

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Decode parses one JSON record emitted by the crawler of store.
func Decode(store string, line []byte) (Item, error) {
	store = strings.ToLower(strings.TrimSpace(store))
	if store == "" {
		return nil, ErrUnknownStore
	}

	var (
		item Item
		err  error
	)
	switch store {
	case "coop":
		var v CoopItem
		err = json.Unmarshal(line, &v)
		item = v
	case "hemkop", "willys":
		v := AxfoodItem{Store: store}
		err = json.Unmarshal(line, &v)
		v.Store = store
		item = v
	case "ica":
		var v ICAItem
		err = json.Unmarshal(line, &v)
		item = v
	case "mathem":
		var v MathemItem
		err = json.Unmarshal(line, &v)
		item = v
	default:
		v := GenericItem{Store: store}
		err = json.Unmarshal(line, &v)
		v.Store = store
		item = v
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedItem, store, err)
	}
	return item, nil
}
