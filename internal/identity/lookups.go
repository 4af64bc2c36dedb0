package identity

import "github.com/Kronixion/matval/internal/config"

var availabilityDescriptions = map[string]string{
	config.AvailabilityInStock:                "Available for purchase",
	config.AvailabilityTemporarilyUnavailable: "Out of stock, expected back",
	config.AvailabilityDiscontinued:           "No longer sold by the store",
	config.AvailabilityUnknown:                "Source did not report availability",
}

var currencyNames = map[string]string{
	"SEK": "Swedish krona",
	"NOK": "Norwegian krone",
	"DKK": "Danish krone",
	"EUR": "Euro",
	"USD": "US dollar",
}

func AvailabilityDescription(status string) string {
	return availabilityDescriptions[status]
}

// CurrencyName returns the English name of an ISO 4217 code, or the code itself.
func CurrencyName(code string) string {
	if name, ok := currencyNames[code]; ok {
		return name
	}
	return code
}
