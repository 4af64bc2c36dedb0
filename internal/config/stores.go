package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Availability status names of the closed canonical enumeration.
const (
	AvailabilityInStock                = "in_stock"
	AvailabilityTemporarilyUnavailable = "temporarily_unavailable"
	AvailabilityDiscontinued           = "discontinued"
	AvailabilityUnknown                = "unknown"
)

// AvailabilityStatuses lists every canonical availability status.
var AvailabilityStatuses = []string{
	AvailabilityInStock,
	AvailabilityTemporarilyUnavailable,
	AvailabilityDiscontinued,
	AvailabilityUnknown,
}

// StoreConfig carries the identity and normalization parameters of one source.
type StoreConfig struct {
	Name              string            `mapstructure:"-"`
	ChainID           string            `mapstructure:"chain_id"`
	DisplayName       string            `mapstructure:"display_name"`
	Currency          string            `mapstructure:"currency"`
	CategoryDelimiter string            `mapstructure:"category_delimiter"`
	Availability      map[string]string `mapstructure:"availability"`
}

// Stores is the static per-store configuration, keyed by store name.
type Stores map[string]StoreConfig

// Get returns the configuration for the named store.
func (s Stores) Get(name string) (StoreConfig, bool) {
	cfg, ok := s[strings.ToLower(strings.TrimSpace(name))]
	return cfg, ok
}

// Names returns the configured store names in sorted order.
func (s Stores) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupAvailability maps a source availability token onto the canonical enumeration.
// Matching is case-insensitive on the trimmed token.
func (c StoreConfig) LookupAvailability(token string) (string, bool) {
	status, ok := c.Availability[vocabKey(token)]
	return status, ok
}

// DefaultStores returns the built-in configuration for the five supported sources.
func DefaultStores() Stores {
	return Stores{
		"coop": {
			Name:              "coop",
			ChainID:           "coop-sverige",
			DisplayName:       "Coop",
			Currency:          "SEK",
			CategoryDelimiter: "/",
			Availability: map[string]string{
				"i lager":      AvailabilityInStock,
				"available":    AvailabilityInStock,
				"unavailable":  AvailabilityTemporarilyUnavailable,
				"slut i lager": AvailabilityTemporarilyUnavailable,
				"utgått":       AvailabilityDiscontinued,
			},
		},
		"hemkop": {
			Name:              "hemkop",
			ChainID:           "axfood-hemkop",
			DisplayName:       "Hemköp",
			Currency:          "SEK",
			CategoryDelimiter: "/",
			Availability:      axfoodVocabulary(),
		},
		"ica": {
			Name:              "ica",
			ChainID:           "ica-gruppen",
			DisplayName:       "ICA",
			Currency:          "SEK",
			CategoryDelimiter: "/",
			Availability: map[string]string{
				"available":   AvailabilityInStock,
				"unavailable": AvailabilityTemporarilyUnavailable,
			},
		},
		"mathem": {
			Name:              "mathem",
			ChainID:           "mathem",
			DisplayName:       "Mathem",
			Currency:          "SEK",
			CategoryDelimiter: "/",
			Availability: map[string]string{
				"available":               AvailabilityInStock,
				"temporarily_unavailable": AvailabilityTemporarilyUnavailable,
				"sold_out":                AvailabilityTemporarilyUnavailable,
				"discontinued":            AvailabilityDiscontinued,
				"unknown":                 AvailabilityUnknown,
			},
		},
		"willys": {
			Name:              "willys",
			ChainID:           "axfood-willys",
			DisplayName:       "Willys",
			Currency:          "SEK",
			CategoryDelimiter: "/",
			Availability:      axfoodVocabulary(),
		},
	}
}

func axfoodVocabulary() map[string]string {
	return map[string]string{
		"instock":     AvailabilityInStock,
		"outofstock":  AvailabilityTemporarilyUnavailable,
		"available":   AvailabilityInStock,
		"unavailable": AvailabilityTemporarilyUnavailable,
	}
}

// LoadStores reads stores.yml and overlays it on the built-in defaults. A missing file
// leaves the defaults in place; path, when set, is used instead of the search paths.
func LoadStores(path string) (Stores, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("stores")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/matval")
		v.AddConfigPath(".")
	}

	stores := DefaultStores()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read stores config: %w", err)
		}
		return stores, stores.Validate()
	}

	var overrides map[string]StoreConfig
	if err := v.UnmarshalKey("stores", &overrides); err != nil {
		return nil, fmt.Errorf("decode stores config: %w", err)
	}
	for rawName, override := range overrides {
		name := strings.ToLower(strings.TrimSpace(rawName))
		stores[name] = mergeStore(stores[name], name, override)
	}

	return stores, stores.Validate()
}

func mergeStore(base StoreConfig, name string, override StoreConfig) StoreConfig {
	base.Name = name
	if override.ChainID != "" {
		base.ChainID = override.ChainID
	}
	if override.DisplayName != "" {
		base.DisplayName = override.DisplayName
	}
	if override.Currency != "" {
		base.Currency = override.Currency
	}
	if override.CategoryDelimiter != "" {
		base.CategoryDelimiter = override.CategoryDelimiter
	}
	vocab := make(map[string]string, len(base.Availability)+len(override.Availability))
	for token, status := range base.Availability {
		vocab[vocabKey(token)] = status
	}
	for token, status := range override.Availability {
		vocab[vocabKey(token)] = strings.ToLower(strings.TrimSpace(status))
	}
	base.Availability = vocab
	return base
}

// Validate checks every store entry once at load time.
func (s Stores) Validate() error {
	if len(s) == 0 {
		return errors.New("stores config cannot be empty")
	}
	var errs []error
	for _, name := range s.Names() {
		cfg := s[name]
		if cfg.ChainID == "" {
			errs = append(errs, fmt.Errorf("store %s: chain_id is required", name))
		}
		if len(cfg.Currency) != 3 || strings.ToUpper(cfg.Currency) != cfg.Currency {
			errs = append(errs, fmt.Errorf("store %s: currency %q must be an upper-case ISO 4217 code", name, cfg.Currency))
		}
		if cfg.CategoryDelimiter == "" {
			errs = append(errs, fmt.Errorf("store %s: category_delimiter is required", name))
		}
		for token, status := range cfg.Availability {
			if !isAvailabilityStatus(status) {
				errs = append(errs, fmt.Errorf("store %s: availability %q maps to unknown status %q", name, token, status))
			}
		}
	}
	return errors.Join(errs...)
}

func isAvailabilityStatus(status string) bool {
	for _, known := range AvailabilityStatuses {
		if status == known {
			return true
		}
	}
	return false
}

func vocabKey(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}
