package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStoresValidate(t *testing.T) {
	stores := DefaultStores()
	require.NoError(t, stores.Validate())
	assert.Equal(t, []string{"coop", "hemkop", "ica", "mathem", "willys"}, stores.Names())
}

func TestLookupAvailabilityIsCaseInsensitive(t *testing.T) {
	coop, ok := DefaultStores().Get("Coop")
	require.True(t, ok)

	status, ok := coop.LookupAvailability("  I lager ")
	require.True(t, ok)
	assert.Equal(t, AvailabilityInStock, status)

	_, ok = coop.LookupAvailability("Tillfälligt slut")
	assert.False(t, ok)
}

func TestLoadStoresOverlaysFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stores.yml")
	content := `
stores:
  coop:
    availability:
      Tillfälligt slut: temporarily_unavailable
  lidl:
    chain_id: lidl-sverige
    display_name: Lidl
    currency: SEK
    category_delimiter: ">"
    availability:
      in stock: in_stock
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	stores, err := LoadStores(path)
	require.NoError(t, err)

	coop, ok := stores.Get("coop")
	require.True(t, ok)
	assert.Equal(t, "coop-sverige", coop.ChainID)
	status, ok := coop.LookupAvailability("tillfälligt slut")
	require.True(t, ok)
	assert.Equal(t, AvailabilityTemporarilyUnavailable, status)
	status, ok = coop.LookupAvailability("I lager")
	require.True(t, ok)
	assert.Equal(t, AvailabilityInStock, status)

	lidl, ok := stores.Get("lidl")
	require.True(t, ok)
	assert.Equal(t, ">", lidl.CategoryDelimiter)
	assert.Equal(t, "lidl", lidl.Name)
}

func TestLoadStoresRejectsUnknownStatus(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stores.yml")
	content := `
stores:
  ica:
    availability:
      backorder: maybe_later
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := LoadStores(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maybe_later")
}
