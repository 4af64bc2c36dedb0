package seed

import (
	"context"
	"testing"
	"time"

	"github.com/Kronixion/matval/internal/catalog/domain"
	"github.com/Kronixion/matval/internal/config"
	"github.com/Kronixion/matval/internal/identity"
	"github.com/Kronixion/matval/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestEnsureCatalogIsRepeatable(t *testing.T) {
	db := dbtest.Open(t, domain.Models()...)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, EnsureCatalog(ctx, db, config.DefaultStores(), now))
	require.NoError(t, EnsureCatalog(ctx, db, config.DefaultStores(), now.Add(time.Hour)))

	assert.EqualValues(t, 5, count(t, db, &domain.Store{}))
	assert.EqualValues(t, 4, count(t, db, &domain.AvailabilityStatus{}))
	assert.EqualValues(t, 3, count(t, db, &domain.Unit{}))
	assert.EqualValues(t, 3, count(t, db, &domain.QuantityType{}))
	assert.EqualValues(t, 1, count(t, db, &domain.Currency{}))

	var willys domain.Store
	require.NoError(t, db.First(&willys, "name = ?", "willys").Error)
	assert.Equal(t, "axfood-willys", willys.ChainID)
	assert.Equal(t, "Willys", willys.DisplayName)
	assert.True(t, willys.CreatedAt.Equal(now))
}

func TestEnsureCatalogRejectsChainChange(t *testing.T) {
	db := dbtest.Open(t, domain.Models()...)
	ctx := context.Background()
	stores := config.DefaultStores()
	require.NoError(t, EnsureCatalog(ctx, db, stores, time.Now().UTC()))

	coop := stores["coop"]
	coop.ChainID = "konsum-nord"
	stores["coop"] = coop

	err := EnsureCatalog(ctx, db, stores, time.Now().UTC())
	assert.ErrorIs(t, err, identity.ErrConflictingStore)
}
