package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Kronixion/matval/internal/cache"
	"github.com/Kronixion/matval/internal/catalog/domain"
	"github.com/Kronixion/matval/internal/catalog/repository"
	"github.com/Kronixion/matval/internal/clock"
	"github.com/Kronixion/matval/internal/config"
	"github.com/Kronixion/matval/internal/normalize"
	"github.com/Kronixion/matval/pkg/db/dbtest"
	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newResolver(t *testing.T, nodeID int64) (*Resolver, cache.IdentityCache) {
	t.Helper()
	node, err := snowflake.NewNode(nodeID)
	require.NoError(t, err)
	c := cache.NewIdentityCache(cache.IdentityCacheParams{Log: zap.NewNop()})
	r := New(Params{
		Repo:   repository.Provide(),
		Stores: config.DefaultStores(),
		GenID:  node,
		Clock:  clock.NewFakeClock(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)),
		Cache:  c,
		Log:    zap.NewNop(),
	})
	return r, c
}

func milk() normalize.CanonicalItem {
	unitPrice := decimal.RequireFromString("18.9")
	quantity := decimal.NewFromInt(1)
	unit := normalize.UnitLitre
	return normalize.CanonicalItem{
		Store:          "coop",
		SourceID:       "7310865004703",
		Name:           "Ekologisk Mjölk 1L",
		NormalizedName: "ekologisk mjölk 1l",
		CategoryPath:   []string{"Mejeri", "Mjölk"},
		Price:          decimal.RequireFromString("18.90"),
		Currency:       "SEK",
		UnitPrice:      &unitPrice,
		Unit:           &unit,
		UnitQuantity:   &quantity,
		QuantityType:   normalize.QuantityVolume,
		Availability:   config.AvailabilityInStock,
	}
}

func resolveCommitted(t *testing.T, db *gorm.DB, r *Resolver, item normalize.CanonicalItem) *Identity {
	t.Helper()
	ctx := context.Background()
	var id *Identity
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		id, err = r.Resolve(ctx, tx, item)
		return err
	})
	require.NoError(t, err)
	r.Remember(ctx, id)
	return id
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestResolveCreatesEveryRow(t *testing.T) {
	db := dbtest.Open(t, domain.Models()...)
	r, _ := newResolver(t, 1)

	id := resolveCommitted(t, db, r, milk())

	assert.NotZero(t, id.StoreID)
	assert.NotZero(t, id.ProductID)
	assert.NotZero(t, id.AvailabilityStatusID)
	require.NotNil(t, id.UnitID)
	require.NotNil(t, id.QuantityTypeID)
	assert.Equal(t, "SEK", id.CurrencyCode)

	var store domain.Store
	require.NoError(t, db.First(&store, "id = ?", id.StoreID).Error)
	assert.Equal(t, "coop", store.Name)
	assert.Equal(t, "coop-sverige", store.ChainID)

	var categories []domain.Category
	require.NoError(t, db.Order("depth").Find(&categories).Error)
	require.Len(t, categories, 2)
	assert.Equal(t, "mejeri", categories[0].Path)
	assert.Nil(t, categories[0].ParentID)
	assert.Equal(t, "mejeri/"+slug.MakeLang("Mjölk", "sv"), categories[1].Path)
	assert.Equal(t, "Mjölk", categories[1].Name)
	require.NotNil(t, categories[1].ParentID)
	assert.Equal(t, categories[0].ID, *categories[1].ParentID)
	assert.Equal(t, categories[1].ID, id.CategoryID)

	var unit domain.Unit
	require.NoError(t, db.First(&unit, "id = ?", *id.UnitID).Error)
	assert.Equal(t, "l", unit.Abbreviation)

	var currency domain.Currency
	require.NoError(t, db.First(&currency, "code = ?", "SEK").Error)
	assert.Equal(t, "Swedish krona", currency.Name)
}

func TestResolveIsIdempotent(t *testing.T) {
	db := dbtest.Open(t, domain.Models()...)
	r, _ := newResolver(t, 1)

	first := resolveCommitted(t, db, r, milk())
	second := resolveCommitted(t, db, r, milk())

	// A second process without a warm cache converges on the same rows.
	cold, _ := newResolver(t, 2)
	third := resolveCommitted(t, db, cold, milk())

	for _, id := range []*Identity{second, third} {
		assert.Equal(t, first.StoreID, id.StoreID)
		assert.Equal(t, first.CategoryID, id.CategoryID)
		assert.Equal(t, first.ProductID, id.ProductID)
		assert.Equal(t, *first.UnitID, *id.UnitID)
		assert.Equal(t, first.AvailabilityStatusID, id.AvailabilityStatusID)
	}
	assert.EqualValues(t, 1, count(t, db, &domain.Store{}))
	assert.EqualValues(t, 2, count(t, db, &domain.Category{}))
	assert.EqualValues(t, 1, count(t, db, &domain.Product{}))
	assert.EqualValues(t, 1, count(t, db, &domain.Unit{}))
	assert.EqualValues(t, 1, count(t, db, &domain.Currency{}))
}

func TestResolveSameNameInOtherCategoryIsAnotherProduct(t *testing.T) {
	db := dbtest.Open(t, domain.Models()...)
	r, _ := newResolver(t, 1)

	dairy := resolveCommitted(t, db, r, milk())
	other := milk()
	other.CategoryPath = []string{"Mejeri", "Laktosfritt"}
	lactoseFree := resolveCommitted(t, db, r, other)

	assert.NotEqual(t, dairy.ProductID, lactoseFree.ProductID)
	assert.NotEqual(t, dairy.CategoryID, lactoseFree.CategoryID)
	assert.EqualValues(t, 3, count(t, db, &domain.Category{}))
}

func TestResolveWithoutUnit(t *testing.T) {
	db := dbtest.Open(t, domain.Models()...)
	r, _ := newResolver(t, 1)

	item := milk()
	item.UnitPrice, item.Unit, item.UnitQuantity, item.QuantityType = nil, nil, nil, ""
	id := resolveCommitted(t, db, r, item)

	assert.Nil(t, id.UnitID)
	assert.Nil(t, id.QuantityTypeID)
	assert.EqualValues(t, 0, count(t, db, &domain.Unit{}))
}

func TestResolveMalformedCategoryPath(t *testing.T) {
	db := dbtest.Open(t, domain.Models()...)
	r, _ := newResolver(t, 1)

	for _, path := range [][]string{{"Mejeri", "", "Mjölk"}, {"%%"}, nil} {
		item := milk()
		item.CategoryPath = path
		err := db.Transaction(func(tx *gorm.DB) error {
			_, err := r.Resolve(context.Background(), tx, item)
			return err
		})
		require.ErrorIs(t, err, ErrMalformedCategoryPath)

		var rerr *ResolutionError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, "category", rerr.Entity)
	}
	assert.EqualValues(t, 0, count(t, db, &domain.Category{}))
}

func TestResolveConflictingStore(t *testing.T) {
	db := dbtest.Open(t, domain.Models()...)
	r, _ := newResolver(t, 1)
	require.NoError(t, db.Create(&domain.Store{
		ID: 42, Name: "coop", ChainID: "konsum-nord", DisplayName: "Coop", CreatedAt: time.Now().UTC(),
	}).Error)

	_, err := r.Resolve(context.Background(), db, milk())
	require.ErrorIs(t, err, ErrConflictingStore)

	var rerr *ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "coop", rerr.Store)
}

func TestResolveCategoryParentConflict(t *testing.T) {
	db := dbtest.Open(t, domain.Models()...)
	r, _ := newResolver(t, 1)
	store := &domain.Store{ID: 42, Name: "coop", ChainID: "coop-sverige", DisplayName: "Coop", CreatedAt: time.Now().UTC()}
	require.NoError(t, db.Create(store).Error)
	// A leaf recorded at the root although its path names a parent.
	require.NoError(t, db.Create(&domain.Category{
		ID: 43, StoreID: store.ID, Name: "Mjölk", Slug: slug.MakeLang("Mjölk", "sv"),
		Path: "mejeri/" + slug.MakeLang("Mjölk", "sv"), Depth: 1, CreatedAt: time.Now().UTC(),
	}).Error)

	_, err := r.Resolve(context.Background(), db, milk())
	assert.ErrorIs(t, err, ErrCategoryParentConflict)
}

func TestResolveUnconfiguredStore(t *testing.T) {
	db := dbtest.Open(t, domain.Models()...)
	r, _ := newResolver(t, 1)
	item := milk()
	item.Store = "lidl"

	_, err := r.Resolve(context.Background(), db, item)
	assert.ErrorIs(t, err, ErrUnconfiguredStore)
}

func TestResolveCachesOnlyAfterCommit(t *testing.T) {
	db := dbtest.Open(t, domain.Models()...)
	r, c := newResolver(t, 1)
	ctx := context.Background()
	rollback := errors.New("rollback")

	var rolledBack *Identity
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		rolledBack, err = r.Resolve(ctx, tx, milk())
		require.NoError(t, err)
		return rollback
	})
	require.ErrorIs(t, err, rollback)

	_, ok := c.Get(ctx, cache.KindStore, "coop")
	assert.False(t, ok)
	assert.EqualValues(t, 0, count(t, db, &domain.Store{}))

	committed := resolveCommitted(t, db, r, milk())
	assert.NotEqual(t, rolledBack.StoreID, committed.StoreID)

	cached, ok := c.Get(ctx, cache.KindStore, "coop")
	require.True(t, ok)
	assert.Equal(t, committed.StoreID, cached)

	cached, ok = c.Get(ctx, cache.KindProduct, cacheKey(committed.StoreID.String(), committed.CategoryID.String(), "ekologisk mjölk 1l"))
	require.True(t, ok)
	assert.Equal(t, committed.ProductID, cached)
}

func TestResolveConcurrentWorkersConverge(t *testing.T) {
	db := dbtest.Open(t, domain.Models()...)

	const workers = 4
	ids := make([]*Identity, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			node, _ := snowflake.NewNode(int64(i + 1))
			r := New(Params{
				Repo:   repository.Provide(),
				Stores: config.DefaultStores(),
				GenID:  node,
				Clock:  clock.System(),
				Log:    zap.NewNop(),
			})
			_ = db.Transaction(func(tx *gorm.DB) error {
				id, err := r.Resolve(context.Background(), tx, milk())
				ids[i] = id
				return err
			})
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		require.NotNil(t, id)
		assert.Equal(t, ids[0].CategoryID, id.CategoryID)
		assert.Equal(t, ids[0].ProductID, id.ProductID)
	}
	assert.EqualValues(t, 2, count(t, db, &domain.Category{}))
	assert.EqualValues(t, 1, count(t, db, &domain.Product{}))
}
