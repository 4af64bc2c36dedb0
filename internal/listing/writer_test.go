package listing

import (
	"context"
	"testing"
	"time"

	"github.com/Kronixion/matval/internal/catalog/domain"
	"github.com/Kronixion/matval/internal/catalog/repository"
	"github.com/Kronixion/matval/internal/clock"
	"github.com/Kronixion/matval/internal/config"
	"github.com/Kronixion/matval/internal/identity"
	"github.com/Kronixion/matval/internal/normalize"
	"github.com/Kronixion/matval/pkg/db/dbtest"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	clock    *clock.FakeClock
	resolver *identity.Resolver
	writer   *Writer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	repo := repository.Provide()
	return &fixture{
		db:    dbtest.Open(t, domain.Models()...),
		clock: clk,
		resolver: identity.New(identity.Params{
			Repo:   repo,
			Stores: config.DefaultStores(),
			GenID:  node,
			Clock:  clk,
			Log:    zap.NewNop(),
		}),
		writer: New(Params{Repo: repo, GenID: node, Clock: clk, Log: zap.NewNop()}),
	}
}

func (f *fixture) upsert(t *testing.T, item normalize.CanonicalItem) Result {
	t.Helper()
	ctx := context.Background()
	var result Result
	err := f.db.Transaction(func(tx *gorm.DB) error {
		id, err := f.resolver.Resolve(ctx, tx, item)
		if err != nil {
			return err
		}
		result, err = f.writer.Upsert(ctx, tx, id, item)
		return err
	})
	require.NoError(t, err)
	return result
}

func (f *fixture) stored(t *testing.T, id snowflake.ID) domain.StoreListing {
	t.Helper()
	var row domain.StoreListing
	require.NoError(t, f.db.First(&row, "id = ?", id).Error)
	return row
}

func (f *fixture) statusID(t *testing.T, name string) snowflake.ID {
	t.Helper()
	var row domain.AvailabilityStatus
	require.NoError(t, f.db.First(&row, "name = ?", name).Error)
	return row.ID
}

func milk(price string) normalize.CanonicalItem {
	p := decimal.RequireFromString(price)
	quantity := decimal.NewFromInt(1)
	unit := normalize.UnitLitre
	return normalize.CanonicalItem{
		Store:          "coop",
		SourceID:       "7310865004703",
		Name:           "Ekologisk Mjölk 1L",
		NormalizedName: "ekologisk mjölk 1l",
		URL:            "https://www.coop.se/handla/varor/mejeri/7310865004703",
		CategoryPath:   []string{"Mejeri", "Mjölk"},
		Price:          p,
		Currency:       "SEK",
		UnitPrice:      &p,
		Unit:           &unit,
		UnitQuantity:   &quantity,
		QuantityType:   normalize.QuantityVolume,
		Availability:   config.AvailabilityInStock,
		Nutrition:      []byte(`{"energy_kcal":64}`),
	}
}

func TestUpsertFirstSightingCreatesListing(t *testing.T) {
	f := newFixture(t)

	result := f.upsert(t, milk("18.90"))
	assert.Equal(t, OutcomeCreated, result.Outcome)
	assert.False(t, result.HistoryRecorded)

	row := f.stored(t, result.ListingID)
	assert.Equal(t, "7310865004703", row.SourceItemID)
	assert.True(t, row.Price.Equal(decimal.RequireFromString("18.90")))
	require.True(t, row.UnitPrice.Valid)
	assert.True(t, row.UnitPrice.Decimal.Equal(decimal.RequireFromString("18.90")))
	assert.Equal(t, "SEK", row.CurrencyCode)
	assert.Equal(t, f.statusID(t, config.AvailabilityInStock), row.AvailabilityStatusID)
	assert.JSONEq(t, `{"energy_kcal":64}`, string(row.Nutrition))

	history, err := f.writer.History(context.Background(), f.db, result.ListingID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestUpsertUnchangedOnlyRefreshesLastSeen(t *testing.T) {
	f := newFixture(t)
	created := f.upsert(t, milk("18.90"))
	before := f.stored(t, created.ListingID)

	f.clock.Advance(time.Hour)
	result := f.upsert(t, milk("18.90"))
	assert.Equal(t, OutcomeUnchanged, result.Outcome)
	assert.False(t, result.HistoryRecorded)
	assert.Equal(t, created.ListingID, result.ListingID)

	after := f.stored(t, created.ListingID)
	assert.True(t, after.LastSeenAt.Equal(f.clock.Now()))
	assert.True(t, after.UpdatedAt.Equal(before.UpdatedAt))
	assert.True(t, after.FirstSeenAt.Equal(before.FirstSeenAt))

	var listings int64
	require.NoError(t, f.db.Model(&domain.StoreListing{}).Count(&listings).Error)
	assert.EqualValues(t, 1, listings)
}

func TestUpsertPriceChangeRecordsHistory(t *testing.T) {
	f := newFixture(t)
	created := f.upsert(t, milk("18.90"))

	f.clock.Advance(time.Hour)
	result := f.upsert(t, milk("21.90"))
	assert.Equal(t, OutcomeUpdated, result.Outcome)
	assert.True(t, result.HistoryRecorded)

	row := f.stored(t, created.ListingID)
	assert.True(t, row.Price.Equal(decimal.RequireFromString("21.90")))
	assert.True(t, row.UpdatedAt.Equal(f.clock.Now()))

	history, err := f.writer.History(context.Background(), f.db, created.ListingID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Price.Equal(decimal.RequireFromString("18.90")))
	assert.Equal(t, f.statusID(t, config.AvailabilityInStock), history[0].AvailabilityStatusID)

	// Submitting the new price again is not another change.
	f.clock.Advance(time.Hour)
	again := f.upsert(t, milk("21.90"))
	assert.Equal(t, OutcomeUnchanged, again.Outcome)
	history, err = f.writer.History(context.Background(), f.db, created.ListingID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestUpsertSmallestPriceChangeRecordsOneEntry(t *testing.T) {
	f := newFixture(t)
	created := f.upsert(t, milk("18.90"))

	result := f.upsert(t, milk("18.91"))
	assert.True(t, result.HistoryRecorded)

	history, err := f.writer.History(context.Background(), f.db, created.ListingID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Price.Equal(decimal.RequireFromString("18.90")))
}

func TestUpsertAvailabilityChangeRecordsHistory(t *testing.T) {
	f := newFixture(t)
	created := f.upsert(t, milk("18.90"))

	item := milk("18.90")
	item.Availability = config.AvailabilityTemporarilyUnavailable
	result := f.upsert(t, item)
	assert.Equal(t, OutcomeUpdated, result.Outcome)
	assert.True(t, result.HistoryRecorded)

	row := f.stored(t, created.ListingID)
	assert.Equal(t, f.statusID(t, config.AvailabilityTemporarilyUnavailable), row.AvailabilityStatusID)
}

func TestUpsertMetadataChangeHasNoHistory(t *testing.T) {
	f := newFixture(t)
	created := f.upsert(t, milk("18.90"))

	item := milk("18.90")
	item.URL = "https://www.coop.se/handla/varor/mejeri/mjolk/7310865004703"
	result := f.upsert(t, item)
	assert.Equal(t, OutcomeUpdated, result.Outcome)
	assert.False(t, result.HistoryRecorded)
	assert.Equal(t, item.URL, f.stored(t, created.ListingID).URL)
}

// lostRaceRepo hides the listing from the first lookup, as if another worker committed it
// between our lookup and our insert.
type lostRaceRepo struct {
	domain.Repository
	hidden bool
}

func (r *lostRaceRepo) FindListing(ctx context.Context, db *gorm.DB, storeID snowflake.ID, sourceItemID string) (*domain.StoreListing, error) {
	if !r.hidden {
		r.hidden = true
		return nil, nil
	}
	return r.Repository.FindListing(ctx, db, storeID, sourceItemID)
}

func TestUpsertLostInsertRaceFallsThroughToUpdate(t *testing.T) {
	f := newFixture(t)
	created := f.upsert(t, milk("18.90"))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	racing := *f
	racing.writer = New(Params{
		Repo:  &lostRaceRepo{Repository: repository.Provide()},
		GenID: node,
		Clock: f.clock,
		Log:   zap.NewNop(),
	})

	result := racing.upsert(t, milk("19.90"))
	assert.Equal(t, created.ListingID, result.ListingID)
	assert.Equal(t, OutcomeUpdated, result.Outcome)
	assert.True(t, result.HistoryRecorded)

	var listings int64
	require.NoError(t, f.db.Model(&domain.StoreListing{}).Count(&listings).Error)
	assert.EqualValues(t, 1, listings)
}

func TestStaleListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seen := milk("18.90")
	gone := milk("9.90")
	gone.SourceID = "7310865001818"
	gone.Name, gone.NormalizedName = "Filmjölk", "filmjölk"
	f.upsert(t, seen)
	f.upsert(t, gone)

	f.clock.Advance(24 * time.Hour)
	runStart := f.clock.Now()
	f.clock.Advance(time.Minute)
	f.upsert(t, seen)

	stale, err := f.writer.StaleListings(ctx, f.db, "coop", runStart)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stale)

	stale, err = f.writer.StaleListings(ctx, f.db, "ica", runStart)
	require.NoError(t, err)
	assert.Zero(t, stale)
}
