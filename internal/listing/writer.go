package listing

import (
	"context"
	"time"

	"github.com/Kronixion/matval/internal/catalog/domain"
	"github.com/Kronixion/matval/internal/clock"
	"github.com/Kronixion/matval/internal/identity"
	"github.com/Kronixion/matval/internal/normalize"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
)

// Result describes what an upsert did to the listing.
type Result struct {
	ListingID       snowflake.ID
	Outcome         Outcome
	HistoryRecorded bool
}

type Params struct {
	fx.In

	Repo  domain.Repository
	GenID *snowflake.Node
	Clock clock.Clock
	Log   *zap.Logger
}

// Writer stores the current state of store listings. History entries are produced by the
// repository's conditional update, never by the writer itself.
type Writer struct {
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
	log   *zap.Logger
}

func New(p Params) *Writer {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
		log:   log.Named("listing.writer"),
	}
}

// Upsert inserts the listing on first sighting and otherwise rewrites it only when a
// column differs. last_seen_at is refreshed in every case.
func (w *Writer) Upsert(ctx context.Context, tx *gorm.DB, id *identity.Identity, item normalize.CanonicalItem) (Result, error) {
	now := w.clock.Now()
	incoming := w.build(id, item, now)

	existing, err := w.repo.FindListing(ctx, tx, id.StoreID, item.SourceID)
	if err != nil {
		return Result{}, domain.NewStorageError("find listing", err)
	}

	if existing == nil {
		inserted, err := w.repo.InsertListing(ctx, tx, incoming)
		if err != nil {
			return Result{}, domain.NewStorageError("insert listing", err)
		}
		if inserted {
			return Result{ListingID: incoming.ID, Outcome: OutcomeCreated}, nil
		}

		// Another worker inserted the same listing after our lookup.
		existing, err = w.repo.FindListing(ctx, tx, id.StoreID, item.SourceID)
		if err != nil {
			return Result{}, domain.NewStorageError("find listing", err)
		}
		if existing == nil {
			return Result{}, domain.NewStorageError("insert listing", gorm.ErrRecordNotFound)
		}
		w.log.Debug("listing insert lost race",
			zap.String("store", item.Store),
			zap.String("source_id", item.SourceID),
		)
	}

	incoming.ID = existing.ID
	change, err := w.repo.UpdateListing(ctx, tx, incoming, w.genID.Generate(), now)
	if err != nil {
		return Result{}, domain.NewStorageError("update listing", err)
	}

	result := Result{ListingID: existing.ID, Outcome: OutcomeUnchanged, HistoryRecorded: change.Archived}
	if change.Updated {
		result.Outcome = OutcomeUpdated
		return result, nil
	}
	if err := w.repo.TouchListing(ctx, tx, existing.ID, now); err != nil {
		return Result{}, domain.NewStorageError("touch listing", err)
	}
	return result, nil
}

func (w *Writer) build(id *identity.Identity, item normalize.CanonicalItem, now time.Time) *domain.StoreListing {
	listing := &domain.StoreListing{
		ID:                   w.genID.Generate(),
		StoreID:              id.StoreID,
		SourceItemID:         item.SourceID,
		ProductID:            id.ProductID,
		URL:                  item.URL,
		CurrencyCode:         id.CurrencyCode,
		Price:                item.Price,
		UnitPrice:            nullDecimal(item.UnitPrice),
		UnitQuantity:         nullDecimal(item.UnitQuantity),
		UnitID:               id.UnitID,
		QuantityTypeID:       id.QuantityTypeID,
		AvailabilityStatusID: id.AvailabilityStatusID,
		FirstSeenAt:          now,
		LastSeenAt:           now,
		UpdatedAt:            now,
	}
	if item.Nutrition != nil {
		listing.Nutrition = datatypes.JSON(item.Nutrition)
	}
	return listing
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

// StaleListings counts the store's listings not seen since the given time. Listings are
// never deleted; a crawl that no longer finds an item leaves its listing stale.
func (w *Writer) StaleListings(ctx context.Context, db *gorm.DB, store string, since time.Time) (int64, error) {
	row, err := w.repo.FindStoreByName(ctx, db, store)
	if err != nil {
		return 0, domain.NewStorageError("find store", err)
	}
	if row == nil {
		return 0, nil
	}
	n, err := w.repo.CountStaleListings(ctx, db, row.ID, since)
	if err != nil {
		return 0, domain.NewStorageError("count stale listings", err)
	}
	return n, nil
}

// History returns the archived material values of a listing, oldest first.
func (w *Writer) History(ctx context.Context, db *gorm.DB, listingID snowflake.ID) ([]domain.ListingHistory, error) {
	items, err := w.repo.ListHistory(ctx, db, listingID)
	if err != nil {
		return nil, domain.NewStorageError("list history", err)
	}
	return items, nil
}
