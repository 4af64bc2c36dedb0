package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Kronixion/matval/internal/catalog/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// getOrCreate looks a row up by its natural key and inserts it when absent. The insert
// does nothing on a key conflict and the row is selected again, so concurrent callers
// racing on the same key converge on the committed row instead of failing.
func getOrCreate[T any](ctx context.Context, db *gorm.DB, row *T, key map[string]any) (*T, error) {
	existing, err := findBy[T](ctx, db, key)
	if err != nil || existing != nil {
		return existing, err
	}

	columns := make([]clause.Column, 0, len(key))
	for name := range key {
		columns = append(columns, clause.Column{Name: name})
	}
	err = db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: columns, DoNothing: true}).
		Create(row).Error
	if err != nil {
		return nil, err
	}

	existing, err = findBy[T](ctx, db, key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return existing, nil
}

func findBy[T any](ctx context.Context, db *gorm.DB, key map[string]any) (*T, error) {
	var row T
	err := db.WithContext(ctx).Where(key).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repo) GetOrCreateStore(ctx context.Context, db *gorm.DB, store *domain.Store) (*domain.Store, error) {
	return getOrCreate(ctx, db, store, map[string]any{"name": store.Name})
}

func (r *repo) FindStoreByName(ctx context.Context, db *gorm.DB, name string) (*domain.Store, error) {
	return findBy[domain.Store](ctx, db, map[string]any{"name": name})
}

func (r *repo) GetOrCreateCategory(ctx context.Context, db *gorm.DB, category *domain.Category) (*domain.Category, error) {
	return getOrCreate(ctx, db, category, map[string]any{
		"store_id": category.StoreID,
		"path":     category.Path,
	})
}

func (r *repo) GetOrCreateProduct(ctx context.Context, db *gorm.DB, product *domain.Product) (*domain.Product, error) {
	return getOrCreate(ctx, db, product, map[string]any{
		"store_id":        product.StoreID,
		"normalized_name": product.NormalizedName,
		"category_id":     product.CategoryID,
	})
}

func (r *repo) GetOrCreateUnit(ctx context.Context, db *gorm.DB, unit *domain.Unit) (*domain.Unit, error) {
	return getOrCreate(ctx, db, unit, map[string]any{"abbreviation": unit.Abbreviation})
}

func (r *repo) GetOrCreateQuantityType(ctx context.Context, db *gorm.DB, quantityType *domain.QuantityType) (*domain.QuantityType, error) {
	return getOrCreate(ctx, db, quantityType, map[string]any{"name": quantityType.Name})
}

func (r *repo) GetOrCreateAvailabilityStatus(ctx context.Context, db *gorm.DB, status *domain.AvailabilityStatus) (*domain.AvailabilityStatus, error) {
	return getOrCreate(ctx, db, status, map[string]any{"name": status.Name})
}

func (r *repo) EnsureCurrency(ctx context.Context, db *gorm.DB, currency *domain.Currency) (*domain.Currency, error) {
	return getOrCreate(ctx, db, currency, map[string]any{"code": currency.Code})
}

func (r *repo) FindListing(ctx context.Context, db *gorm.DB, storeID snowflake.ID, sourceItemID string) (*domain.StoreListing, error) {
	return findBy[domain.StoreListing](ctx, db, map[string]any{
		"store_id":       storeID,
		"source_item_id": sourceItemID,
	})
}

func (r *repo) InsertListing(ctx context.Context, db *gorm.DB, listing *domain.StoreListing) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "store_id"}, {Name: "source_item_id"}},
			DoNothing: true,
		}).
		Create(listing)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) TouchListing(ctx context.Context, db *gorm.DB, listingID snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE store_listings SET last_seen_at = ? WHERE id = ?`,
		now,
		listingID,
	).Error
}

func (r *repo) CountStaleListings(ctx context.Context, db *gorm.DB, storeID snowflake.ID, before time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.StoreListing{}).
		Where("store_id = ? AND last_seen_at < ?", storeID, before).
		Count(&count).Error
	return count, err
}

func (r *repo) ListHistory(ctx context.Context, db *gorm.DB, listingID snowflake.ID) ([]domain.ListingHistory, error) {
	var items []domain.ListingHistory
	err := db.WithContext(ctx).
		Where("store_listing_id = ?", listingID).
		Order("recorded_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
