package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ListingChange reports what a conditional listing update did.
type ListingChange struct {
	Updated  bool
	Archived bool
}

type Repository interface {
	GetOrCreateStore(ctx context.Context, db *gorm.DB, store *Store) (*Store, error)
	FindStoreByName(ctx context.Context, db *gorm.DB, name string) (*Store, error)
	GetOrCreateCategory(ctx context.Context, db *gorm.DB, category *Category) (*Category, error)
	GetOrCreateProduct(ctx context.Context, db *gorm.DB, product *Product) (*Product, error)
	GetOrCreateUnit(ctx context.Context, db *gorm.DB, unit *Unit) (*Unit, error)
	GetOrCreateQuantityType(ctx context.Context, db *gorm.DB, quantityType *QuantityType) (*QuantityType, error)
	GetOrCreateAvailabilityStatus(ctx context.Context, db *gorm.DB, status *AvailabilityStatus) (*AvailabilityStatus, error)
	EnsureCurrency(ctx context.Context, db *gorm.DB, currency *Currency) (*Currency, error)

	FindListing(ctx context.Context, db *gorm.DB, storeID snowflake.ID, sourceItemID string) (*StoreListing, error)
	InsertListing(ctx context.Context, db *gorm.DB, listing *StoreListing) (bool, error)
	UpdateListing(ctx context.Context, db *gorm.DB, listing *StoreListing, historyID snowflake.ID, now time.Time) (ListingChange, error)
	TouchListing(ctx context.Context, db *gorm.DB, listingID snowflake.ID, now time.Time) error
	CountStaleListings(ctx context.Context, db *gorm.DB, storeID snowflake.ID, before time.Time) (int64, error)
	ListHistory(ctx context.Context, db *gorm.DB, listingID snowflake.ID) ([]ListingHistory, error)
}
