package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Store struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name        string       `json:"name" gorm:"type:varchar(64);not null;uniqueIndex:ux_stores_name"`
	ChainID     string       `json:"chain_id" gorm:"column:chain_id;type:varchar(128);not null"`
	DisplayName string       `json:"display_name" gorm:"type:varchar(128);not null"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
}

func (Store) TableName() string { return "stores" }

// Category is a node of a store-scoped taxonomy. Path is the slash-joined slug chain from
// the root and is the natural key together with StoreID.
type Category struct {
	ID        snowflake.ID  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	StoreID   snowflake.ID  `json:"store_id" gorm:"not null;uniqueIndex:ux_categories_store_path,priority:1"`
	ParentID  *snowflake.ID `json:"parent_id,omitempty" gorm:"index"`
	Name      string        `json:"name" gorm:"type:varchar(255);not null"`
	Slug      string        `json:"slug" gorm:"type:varchar(255);not null"`
	Path      string        `json:"path" gorm:"type:varchar(512);not null;uniqueIndex:ux_categories_store_path,priority:2"`
	Depth     int           `json:"depth" gorm:"not null"`
	CreatedAt time.Time     `json:"created_at" gorm:"not null"`
}

func (Category) TableName() string { return "categories" }

type Product struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	StoreID        snowflake.ID `json:"store_id" gorm:"not null;uniqueIndex:ux_products_store_name_category,priority:1"`
	NormalizedName string       `json:"normalized_name" gorm:"type:varchar(255);not null;uniqueIndex:ux_products_store_name_category,priority:2"`
	CategoryID     snowflake.ID `json:"category_id" gorm:"not null;uniqueIndex:ux_products_store_name_category,priority:3"`
	Name           string       `json:"name" gorm:"type:varchar(255);not null"`
	CreatedAt      time.Time    `json:"created_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

type Unit struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name         string       `json:"name" gorm:"type:varchar(64);not null"`
	Abbreviation string       `json:"abbreviation" gorm:"type:varchar(16);not null;uniqueIndex:ux_units_abbreviation"`
}

func (Unit) TableName() string { return "units" }

type QuantityType struct {
	ID   snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name string       `json:"name" gorm:"type:varchar(64);not null;uniqueIndex:ux_quantity_types_name"`
}

func (QuantityType) TableName() string { return "quantity_types" }

type AvailabilityStatus struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name        string       `json:"name" gorm:"type:varchar(64);not null;uniqueIndex:ux_availability_statuses_name"`
	Description string       `json:"description" gorm:"type:text"`
}

func (AvailabilityStatus) TableName() string { return "availability_statuses" }

type Currency struct {
	Code string `json:"code" gorm:"primaryKey;type:varchar(3)"`
	Name string `json:"name" gorm:"type:varchar(64);not null"`
}

func (Currency) TableName() string { return "currencies" }

// StoreListing is the mutable per-store instance of a product.
type StoreListing struct {
	ID                   snowflake.ID        `json:"id" gorm:"primaryKey;autoIncrement:false"`
	StoreID              snowflake.ID        `json:"store_id" gorm:"not null;uniqueIndex:ux_store_listings_store_source,priority:1;index:ix_store_listings_store_seen,priority:1"`
	SourceItemID         string              `json:"source_item_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_store_listings_store_source,priority:2"`
	ProductID            snowflake.ID        `json:"product_id" gorm:"not null;index"`
	URL                  string              `json:"url" gorm:"type:text"`
	CurrencyCode         string              `json:"currency_code" gorm:"type:varchar(3);not null"`
	Price                decimal.Decimal     `json:"price" gorm:"type:numeric(12,2);not null"`
	UnitPrice            decimal.NullDecimal `json:"unit_price" gorm:"type:numeric(12,4)"`
	UnitQuantity         decimal.NullDecimal `json:"unit_quantity" gorm:"type:numeric(12,4)"`
	UnitID               *snowflake.ID       `json:"unit_id,omitempty"`
	QuantityTypeID       *snowflake.ID       `json:"quantity_type_id,omitempty"`
	AvailabilityStatusID snowflake.ID        `json:"availability_status_id" gorm:"not null"`
	Nutrition            datatypes.JSON      `json:"nutrition,omitempty"`
	FirstSeenAt          time.Time           `json:"first_seen_at" gorm:"not null"`
	LastSeenAt           time.Time           `json:"last_seen_at" gorm:"not null;index:ix_store_listings_store_seen,priority:2"`
	UpdatedAt            time.Time           `json:"updated_at" gorm:"not null"`
}

func (StoreListing) TableName() string { return "store_listings" }

// ListingHistory is an append-only snapshot of a listing's material fields taken before
// they changed.
type ListingHistory struct {
	ID                   snowflake.ID        `json:"id" gorm:"primaryKey;autoIncrement:false"`
	StoreListingID       snowflake.ID        `json:"store_listing_id" gorm:"not null;index"`
	Price                decimal.Decimal     `json:"price" gorm:"type:numeric(12,2);not null"`
	UnitPrice            decimal.NullDecimal `json:"unit_price" gorm:"type:numeric(12,4)"`
	AvailabilityStatusID snowflake.ID        `json:"availability_status_id" gorm:"not null"`
	RecordedAt           time.Time           `json:"recorded_at" gorm:"not null"`
}

func (ListingHistory) TableName() string { return "listing_history" }

// Models lists every catalog table in dependency order.
func Models() []any {
	return []any{
		&Store{},
		&Category{},
		&Product{},
		&Unit{},
		&QuantityType{},
		&AvailabilityStatus{},
		&Currency{},
		&StoreListing{},
		&ListingHistory{},
	}
}
