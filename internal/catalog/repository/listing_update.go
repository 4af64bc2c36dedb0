package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Kronixion/matval/internal/catalog/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// listingColumn is a mutable store_listings column compared by the conditional update.
type listingColumn struct {
	name     string
	value    any
	pgType   string
	material bool
}

func listingColumns(l *domain.StoreListing) []listingColumn {
	return []listingColumn{
		{name: "product_id", value: int64(l.ProductID), pgType: "bigint"},
		{name: "url", value: l.URL, pgType: "text"},
		{name: "currency_code", value: l.CurrencyCode, pgType: "varchar"},
		{name: "price", value: l.Price, pgType: "numeric", material: true},
		{name: "unit_price", value: l.UnitPrice, pgType: "numeric", material: true},
		{name: "unit_quantity", value: l.UnitQuantity, pgType: "numeric"},
		{name: "unit_id", value: nullableID(l.UnitID), pgType: "bigint"},
		{name: "quantity_type_id", value: nullableID(l.QuantityTypeID), pgType: "bigint"},
		{name: "availability_status_id", value: int64(l.AvailabilityStatusID), pgType: "bigint", material: true},
		{name: "nutrition", value: l.Nutrition, pgType: "jsonb"},
	}
}

func nullableID(id *snowflake.ID) any {
	if id == nil {
		return nil
	}
	return int64(*id)
}

// UpdateListing archives the prior material values of a listing when its price, unit price
// or availability differ from the incoming ones, then rewrites the mutable columns when any
// of them differ. Both happen under the same row lock so concurrent writers of one listing
// cannot lose a history entry.
func (r *repo) UpdateListing(ctx context.Context, db *gorm.DB, listing *domain.StoreListing, historyID snowflake.ID, now time.Time) (domain.ListingChange, error) {
	switch db.Dialector.Name() {
	case "postgres":
		return r.updateListingPostgres(ctx, db, listing, historyID, now)
	case "mysql":
		return r.updateListingSequential(ctx, db, listing, historyID, now, mysqlDistinct)
	default:
		return r.updateListingSequential(ctx, db, listing, historyID, now, sqliteDistinct)
	}
}

const postgresArchiveUpdate = `
WITH prev AS (
	SELECT * FROM store_listings WHERE id = @id FOR UPDATE
),
archived AS (
	INSERT INTO listing_history (id, store_listing_id, price, unit_price, availability_status_id, recorded_at)
	SELECT @history_id, prev.id, prev.price, prev.unit_price, prev.availability_status_id, @now
	FROM prev
	WHERE %s
	RETURNING 1
),
updated AS (
	UPDATE store_listings AS l
	SET %s, last_seen_at = @now, updated_at = @now
	FROM prev
	WHERE l.id = prev.id AND (%s)
	RETURNING 1
)
SELECT
	(SELECT count(*) FROM updated) AS updated,
	(SELECT count(*) FROM archived) AS archived`

func (r *repo) updateListingPostgres(ctx context.Context, db *gorm.DB, listing *domain.StoreListing, historyID snowflake.ID, now time.Time) (domain.ListingChange, error) {
	query, args := postgresArchiveUpdateSQL(listing, historyID, now)

	var out struct {
		Updated  int64
		Archived int64
	}
	if err := db.WithContext(ctx).Raw(query, args).Scan(&out).Error; err != nil {
		return domain.ListingChange{}, err
	}
	return domain.ListingChange{Updated: out.Updated > 0, Archived: out.Archived > 0}, nil
}

// postgresArchiveUpdateSQL renders the archive-and-update statement. History is archived
// only when a material column differs; the row is rewritten when any column differs.
func postgresArchiveUpdateSQL(listing *domain.StoreListing, historyID snowflake.ID, now time.Time) (string, map[string]any) {
	args := map[string]any{
		"id":         int64(listing.ID),
		"history_id": int64(historyID),
		"now":        now,
	}

	var (
		material []string
		changed  []string
		sets     []string
	)
	for _, c := range listingColumns(listing) {
		args[c.name] = c.value
		cond := fmt.Sprintf("prev.%s IS DISTINCT FROM CAST(@%s AS %s)", c.name, c.name, c.pgType)
		changed = append(changed, cond)
		if c.material {
			material = append(material, cond)
		}
		sets = append(sets, fmt.Sprintf("%s = CAST(@%s AS %s)", c.name, c.name, c.pgType))
	}

	query := fmt.Sprintf(postgresArchiveUpdate,
		strings.Join(material, " OR "),
		strings.Join(sets, ", "),
		strings.Join(changed, " OR "),
	)
	return query, args
}

type distinctFn func(c listingColumn) string

func sqliteDistinct(c listingColumn) string {
	return c.name + " IS NOT ?"
}

func mysqlDistinct(c listingColumn) string {
	if c.name == "nutrition" {
		return "NOT (nutrition <=> CAST(? AS JSON))"
	}
	return fmt.Sprintf("NOT (%s <=> ?)", c.name)
}

// updateListingSequential issues the archive insert and the update as two statements. It
// relies on running inside the item transaction, where SQLite holds the database write lock
// and MySQL holds the row lock taken by the SELECT ... FOR UPDATE.
func (r *repo) updateListingSequential(ctx context.Context, db *gorm.DB, listing *domain.StoreListing, historyID snowflake.ID, now time.Time, distinct distinctFn) (domain.ListingChange, error) {
	db = db.WithContext(ctx)
	columns := listingColumns(listing)

	if db.Dialector.Name() == "mysql" {
		var locked int64
		if err := db.Raw(`SELECT id FROM store_listings WHERE id = ? FOR UPDATE`, int64(listing.ID)).Scan(&locked).Error; err != nil {
			return domain.ListingChange{}, err
		}
	}

	var (
		material     []string
		materialArgs []any
		changed      []string
		changedArgs  []any
		sets         []string
		setArgs      []any
	)
	for _, c := range columns {
		cond := distinct(c)
		changed = append(changed, cond)
		changedArgs = append(changedArgs, c.value)
		if c.material {
			material = append(material, cond)
			materialArgs = append(materialArgs, c.value)
		}
		sets = append(sets, c.name+" = ?")
		setArgs = append(setArgs, c.value)
	}

	archive := fmt.Sprintf(`INSERT INTO listing_history (id, store_listing_id, price, unit_price, availability_status_id, recorded_at)
SELECT ?, id, price, unit_price, availability_status_id, ? FROM store_listings WHERE id = ? AND (%s)`,
		strings.Join(material, " OR "))
	archiveArgs := append([]any{int64(historyID), now, int64(listing.ID)}, materialArgs...)
	archived := db.Exec(archive, archiveArgs...)
	if archived.Error != nil {
		return domain.ListingChange{}, archived.Error
	}

	update := fmt.Sprintf(`UPDATE store_listings SET %s, last_seen_at = ?, updated_at = ? WHERE id = ? AND (%s)`,
		strings.Join(sets, ", "), strings.Join(changed, " OR "))
	updateArgs := append(setArgs, now, now, int64(listing.ID))
	updateArgs = append(updateArgs, changedArgs...)
	updated := db.Exec(update, updateArgs...)
	if updated.Error != nil {
		return domain.ListingChange{}, updated.Error
	}

	return domain.ListingChange{
		Updated:  updated.RowsAffected > 0,
		Archived: archived.RowsAffected > 0,
	}, nil
}
