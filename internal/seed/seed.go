package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Kronixion/matval/internal/catalog/domain"
	"github.com/Kronixion/matval/internal/catalog/repository"
	"github.com/Kronixion/matval/internal/config"
	"github.com/Kronixion/matval/internal/identity"
	"github.com/Kronixion/matval/internal/normalize"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var quantityTypes = []normalize.QuantityType{
	normalize.QuantityWeight,
	normalize.QuantityVolume,
	normalize.QuantityCount,
}

// EnsureCatalog seeds the configured stores and the lookup dimensions every canonical item
// can refer to. It is safe to run on every startup and from several processes at once.
func EnsureCatalog(ctx context.Context, db *gorm.DB, stores config.Stores, now time.Time) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}
	repo := repository.Provide()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		currencies := map[string]struct{}{}
		for _, name := range stores.Names() {
			cfg := stores[name]
			store, err := repo.GetOrCreateStore(ctx, tx, &domain.Store{
				ID:          node.Generate(),
				Name:        cfg.Name,
				ChainID:     cfg.ChainID,
				DisplayName: cfg.DisplayName,
				CreatedAt:   now,
			})
			if err != nil {
				return fmt.Errorf("seed store %s: %w", name, err)
			}
			if store.ChainID != cfg.ChainID {
				return fmt.Errorf("seed store %s: stored chain %q, configured %q: %w",
					name, store.ChainID, cfg.ChainID, identity.ErrConflictingStore)
			}
			currencies[cfg.Currency] = struct{}{}
		}

		for code := range currencies {
			if _, err := repo.EnsureCurrency(ctx, tx, &domain.Currency{Code: code, Name: identity.CurrencyName(code)}); err != nil {
				return fmt.Errorf("seed currency %s: %w", code, err)
			}
		}

		for _, status := range config.AvailabilityStatuses {
			if _, err := repo.GetOrCreateAvailabilityStatus(ctx, tx, &domain.AvailabilityStatus{
				ID:          node.Generate(),
				Name:        status,
				Description: identity.AvailabilityDescription(status),
			}); err != nil {
				return fmt.Errorf("seed availability status %s: %w", status, err)
			}
		}

		for _, unit := range normalize.StandardUnits {
			if _, err := repo.GetOrCreateUnit(ctx, tx, &domain.Unit{
				ID:           node.Generate(),
				Name:         unit.Name,
				Abbreviation: unit.Abbreviation,
			}); err != nil {
				return fmt.Errorf("seed unit %s: %w", unit.Abbreviation, err)
			}
		}

		for _, qt := range quantityTypes {
			if _, err := repo.GetOrCreateQuantityType(ctx, tx, &domain.QuantityType{
				ID:   node.Generate(),
				Name: string(qt),
			}); err != nil {
				return fmt.Errorf("seed quantity type %s: %w", qt, err)
			}
		}
		return nil
	})
}
