package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/Kronixion/matval/internal/cache"
	"github.com/Kronixion/matval/internal/catalog/domain"
	"github.com/Kronixion/matval/internal/clock"
	"github.com/Kronixion/matval/internal/config"
	"github.com/Kronixion/matval/internal/normalize"
	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Identity holds the row IDs a canonical item resolved to inside one transaction.
type Identity struct {
	StoreID              snowflake.ID
	CategoryID           snowflake.ID
	ProductID            snowflake.ID
	UnitID               *snowflake.ID
	QuantityTypeID       *snowflake.ID
	AvailabilityStatusID snowflake.ID
	CurrencyCode         string

	pending    []pendingEntry
	currencies []string
}

type pendingEntry struct {
	kind cache.Kind
	key  string
	id   snowflake.ID
}

func (i *Identity) remember(kind cache.Kind, key string, id snowflake.ID) {
	i.pending = append(i.pending, pendingEntry{kind: kind, key: key, id: id})
}

type Params struct {
	fx.In

	Repo   domain.Repository
	Stores config.Stores
	GenID  *snowflake.Node
	Clock  clock.Clock
	Cache  cache.IdentityCache `optional:"true"`
	Log    *zap.Logger
}

// Resolver maps canonical items onto catalog rows with get-or-create semantics.
type Resolver struct {
	repo   domain.Repository
	stores config.Stores
	genID  *snowflake.Node
	clock  clock.Clock
	cache  cache.IdentityCache
	log    *zap.Logger

	currencies sync.Map
}

func New(p Params) *Resolver {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		repo:   p.Repo,
		stores: p.Stores,
		genID:  p.GenID,
		clock:  p.Clock,
		cache:  p.Cache,
		log:    log.Named("identity.resolver"),
	}
}

// Resolve looks up or creates every row the item refers to using tx. IDs found in the
// cache are trusted without a round trip; everything resolved from tx is only remembered
// once the caller reports the commit through Remember.
func (r *Resolver) Resolve(ctx context.Context, tx *gorm.DB, item normalize.CanonicalItem) (*Identity, error) {
	id := &Identity{CurrencyCode: item.Currency}

	storeID, err := r.resolveStore(ctx, tx, id, item.Store)
	if err != nil {
		return nil, err
	}
	id.StoreID = storeID

	categoryID, err := r.resolveCategory(ctx, tx, id, item.Store, item.CategoryPath)
	if err != nil {
		return nil, err
	}
	id.CategoryID = categoryID

	if err := r.ensureCurrency(ctx, tx, id, item.Currency); err != nil {
		return nil, err
	}

	if item.Unit != nil {
		unitID, err := r.resolveUnit(ctx, tx, id, *item.Unit)
		if err != nil {
			return nil, err
		}
		id.UnitID = &unitID
	}

	if item.QuantityType != "" {
		qtID, err := r.resolveQuantityType(ctx, tx, id, string(item.QuantityType))
		if err != nil {
			return nil, err
		}
		id.QuantityTypeID = &qtID
	}

	statusID, err := r.resolveAvailability(ctx, tx, id, item.Availability)
	if err != nil {
		return nil, err
	}
	id.AvailabilityStatusID = statusID

	productID, err := r.resolveProduct(ctx, tx, id, item)
	if err != nil {
		return nil, err
	}
	id.ProductID = productID

	return id, nil
}

// Remember caches the IDs an identity resolved. Call it only after the transaction that
// produced the identity has committed.
func (r *Resolver) Remember(ctx context.Context, id *Identity) {
	if id == nil {
		return
	}
	if r.cache != nil {
		for _, e := range id.pending {
			r.cache.Set(ctx, e.kind, e.key, e.id)
		}
	}
	for _, code := range id.currencies {
		r.currencies.Store(code, struct{}{})
	}
	id.pending = nil
	id.currencies = nil
}

func (r *Resolver) lookup(ctx context.Context, kind cache.Kind, key string) (snowflake.ID, bool) {
	if r.cache == nil {
		return 0, false
	}
	return r.cache.Get(ctx, kind, key)
}

func (r *Resolver) resolveStore(ctx context.Context, tx *gorm.DB, id *Identity, name string) (snowflake.ID, error) {
	cfg, ok := r.stores.Get(name)
	if !ok {
		return 0, &ResolutionError{Store: name, Entity: "store", Key: name, Err: ErrUnconfiguredStore}
	}
	if cached, ok := r.lookup(ctx, cache.KindStore, cfg.Name); ok {
		return cached, nil
	}

	store, err := r.repo.GetOrCreateStore(ctx, tx, &domain.Store{
		ID:          r.genID.Generate(),
		Name:        cfg.Name,
		ChainID:     cfg.ChainID,
		DisplayName: cfg.DisplayName,
		CreatedAt:   r.clock.Now(),
	})
	if err != nil {
		return 0, domain.NewStorageError("resolve store", err)
	}
	if store.ChainID != cfg.ChainID {
		r.log.Warn("store chain mismatch",
			zap.String("store", cfg.Name),
			zap.String("stored_chain_id", store.ChainID),
			zap.String("configured_chain_id", cfg.ChainID),
		)
		return 0, &ResolutionError{Store: cfg.Name, Entity: "store", Key: cfg.Name, Err: ErrConflictingStore}
	}
	id.remember(cache.KindStore, cfg.Name, store.ID)
	return store.ID, nil
}

// resolveCategory walks the path from the root, creating missing nodes before their
// children. Each node's parent is the node of the path prefix, so no node can become its
// own ancestor.
func (r *Resolver) resolveCategory(ctx context.Context, tx *gorm.DB, id *Identity, store string, segments []string) (snowflake.ID, error) {
	if len(segments) == 0 {
		return 0, &ResolutionError{Store: store, Entity: "category", Err: ErrMalformedCategoryPath}
	}

	slugs := make([]string, len(segments))
	for i, seg := range segments {
		s := slug.MakeLang(strings.TrimSpace(seg), "sv")
		if s == "" {
			return 0, &ResolutionError{Store: store, Entity: "category", Key: strings.Join(segments, "/"), Err: ErrMalformedCategoryPath}
		}
		slugs[i] = s
	}

	var parent *snowflake.ID
	for depth := range segments {
		path := strings.Join(slugs[:depth+1], "/")
		key := cacheKey(id.StoreID.String(), path)

		if cached, ok := r.lookup(ctx, cache.KindCategory, key); ok {
			node := cached
			parent = &node
			continue
		}

		row, err := r.repo.GetOrCreateCategory(ctx, tx, &domain.Category{
			ID:        r.genID.Generate(),
			StoreID:   id.StoreID,
			ParentID:  parent,
			Name:      strings.TrimSpace(segments[depth]),
			Slug:      slugs[depth],
			Path:      path,
			Depth:     depth,
			CreatedAt: r.clock.Now(),
		})
		if err != nil {
			return 0, domain.NewStorageError("resolve category", err)
		}
		if !sameParent(row.ParentID, parent) {
			return 0, &ResolutionError{Store: store, Entity: "category", Key: path, Err: ErrCategoryParentConflict}
		}

		id.remember(cache.KindCategory, key, row.ID)
		node := row.ID
		parent = &node
	}
	return *parent, nil
}

func sameParent(a, b *snowflake.ID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *Resolver) resolveProduct(ctx context.Context, tx *gorm.DB, id *Identity, item normalize.CanonicalItem) (snowflake.ID, error) {
	key := cacheKey(id.StoreID.String(), id.CategoryID.String(), item.NormalizedName)
	if cached, ok := r.lookup(ctx, cache.KindProduct, key); ok {
		return cached, nil
	}

	product, err := r.repo.GetOrCreateProduct(ctx, tx, &domain.Product{
		ID:             r.genID.Generate(),
		StoreID:        id.StoreID,
		NormalizedName: item.NormalizedName,
		CategoryID:     id.CategoryID,
		Name:           item.Name,
		CreatedAt:      r.clock.Now(),
	})
	if err != nil {
		return 0, domain.NewStorageError("resolve product", err)
	}
	id.remember(cache.KindProduct, key, product.ID)
	return product.ID, nil
}

func (r *Resolver) resolveUnit(ctx context.Context, tx *gorm.DB, id *Identity, spec normalize.UnitSpec) (snowflake.ID, error) {
	if cached, ok := r.lookup(ctx, cache.KindUnit, spec.Abbreviation); ok {
		return cached, nil
	}
	unit, err := r.repo.GetOrCreateUnit(ctx, tx, &domain.Unit{
		ID:           r.genID.Generate(),
		Name:         spec.Name,
		Abbreviation: spec.Abbreviation,
	})
	if err != nil {
		return 0, domain.NewStorageError("resolve unit", err)
	}
	id.remember(cache.KindUnit, spec.Abbreviation, unit.ID)
	return unit.ID, nil
}

func (r *Resolver) resolveQuantityType(ctx context.Context, tx *gorm.DB, id *Identity, name string) (snowflake.ID, error) {
	if cached, ok := r.lookup(ctx, cache.KindQuantityType, name); ok {
		return cached, nil
	}
	qt, err := r.repo.GetOrCreateQuantityType(ctx, tx, &domain.QuantityType{
		ID:   r.genID.Generate(),
		Name: name,
	})
	if err != nil {
		return 0, domain.NewStorageError("resolve quantity type", err)
	}
	id.remember(cache.KindQuantityType, name, qt.ID)
	return qt.ID, nil
}

func (r *Resolver) resolveAvailability(ctx context.Context, tx *gorm.DB, id *Identity, name string) (snowflake.ID, error) {
	if cached, ok := r.lookup(ctx, cache.KindAvailabilityStatus, name); ok {
		return cached, nil
	}
	status, err := r.repo.GetOrCreateAvailabilityStatus(ctx, tx, &domain.AvailabilityStatus{
		ID:          r.genID.Generate(),
		Name:        name,
		Description: AvailabilityDescription(name),
	})
	if err != nil {
		return 0, domain.NewStorageError("resolve availability status", err)
	}
	id.remember(cache.KindAvailabilityStatus, name, status.ID)
	return status.ID, nil
}

func (r *Resolver) ensureCurrency(ctx context.Context, tx *gorm.DB, id *Identity, code string) error {
	if _, ok := r.currencies.Load(code); ok {
		return nil
	}
	if _, err := r.repo.EnsureCurrency(ctx, tx, &domain.Currency{Code: code, Name: CurrencyName(code)}); err != nil {
		return domain.NewStorageError("resolve currency", err)
	}
	id.currencies = append(id.currencies, code)
	return nil
}

func cacheKey(parts ...string) string {
	return strings.Join(parts, "|")
}
