package legacy

import (
	"context"
	"errors"

	"pharmacore/pkg/domain"
)

// Adapter reads legacy blobs from a Source and converts them into the
// current domain types. It satisfies core.Migrator.
type Adapter struct {
	src     Source
	catalog bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithoutCatalog disables the built-in starter inventory.
func WithoutCatalog() Option {
	return func(a *Adapter) { a.catalog = false }
}

// New returns an Adapter reading from src. A nil src behaves as an empty source.
func New(src Source, opts ...Option) *Adapter {
	if src == nil {
		src = MapSource{}
	}
	a := &Adapter{src: src, catalog: true}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Inventory returns the newest parseable inventory blob. When no blob
// exists at any key the built-in catalog is returned instead.
func (a *Adapter) Inventory(ctx context.Context) ([]domain.Medicine, error) {
	meds, found, err := run(ctx, a.src, domain.CollectionInventory, InventoryFormats())
	if found || !a.catalog {
		return meds, err
	}
	cat, cerr := Catalog()
	if cerr != nil {
		return nil, errors.Join(err, cerr)
	}
	return cat, err
}

// Sales returns the newest parseable sales history.
func (a *Adapter) Sales(ctx context.Context) ([]domain.Sale, error) {
	sales, _, err := run(ctx, a.src, domain.CollectionSales, SalesFormats())
	return sales, err
}

// Purchases returns the newest parseable purchase history.
func (a *Adapter) Purchases(ctx context.Context) ([]domain.Purchase, error) {
	purchases, _, err := run(ctx, a.src, domain.CollectionPurchases, PurchasesFormats())
	return purchases, err
}

// run tries each format in order and stops at the first that parses.
// found reports whether any key held a blob, parseable or not. Parse
// failures are joined into err as MigrationParseError values.
func run[T any](ctx context.Context, src Source, c domain.Collection, formats []Format[T]) (items []T, found bool, err error) {
	var errs []error
	for _, f := range formats {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, found, errors.Join(append(errs, ctxErr)...)
		}
		raw, ok, lookupErr := src.Lookup(ctx, f.Key)
		if lookupErr != nil {
			found = true
			errs = append(errs, &domain.MigrationParseError{Collection: c, Key: f.Key, Err: lookupErr})
			continue
		}
		if !ok {
			continue
		}
		found = true
		parsed, parseErr := f.Parse(raw)
		if parseErr != nil {
			errs = append(errs, &domain.MigrationParseError{Collection: c, Key: f.Key, Err: parseErr})
			continue
		}
		return parsed, true, errors.Join(errs...)
	}
	return nil, found, errors.Join(errs...)
}
