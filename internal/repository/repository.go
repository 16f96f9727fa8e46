package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/shoplist/internal/metrics"
	"github.com/dukerupert/shoplist/internal/model"
)

// ItemStore is the persistence the repository drives. *store.ItemStore
// implements it.
type ItemStore interface {
	Insert(ctx context.Context, item model.ShoppingItem) (*model.ShoppingItem, error)
	Update(ctx context.Context, item model.ShoppingItem) error
	Delete(ctx context.Context, id int64) error
	DeleteArchived(ctx context.Context) (int64, error)
	ListActive(ctx context.Context) ([]model.ShoppingItem, error)
	ListArchived(ctx context.Context) ([]model.ShoppingItem, error)
	ListByPriority(ctx context.Context, p model.Priority) ([]model.ShoppingItem, error)
	ListByCategory(ctx context.Context, category string) ([]model.ShoppingItem, error)
	Search(ctx context.Context, query string) ([]model.ShoppingItem, error)
	ListCategories(ctx context.Context) ([]string, error)
}

// Repository translates item operations into store calls and republishes
// every query as a live Stream. Mutations notify all open streams once they
// commit.
type Repository struct {
	items   ItemStore
	changes *Notifier
	metrics metrics.Recorder
	logger  *slog.Logger
}

func New(items ItemStore, rec metrics.Recorder, logger *slog.Logger) *Repository {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		items:   items,
		changes: NewNotifier(),
		metrics: rec,
		logger:  logger,
	}
}

func (r *Repository) observe(op string, start time.Time, err error) {
	r.metrics.ObserveStoreOp(op, time.Since(start), err)
	if err != nil {
		r.logger.Debug("store operation failed", "op", op, "error", err)
	}
}

func (r *Repository) mutate(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	r.observe(op, start, err)
	if err != nil {
		return err
	}
	r.changes.Notify()
	return nil
}

func timed[T any](r *Repository, op string, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		start := time.Now()
		v, err := fn(ctx)
		r.observe(op, start, err)
		return v, err
	}
}

// ActiveItems streams unarchived items in display order.
func (r *Repository) ActiveItems(ctx context.Context) *Stream[[]model.ShoppingItem] {
	return newStream(ctx, r, timed(r, "list_active", r.items.ListActive))
}

// ArchivedItems streams archived items in display order.
func (r *Repository) ArchivedItems(ctx context.Context) *Stream[[]model.ShoppingItem] {
	return newStream(ctx, r, timed(r, "list_archived", r.items.ListArchived))
}

// Categories streams the sorted, distinct, non-empty categories of active
// items.
func (r *Repository) Categories(ctx context.Context) *Stream[[]string] {
	return newStream(ctx, r, timed(r, "list_categories", r.items.ListCategories))
}

// FilteredItems streams active items narrowed by f. See Filter for the
// precedence between criteria.
func (r *Repository) FilteredItems(ctx context.Context, f Filter) *Stream[[]model.ShoppingItem] {
	return newStream(ctx, r, r.filterQuery(f))
}

func (r *Repository) filterQuery(f Filter) func(context.Context) ([]model.ShoppingItem, error) {
	switch f.Mode() {
	case FilterSearch:
		q := f.Search
		return timed(r, "search", func(ctx context.Context) ([]model.ShoppingItem, error) {
			return r.items.Search(ctx, q)
		})
	case FilterPriority:
		p := *f.Priority
		return timed(r, "list_by_priority", func(ctx context.Context) ([]model.ShoppingItem, error) {
			return r.items.ListByPriority(ctx, p)
		})
	case FilterCategory:
		c := *f.Category
		return timed(r, "list_by_category", func(ctx context.Context) ([]model.ShoppingItem, error) {
			return r.items.ListByCategory(ctx, c)
		})
	default:
		return timed(r, "list_active", r.items.ListActive)
	}
}

// Insert stores item. A zero ID gets a fresh identifier; a colliding ID
// overwrites the existing row.
func (r *Repository) Insert(ctx context.Context, item model.ShoppingItem) (*model.ShoppingItem, error) {
	var saved *model.ShoppingItem
	err := r.mutate(ctx, "insert", func(ctx context.Context) error {
		var err error
		saved, err = r.items.Insert(ctx, item)
		return err
	})
	return saved, err
}

func (r *Repository) Update(ctx context.Context, item model.ShoppingItem) error {
	return r.mutate(ctx, "update", func(ctx context.Context) error {
		return r.items.Update(ctx, item)
	})
}

// Delete removes item by ID. Deleting an item that no longer exists is not
// an error.
func (r *Repository) Delete(ctx context.Context, item model.ShoppingItem) error {
	return r.mutate(ctx, "delete", func(ctx context.Context) error {
		return r.items.Delete(ctx, item.ID)
	})
}

// Archive replaces item with its archived copy.
func (r *Repository) Archive(ctx context.Context, item model.ShoppingItem) error {
	item.Archived = true
	return r.mutate(ctx, "archive", func(ctx context.Context) error {
		return r.items.Update(ctx, item)
	})
}

// Restore replaces item with its unarchived copy.
func (r *Repository) Restore(ctx context.Context, item model.ShoppingItem) error {
	item.Archived = false
	return r.mutate(ctx, "restore", func(ctx context.Context) error {
		return r.items.Update(ctx, item)
	})
}

// ToggleChecked replaces item with Checked flipped and returns the record
// as written.
func (r *Repository) ToggleChecked(ctx context.Context, item model.ShoppingItem) (model.ShoppingItem, error) {
	item.Checked = !item.Checked
	err := r.mutate(ctx, "toggle_checked", func(ctx context.Context) error {
		return r.items.Update(ctx, item)
	})
	return item, err
}

// DeleteAllArchived permanently removes every archived item.
func (r *Repository) DeleteAllArchived(ctx context.Context) (int64, error) {
	var n int64
	err := r.mutate(ctx, "delete_archived", func(ctx context.Context) error {
		var err error
		n, err = r.items.DeleteArchived(ctx)
		return err
	})
	return n, err
}
