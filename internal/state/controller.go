package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dukerupert/shoplist/internal/metrics"
	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/repository"
)

// Intent names, shared with the transport layer and metrics labels.
const (
	IntentAddItem             = "add_item"
	IntentUpdateItem          = "update_item"
	IntentDeleteItem          = "delete_item"
	IntentToggleChecked       = "toggle_checked"
	IntentArchiveItem         = "archive_item"
	IntentRestoreItem         = "restore_item"
	IntentDeleteAllArchived   = "delete_all_archived"
	IntentSetSearchQuery      = "set_search_query"
	IntentSetSelectedPriority = "set_selected_priority"
	IntentSetSelectedCategory = "set_selected_category"
	IntentClearError          = "clear_error"
)

const intentQueueSize = 64

// ErrClosed is returned by Flush once the controller has been closed.
var ErrClosed = errors.New("state: controller closed")

// Repository is the part of *repository.Repository a Controller drives.
type Repository interface {
	FilteredItems(ctx context.Context, f repository.Filter) *repository.Stream[[]model.ShoppingItem]
	ArchivedItems(ctx context.Context) *repository.Stream[[]model.ShoppingItem]
	Categories(ctx context.Context) *repository.Stream[[]string]
	Insert(ctx context.Context, item model.ShoppingItem) (*model.ShoppingItem, error)
	Update(ctx context.Context, item model.ShoppingItem) error
	Delete(ctx context.Context, item model.ShoppingItem) error
	Archive(ctx context.Context, item model.ShoppingItem) error
	Restore(ctx context.Context, item model.ShoppingItem) error
	ToggleChecked(ctx context.Context, item model.ShoppingItem) (model.ShoppingItem, error)
	DeleteAllArchived(ctx context.Context) (int64, error)
}

// Controller owns one published State and the intents that change it.
// Intents return immediately; a single worker applies them in call order.
// Repository failures land in State.Error and are never returned.
type Controller struct {
	repo    Repository
	metrics metrics.Recorder
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	observers map[chan State]struct{}
	filterGen uint64
	filtered  *repository.Stream[[]model.ShoppingItem]

	intents   chan func(context.Context)
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New starts a controller: the filtered, archived and category streams are
// subscribed for its whole lifetime. Call Close to release them.
func New(repo Repository, rec metrics.Recorder, logger *slog.Logger) *Controller {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		repo:      repo,
		metrics:   rec,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		observers: make(map[chan State]struct{}),
		intents:   make(chan func(context.Context), intentQueueSize),
		state: State{
			Items:         []model.ShoppingItem{},
			ArchivedItems: []model.ShoppingItem{},
			Categories:    []string{},
		},
	}

	c.wg.Add(1)
	go c.work()

	c.reloadFiltered()

	archived := repo.ArchivedItems(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for items := range archived.C() {
			c.update(func(s *State) { s.ArchivedItems = items })
		}
		c.streamFailed("Failed to load archived items", archived.Err())
	}()

	categories := repo.Categories(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for cats := range categories.C() {
			c.update(func(s *State) { s.Categories = cats })
		}
		c.streamFailed("Failed to load categories", categories.Err())
	}()

	return c
}

func (c *Controller) work() {
	defer c.wg.Done()
	for {
		select {
		case fn := <-c.intents:
			fn(c.ctx)
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Controller) enqueue(fn func(context.Context)) {
	select {
	case c.intents <- fn:
	case <-c.ctx.Done():
	}
}

// update applies fn to the snapshot and publishes the result.
func (c *Controller) update(fn func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
	c.publishLocked()
}

func (c *Controller) publishLocked() {
	snap := c.state.clone()
	for ch := range c.observers {
		// Observers only ever need the latest snapshot.
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// setError attaches "msg: err" to the snapshot and leaves every other
// field as it was.
func (c *Controller) setError(msg string, err error) {
	text := fmt.Sprintf("%s: %v", msg, err)
	c.update(func(s *State) {
		s.Error = &text
	})
}

// streamFailed reports a live query that ended with an error. Nothing more
// will arrive from it, so Loading is cleared as well.
func (c *Controller) streamFailed(msg string, err error) {
	if err == nil || c.ctx.Err() != nil {
		return
	}
	c.logger.Error("live query failed", "query", msg, "error", err)
	text := fmt.Sprintf("%s: %v", msg, err)
	c.update(func(s *State) {
		s.Error = &text
		s.Loading = false
	})
}

// reloadFiltered replaces the filtered stream with one for the current
// filter. Results from earlier generations are discarded.
func (c *Controller) reloadFiltered() {
	c.mu.Lock()
	c.filterGen++
	gen := c.filterGen
	filter := repository.Filter{
		Search:   c.state.SearchQuery,
		Priority: c.state.SelectedPriority,
		Category: c.state.SelectedCategory,
	}
	old := c.filtered
	c.state.Loading = true
	c.publishLocked()
	c.mu.Unlock()

	if old != nil {
		old.Cancel()
	}

	s := c.repo.FilteredItems(c.ctx, filter)

	c.mu.Lock()
	if gen == c.filterGen {
		c.filtered = s
	}
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for items := range s.C() {
			c.mu.Lock()
			if gen == c.filterGen {
				c.state.Items = items
				c.state.Loading = false
				c.publishLocked()
			}
			c.mu.Unlock()
		}

		c.mu.Lock()
		current := gen == c.filterGen
		c.mu.Unlock()
		if current {
			c.streamFailed("Failed to load items", s.Err())
		}
	}()
}

// mutation queues a repository call. The previous error is cleared first;
// a failure sets State.Error to failMsg and the cause.
func (c *Controller) mutation(intent, failMsg string, fn func(context.Context) error) {
	c.enqueue(func(ctx context.Context) {
		c.metrics.RecordIntent(intent)
		c.update(func(s *State) { s.Error = nil })

		if err := fn(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.metrics.RecordIntentFailure(intent)
			c.logger.Warn("intent failed", "intent", intent, "error", err)
			c.setError(failMsg, err)
		}
	})
}

// AddItem stores a new item. Items with a blank name or a non-positive
// quantity are ignored.
func (c *Controller) AddItem(item model.ShoppingItem) {
	if strings.TrimSpace(item.Name) == "" || item.Quantity <= 0 {
		c.logger.Debug("add item rejected", "name", item.Name, "quantity", item.Quantity)
		return
	}
	c.mutation(IntentAddItem, "Failed to add item", func(ctx context.Context) error {
		_, err := c.repo.Insert(ctx, item)
		return err
	})
}

func (c *Controller) UpdateItem(item model.ShoppingItem) {
	c.mutation(IntentUpdateItem, "Failed to update item", func(ctx context.Context) error {
		return c.repo.Update(ctx, item)
	})
}

func (c *Controller) DeleteItem(item model.ShoppingItem) {
	c.mutation(IntentDeleteItem, "Failed to delete item", func(ctx context.Context) error {
		return c.repo.Delete(ctx, item)
	})
}

func (c *Controller) ToggleChecked(item model.ShoppingItem) {
	c.mutation(IntentToggleChecked, "Failed to update item", func(ctx context.Context) error {
		_, err := c.repo.ToggleChecked(ctx, item)
		return err
	})
}

func (c *Controller) ArchiveItem(item model.ShoppingItem) {
	c.mutation(IntentArchiveItem, "Failed to archive item", func(ctx context.Context) error {
		return c.repo.Archive(ctx, item)
	})
}

func (c *Controller) RestoreItem(item model.ShoppingItem) {
	c.mutation(IntentRestoreItem, "Failed to restore item", func(ctx context.Context) error {
		return c.repo.Restore(ctx, item)
	})
}

// DeleteAllArchived permanently removes every archived item. Confirmation
// is up to the caller.
func (c *Controller) DeleteAllArchived() {
	c.mutation(IntentDeleteAllArchived, "Failed to delete archived items", func(ctx context.Context) error {
		n, err := c.repo.DeleteAllArchived(ctx)
		if err == nil {
			c.logger.Info("archived items deleted", "count", n)
		}
		return err
	})
}

func (c *Controller) SetSearchQuery(text string) {
	c.enqueue(func(context.Context) {
		c.metrics.RecordIntent(IntentSetSearchQuery)
		c.mu.Lock()
		c.state.SearchQuery = text
		c.mu.Unlock()
		c.reloadFiltered()
	})
}

// SetSelectedPriority sets the priority filter; nil clears it.
func (c *Controller) SetSelectedPriority(p *model.Priority) {
	if p != nil {
		v := *p
		p = &v
	}
	c.enqueue(func(context.Context) {
		c.metrics.RecordIntent(IntentSetSelectedPriority)
		c.mu.Lock()
		c.state.SelectedPriority = p
		c.mu.Unlock()
		c.reloadFiltered()
	})
}

// SetSelectedCategory sets the category filter; nil clears it.
func (c *Controller) SetSelectedCategory(category *string) {
	if category != nil {
		v := *category
		category = &v
	}
	c.enqueue(func(context.Context) {
		c.metrics.RecordIntent(IntentSetSelectedCategory)
		c.mu.Lock()
		c.state.SelectedCategory = category
		c.mu.Unlock()
		c.reloadFiltered()
	})
}

func (c *Controller) ClearError() {
	c.enqueue(func(context.Context) {
		c.metrics.RecordIntent(IntentClearError)
		c.update(func(s *State) { s.Error = nil })
	})
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe returns a channel that receives the current snapshot at once and
// then every later one. A slow reader skips to the newest snapshot. The
// returned func unsubscribes; the channel is also closed by Close.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	select {
	case <-c.ctx.Done():
		close(ch)
		c.mu.Unlock()
		return ch, func() {}
	default:
	}
	c.observers[ch] = struct{}{}
	ch <- c.state.clone()
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.observers[ch]; ok {
			delete(c.observers, ch)
			close(ch)
		}
	}
}

// Flush blocks until every intent queued before the call has been applied.
func (c *Controller) Flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case c.intents <- func(context.Context) { close(done) }:
	case <-c.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-c.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels every stream, stops the worker and closes observer
// channels. Intents still queued are dropped. Safe to call more than once.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.wg.Wait()

		c.mu.Lock()
		for ch := range c.observers {
			delete(c.observers, ch)
			close(ch)
		}
		c.mu.Unlock()
	})
}
