package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/shoplist/internal/model"
)

type ItemStore struct {
	db *sql.DB
}

func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{db: db}
}

func scanItem(scanner interface{ Scan(...any) error }) (*model.ShoppingItem, error) {
	var item model.ShoppingItem
	var priority string
	var archived, checked int

	err := scanner.Scan(
		&item.ID, &item.Name, &item.Description, &item.Category, &priority,
		&item.Quantity, &archived, &checked, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Priority = model.ParsePriority(priority)
	item.Archived = archived != 0
	item.Checked = checked != 0
	return &item, nil
}

// storedPriority normalizes p the way scanItem decodes it, so an empty or
// unknown priority is written as MEDIUM.
func storedPriority(p model.Priority) string {
	return model.ParsePriority(string(p)).String()
}

const itemCols = `id, name, description, category, priority, quantity, is_archived, is_checked, created_at`

// itemOrder sorts HIGH before MEDIUM before LOW, then by name. Unknown
// priority text ranks with MEDIUM, matching how it decodes.
const itemOrder = ` ORDER BY CASE priority WHEN 'HIGH' THEN 3 WHEN 'LOW' THEN 1 ELSE 2 END DESC, name ASC`

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *ItemStore) listItems(ctx context.Context, op, where string, args ...any) ([]model.ShoppingItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemCols+` FROM shopping_items WHERE `+where+itemOrder, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	items := []model.ShoppingItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

func (s *ItemStore) GetByID(ctx context.Context, id int64) (*model.ShoppingItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemCols+` FROM shopping_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Insert stores a new item. An item with ID 0 gets a fresh identifier; an
// item carrying an ID replaces whatever row already has that ID. A zero
// CreatedAt is stamped with the current time.
func (s *ItemStore) Insert(ctx context.Context, item model.ShoppingItem) (*model.ShoppingItem, error) {
	var id any
	if item.ID != 0 {
		id = item.ID
	}
	if item.CreatedAt == 0 {
		item.CreatedAt = time.Now().UnixMilli()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO shopping_items (`+itemCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, item.Name, item.Description, item.Category, storedPriority(item.Priority),
		item.Quantity, boolInt(item.Archived), boolInt(item.Checked), item.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	newID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, newID)
}

// Update replaces every mutable column of the row keyed by item.ID. A zero
// CreatedAt keeps the stored one. It is a no-op when no such row exists.
func (s *ItemStore) Update(ctx context.Context, item model.ShoppingItem) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE shopping_items SET name = ?, description = ?, category = ?, priority = ?, quantity = ?, is_archived = ?, is_checked = ?, created_at = COALESCE(NULLIF(?, 0), created_at) WHERE id = ?`,
		item.Name, item.Description, item.Category, storedPriority(item.Priority),
		item.Quantity, boolInt(item.Archived), boolInt(item.Checked), item.CreatedAt, item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

func (s *ItemStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM shopping_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// DeleteArchived permanently removes every archived item and returns how
// many rows went.
func (s *ItemStore) DeleteArchived(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM shopping_items WHERE is_archived = 1`)
	if err != nil {
		return 0, fmt.Errorf("delete archived: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

func (s *ItemStore) ListActive(ctx context.Context) ([]model.ShoppingItem, error) {
	return s.listItems(ctx, "list active items", `is_archived = 0`)
}

func (s *ItemStore) ListArchived(ctx context.Context) ([]model.ShoppingItem, error) {
	return s.listItems(ctx, "list archived items", `is_archived = 1`)
}

// ListByPriority returns active items that decode as p. Rows holding text
// other than HIGH or LOW count as MEDIUM.
func (s *ItemStore) ListByPriority(ctx context.Context, p model.Priority) ([]model.ShoppingItem, error) {
	p = model.ParsePriority(string(p))
	if p == model.PriorityMedium {
		return s.listItems(ctx, "list items by priority", `is_archived = 0 AND priority NOT IN ('HIGH', 'LOW')`)
	}
	return s.listItems(ctx, "list items by priority", `is_archived = 0 AND priority = ?`, p.String())
}

func (s *ItemStore) ListByCategory(ctx context.Context, category string) ([]model.ShoppingItem, error) {
	return s.listItems(ctx, "list items by category", `is_archived = 0 AND category = ?`, category)
}

// Search matches active items whose name or description contains query,
// ignoring case. LIKE wildcards in query are matched literally.
func (s *ItemStore) Search(ctx context.Context, query string) ([]model.ShoppingItem, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	return s.listItems(ctx, "search items",
		`is_archived = 0 AND (lower(name) LIKE ? ESCAPE '\' OR lower(description) LIKE ? ESCAPE '\')`,
		pattern, pattern,
	)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ListCategories returns the distinct, non-empty categories of active items
// in ascending order.
func (s *ItemStore) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM shopping_items WHERE is_archived = 0 AND category != '' ORDER BY category ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (s *ItemStore) CountActive(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM shopping_items WHERE is_archived = 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active: %w", err)
	}
	return count, nil
}
