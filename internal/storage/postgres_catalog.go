package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// PostgresCatalogStore persists one catalog table (devices or units).
type PostgresCatalogStore struct {
	conn  *Connection
	table string
}

// NewPostgresCatalogStore creates a catalog store over the table for kind.
func NewPostgresCatalogStore(conn *Connection, kind CatalogKind) *PostgresCatalogStore {
	table := "devices"
	if kind == CatalogUnits {
		table = "units"
	}

	return &PostgresCatalogStore{conn: conn, table: table}
}

// List returns every item ordered by name.
func (s *PostgresCatalogStore) List(ctx context.Context) ([]*CatalogItem, error) {
	query := fmt.Sprintf(`SELECT id, name, date_added FROM %s ORDER BY name`, s.table)

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, translate(err, "list "+s.table)
	}

	defer func() {
		_ = rows.Close()
	}()

	var items []*CatalogItem

	for rows.Next() {
		var item CatalogItem
		if err := rows.Scan(&item.ID, &item.Name, &item.DateAdded); err != nil {
			return nil, translate(err, "scan "+s.table)
		}

		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, translate(err, "list "+s.table)
	}

	return items, nil
}

// Create inserts an item named name, dated today.
func (s *PostgresCatalogStore) Create(ctx context.Context, name string) (*CatalogItem, error) {
	query := fmt.Sprintf(`INSERT INTO %s (id, name) VALUES ($1, $2) RETURNING id, name, date_added`, s.table)

	var item CatalogItem
	if err := s.conn.QueryRowContext(ctx, query, uuid.NewString(), name).
		Scan(&item.ID, &item.Name, &item.DateAdded); err != nil {
		return nil, translate(err, "create "+s.table)
	}

	return &item, nil
}

// Rename changes the name of the item with id.
func (s *PostgresCatalogStore) Rename(ctx context.Context, id, name string) (*CatalogItem, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%s %s: %w", s.table, id, ErrNotFound)
	}

	query := fmt.Sprintf(`UPDATE %s SET name = $1 WHERE id = $2 RETURNING id, name, date_added`, s.table)

	var item CatalogItem
	if err := s.conn.QueryRowContext(ctx, query, name, id).
		Scan(&item.ID, &item.Name, &item.DateAdded); err != nil {
		return nil, translate(err, "rename "+s.table)
	}

	return &item, nil
}

// Delete removes the item with id.
func (s *PostgresCatalogStore) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("%s %s: %w", s.table, id, ErrNotFound)
	}

	result, err := s.conn.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table), id)
	if err != nil {
		return translate(err, "delete "+s.table)
	}

	return affectedOrNotFound(result, "delete "+s.table)
}
