package store

import (
	"context"

	"github.com/google/uuid"
)

// Products reads the minimal catalog fields the payment core needs.
type Products struct {
	DB Querier
}

// Titles returns the display titles for the provided product identifiers.
// Products removed from the catalog are simply absent from the result;
// callers fall back to the order item's snapshot title.
func (s Products) Titles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.DB.Query(ctx, `SELECT id, title FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, err
		}
		out[id] = title
	}
	return out, rows.Err()
}
