package catalog

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
)

const productColumns = "id, parent_id, type, status, sku, title, description, price, currency, stock_qty, visible, permalink, image_url"

// Source paginated, id-ordered access to the product catalog. The id column
// is the immutable ascending paging key: rows inserted while a run is in
// flight sort after the current offset, never before it, which is what keeps
// offset pagination monotonic under concurrent catalog mutation.
type Source struct {
	db *sql.DB
}

// NewSource source over an injected database handle
func NewSource(db *sql.DB) *Source {
	return &Source{db: db}
}

// ReadIDsPage raw identifiers for one window of the exportable collection,
// ascending by id. Variations are not part of this collection; they are
// expanded from their parents during materialization.
func (s *Source) ReadIDsPage(ctx context.Context, limit, offset int) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM products WHERE type IN (?, ?) AND status = ? ORDER BY id ASC LIMIT ? OFFSET ?",
		TypeSimple, TypeVariable, StatusPublish, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "query product id page")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan product id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Materialize expand raw identifiers into full products in fetch order.
// Variable parents are replaced by their published variations. The result
// is only empty when ids is: rows deleted between the id page and the load
// are kept as invisible tombstones and dropped during processing, so a
// concurrent purge of a whole window can never look like end of collection.
func (s *Source) Materialize(ctx context.Context, ids []int64) ([]*Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	byID, err := s.loadProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	var items []*Product
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			// row vanished between the id page and the load; a tombstone
			// keeps the batch non-empty so the chain does not terminate
			items = append(items, &Product{ID: id})
			continue
		}
		if p.Type == TypeVariable {
			variations, err := s.loadVariations(ctx, p)
			if err != nil {
				return nil, err
			}
			if len(variations) == 0 {
				// a childless parent still exports as one record
				items = append(items, p)
				continue
			}
			items = append(items, variations...)
			continue
		}
		items = append(items, p)
	}
	return items, nil
}

func (s *Source) loadProducts(ctx context.Context, ids []int64) (map[int64]*Product, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	defer rows.Close()

	byID := make(map[int64]*Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		byID[p.ID] = p
	}
	return byID, rows.Err()
}

func (s *Source) loadVariations(ctx context.Context, parent *Product) ([]*Product, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE parent_id = ? AND type = ? AND status = ? ORDER BY id ASC",
		parent.ID, TypeVariation, StatusPublish)
	if err != nil {
		return nil, errors.Wrapf(err, "query variations of product:%v", parent.ID)
	}
	defer rows.Close()

	var variations []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		// variations inherit presentation fields they leave blank
		if p.Title == "" {
			p.Title = parent.Title
		}
		if p.Description == "" {
			p.Description = parent.Description
		}
		if p.ImageURL == "" {
			p.ImageURL = parent.ImageURL
		}
		variations = append(variations, p)
	}
	return variations, rows.Err()
}

func scanProduct(rows *sql.Rows) (*Product, error) {
	p := &Product{}
	err := rows.Scan(&p.ID, &p.ParentID, &p.Type, &p.Status, &p.SKU, &p.Title, &p.Description,
		&p.Price, &p.Currency, &p.StockQty, &p.Visible, &p.Permalink, &p.ImageURL)
	if err != nil {
		return nil, errors.Wrap(err, "scan product")
	}
	return p, nil
}
