package bunstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/transseas/conveyor/mail"
)

// FindItemsByIDs returns the RFQ line items matching the given ids.
// Unknown ids are skipped, not an error; the caller decides what an
// empty result means.
func (s *Store) FindItemsByIDs(ctx context.Context, ids []string) ([]mail.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var models []itemModel
	err := s.db.NewSelect().
		Model(&models).
		Where("id IN (?)", bun.In(ids)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("conveyor/bun: find items: %w", err)
	}

	items := make([]mail.Item, len(models))
	for i := range models {
		items[i] = fromItemModel(&models[i])
	}
	return items, nil
}

// InsertItems writes line items. Used by seeding and tests; the main
// write path for items lives in the procurement API, not this worker.
func (s *Store) InsertItems(ctx context.Context, items []mail.Item) error {
	if len(items) == 0 {
		return nil
	}

	models := make([]*itemModel, len(items))
	for i, it := range items {
		models[i] = &itemModel{
			ID:             it.ID,
			Title:          it.Title,
			Code:           it.Code,
			Manufacturer:   it.Manufacturer,
			Quantity:       it.Quantity,
			Unit:           it.Unit,
			Price:          it.Price,
			Specifications: it.Specifications,
			Status:         it.Status,
		}
	}

	if _, err := s.db.NewInsert().Model(&models).Exec(ctx); err != nil {
		return fmt.Errorf("conveyor/bun: insert items: %w", err)
	}
	return nil
}
