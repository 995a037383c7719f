package bunstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/transseas/conveyor/chat"
)

// UpsertMessages writes all messages in a single transaction, keyed by
// message id: create-if-absent, no-op-if-present. Either every row is
// applied or none are, which is what makes re-running an interrupted
// persistence pass safe.
func (s *Store) UpsertMessages(ctx context.Context, msgs []*chat.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	models := make([]*messageModel, len(msgs))
	for i, m := range msgs {
		models[i] = toMessageModel(m)
	}

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, insErr := tx.NewInsert().
			Model(&models).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		return insErr
	})
	if err != nil {
		return fmt.Errorf("conveyor/bun: upsert %d messages: %w", len(msgs), err)
	}
	return nil
}

// MessagesByConversation returns all persisted messages of a
// conversation ordered oldest first.
func (s *Store) MessagesByConversation(ctx context.Context, conversationID string) ([]*chat.Message, error) {
	var models []messageModel
	err := s.db.NewSelect().
		Model(&models).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("conveyor/bun: list messages for %s: %w", conversationID, err)
	}

	msgs := make([]*chat.Message, len(models))
	for i := range models {
		msgs[i] = fromMessageModel(&models[i])
	}
	return msgs, nil
}
