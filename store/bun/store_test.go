//go:build integration

package bunstore_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/transseas/conveyor/chat"
	"github.com/transseas/conveyor/mail"
	bunstore "github.com/transseas/conveyor/store/bun"
)

// setupTestStore creates a Postgres container and returns a connected
// Bun Store.
func setupTestStore(t *testing.T) *bunstore.Store {
	t.Helper()

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("conveyor_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	sqldb, err := sql.Open("pgx", connStr)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	store := bunstore.New(db)
	if migErr := store.Migrate(ctx); migErr != nil {
		t.Fatalf("migrate: %v", migErr)
	}
	return store
}

func TestStore_Ping(t *testing.T) {
	s := setupTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestStore_MigrateIdempotent(t *testing.T) {
	s := setupTestStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestUpsertMessages_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	msgs := []*chat.Message{
		{ID: "msg-1", SenderID: "u1", ReceiverID: "u2", Content: "hi", ConversationID: "conv-1", CreatedAt: base},
		{ID: "msg-2", SenderID: "u2", ReceiverID: "u1", Content: "hello", ConversationID: "conv-1", CreatedAt: base.Add(time.Minute)},
	}

	if err := s.UpsertMessages(ctx, msgs); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// Re-running the same batch writes no duplicates.
	if err := s.UpsertMessages(ctx, msgs); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.MessagesByConversation(ctx, "conv-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].ID != "msg-1" || got[1].ID != "msg-2" {
		t.Fatalf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestUpsertMessages_ExistingRowsUntouched(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	first := []*chat.Message{
		{ID: "msg-1", SenderID: "u1", ReceiverID: "u2", Content: "original", ConversationID: "conv-1", CreatedAt: now},
	}
	if err := s.UpsertMessages(ctx, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// A second batch with the same id but different content must not
	// overwrite the first write.
	second := []*chat.Message{
		{ID: "msg-1", SenderID: "u1", ReceiverID: "u2", Content: "changed", ConversationID: "conv-1", CreatedAt: now},
	}
	if err := s.UpsertMessages(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.MessagesByConversation(ctx, "conv-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1", len(got))
	}
	if got[0].Content != "original" {
		t.Fatalf("content = %q, want first write preserved", got[0].Content)
	}
}

func TestUpsertMessages_ProducerShape(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// Messages as a producer would create them: generated ids, wall time.
	msgs := []*chat.Message{}
	for _, content := range []string{"hi", "how is the RFQ going"} {
		m := chat.NewMessage("u1", "u2", content, "conv-p")
		msgs = append(msgs, &m)
	}

	if err := s.UpsertMessages(ctx, msgs); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.MessagesByConversation(ctx, "conv-p")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].ID == got[1].ID {
		t.Fatal("expected distinct generated ids")
	}
}

func TestFindItemsByIDs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	seed := []mail.Item{
		{ID: "item-1", Title: "Ball Valve", Code: "BV-100", Manufacturer: "Acme", Quantity: 4, Unit: "pcs", Price: 120.50},
		{ID: "item-2", Title: "Gasket Kit", Code: "GK-20", Manufacturer: "Acme", Quantity: 10, Unit: "sets", Price: 8.75},
		{ID: "item-3", Title: "Flange", Code: "FL-8", Quantity: 2, Unit: "pcs"},
	}
	if err := s.InsertItems(ctx, seed); err != nil {
		t.Fatalf("insert items: %v", err)
	}

	items, err := s.FindItemsByIDs(ctx, []string{"item-1", "item-3", "item-missing"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Title != "Ball Valve" {
		t.Errorf("first item = %q", items[0].Title)
	}

	// No ids means no lookup.
	items, err = s.FindItemsByIDs(ctx, nil)
	if err != nil {
		t.Fatalf("find empty: %v", err)
	}
	if items != nil {
		t.Fatalf("expected nil for empty id list, got %v", items)
	}
}
