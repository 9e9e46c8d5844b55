package store

import (
	"context"
	"os"
	"testing"

	"github.com/duesjobs/duesjobs/internal/model"
)

// Runs only against a disposable database: the contract test truncates tables.
func TestPostgresStore_Contract(t *testing.T) {
	url := os.Getenv("DUESJOBS_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("DUESJOBS_TEST_POSTGRES_URL not set")
	}

	runStoreContract(t, func(t *testing.T) model.Store {
		ctx := context.Background()
		s, err := NewPostgresStore(ctx, url)
		if err != nil {
			t.Fatalf("NewPostgresStore: %v", err)
		}
		if _, err := s.pool.Exec(ctx,
			"TRUNCATE user_jobs, jobs, user_preferences, fetch_logs RESTART IDENTITY CASCADE"); err != nil {
			t.Fatalf("truncating: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}
