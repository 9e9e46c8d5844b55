package store

import (
	"testing"

	"github.com/duesjobs/duesjobs/internal/model"
)

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) model.Store { return NewMemoryStore() })
}
