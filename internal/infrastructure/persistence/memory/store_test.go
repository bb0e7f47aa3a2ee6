package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/progress"
	"github.com/Dhanush6858/green-gaurdian/internal/infrastructure/persistence/storetest"
)

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(*testing.T) storetest.Store { return NewStore() })
}

func TestStore_FailSaves(t *testing.T) {
	s := NewStore()
	boom := errors.New("disk full")
	s.FailSaves(boom)

	p := progress.NewUserProgress("inst-1", storetest.Now)
	assert.ErrorIs(t, s.Save(context.Background(), p, 0), boom)
	assert.Zero(t, p.Version)

	s.FailSaves(nil)
	require.NoError(t, s.Save(context.Background(), p, 0))
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStore().Load(ctx, "inst-1")
	assert.ErrorIs(t, err, context.Canceled)
}
