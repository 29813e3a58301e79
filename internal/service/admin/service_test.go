package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/kirinyoku/quicktix/internal/domain"
	"github.com/kirinyoku/quicktix/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type cacheMock struct {
	mock.Mock
}

func (m *cacheMock) InvalidateEvent(ctx context.Context, eventID int64, slug string) error {
	return m.Called(ctx, eventID, slug).Error(0)
}

type reclaimerFunc func(ctx context.Context) (int, error)

func (f reclaimerFunc) Reclaim(ctx context.Context) (int, error) { return f(ctx) }

func TestDeactivateAndActivate(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	id, err := store.Events().Create(ctx, &domain.Event{Name: "Rock Night", Slug: "rock-night"})
	require.NoError(t, err)

	cache := &cacheMock{}
	cache.On("InvalidateEvent", mock.Anything, id, "rock-night").Return(errors.New("redis down")).Twice()

	svc := New(store, cache, nil, nil, nil)

	require.NoError(t, svc.DeactivateEvent(ctx, id))
	ev, err := store.Events().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.EventInactive, ev.Status)

	require.NoError(t, svc.ActivateEvent(ctx, id))
	ev, err = store.Events().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.EventActive, ev.Status)

	cache.AssertExpectations(t)
}

func TestSetStatusUnknownEvent(t *testing.T) {
	svc := New(memory.New(), nil, nil, nil, nil)

	err := svc.ActivateEvent(context.Background(), 404)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestReclaimHolds(t *testing.T) {
	svc := New(memory.New(), nil, nil, reclaimerFunc(func(context.Context) (int, error) {
		return 3, nil
	}), nil)

	n, err := svc.ReclaimHolds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
