package membership

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vovakirdan/wirechat-fanout/internal/core"
	"github.com/vovakirdan/wirechat-fanout/internal/core/mocks"
	"github.com/vovakirdan/wirechat-fanout/internal/store"
)

func TestGuardedPassesThroughMembers(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockMembershipProvider(ctrl)
	g := NewGuarded(next, Settings{Timeout: time.Second, MaxFailures: 2, OpenTimeout: time.Minute}, nil)

	next.EXPECT().ActiveParticipants(gomock.Any(), int64(1)).Return([]int64{1, 2}, nil).Times(2)

	for range 2 {
		members, err := g.ActiveParticipants(context.Background(), 1)
		require.NoError(t, err)
		require.Equal(t, []int64{1, 2}, members)
	}
}

func TestGuardedNotFoundDoesNotTrip(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	next := mocks.NewMockMembershipProvider(ctrl)
	g := NewGuarded(next, Settings{MaxFailures: 2, OpenTimeout: time.Minute}, nil)

	next.EXPECT().ActiveParticipants(gomock.Any(), int64(9)).Return(nil, store.ErrNotFound).Times(5)

	for range 5 {
		_, err := g.ActiveParticipants(context.Background(), 9)
		req.ErrorIs(err, store.ErrNotFound)
		req.NotErrorIs(err, core.ErrMembershipResolution)
	}
	req.Equal("closed", g.State())
}

func TestGuardedOpensAfterConsecutiveFailures(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	next := mocks.NewMockMembershipProvider(ctrl)
	g := NewGuarded(next, Settings{MaxFailures: 2, OpenTimeout: time.Minute}, nil)

	// Given the provider fails twice
	next.EXPECT().ActiveParticipants(gomock.Any(), gomock.Any()).Return(nil, errors.New("db locked")).Times(2)

	for range 2 {
		_, err := g.ActiveParticipants(context.Background(), 1)
		req.ErrorIs(err, core.ErrMembershipResolution)
	}

	// Then the breaker opens and the provider is no longer called
	_, err := g.ActiveParticipants(context.Background(), 1)
	req.ErrorIs(err, core.ErrMembershipResolution)
	req.Equal("open", g.State())
}

func TestGuardedAppliesTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockMembershipProvider(ctrl)
	g := NewGuarded(next, Settings{Timeout: 10 * time.Millisecond, MaxFailures: 5, OpenTimeout: time.Minute}, nil)

	next.EXPECT().
		ActiveParticipants(gomock.Any(), int64(1)).
		DoAndReturn(func(ctx context.Context, _ int64) ([]int64, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).
		Times(1)

	_, err := g.ActiveParticipants(context.Background(), 1)
	require.ErrorIs(t, err, core.ErrMembershipResolution)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
