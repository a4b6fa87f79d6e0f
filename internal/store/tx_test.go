package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInTx_RollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := inTx(ctx, s.db, func(tx execer) error {
		require.NoError(t, put(ctx, tx, "k", "v"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInTx_RollsBackAndRepanics(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.PanicsWithValue(t, "kaboom", func() {
		_ = inTx(ctx, s.db, func(tx execer) error {
			require.NoError(t, put(ctx, tx, "k", "v"))
			panic("kaboom")
		})
	})

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInTx_Commits(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, inTx(ctx, s.db, func(tx execer) error {
		return put(ctx, tx, "k", "v")
	}))

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)
}
