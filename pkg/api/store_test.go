package api

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/kex"
	"github.com/pzverkov/quantum-vault/pkg/metrics"
	"github.com/pzverkov/quantum-vault/pkg/session"
)

func newStoreSession(t *testing.T, collector *metrics.Collector) *session.Session {
	t.Helper()
	s, err := session.New(
		session.WithRegistry(kex.NewRegistry(kex.NewKyber(nil))),
		session.WithCollector(collector),
		session.WithLogger(metrics.NullLogger()),
	)
	require.NoError(t, err)
	return s
}

func TestStoreAddGetDelete(t *testing.T) {
	collector := metrics.NewCollector(nil)
	st := NewStore(time.Minute, time.Minute, 0)
	defer st.Close()

	s := newStoreSession(t, collector)
	require.NoError(t, st.Add(s))
	assert.Error(t, st.Add(s), "duplicate id")
	assert.Equal(t, 1, st.Len())

	got, err := st.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = st.Get("missing")
	assert.True(t, qerrors.Is(err, qerrors.ErrSessionNotFound))

	require.NoError(t, st.Delete(s.ID()))
	assert.Equal(t, 0, st.Len())
	assert.True(t, qerrors.Is(st.Delete(s.ID()), qerrors.ErrSessionNotFound))

	_, err = s.GenerateKeys(context.Background(), kex.Kyber)
	assert.True(t, qerrors.Is(err, qerrors.ErrSessionClosed), "deleted sessions are closed")
	assert.Equal(t, uint64(0), collector.Snapshot().SessionsActive)
}

func TestStoreGetDoesNotRestoreDeleted(t *testing.T) {
	for round := 0; round < 50; round++ {
		st := NewStore(time.Minute, time.Minute, 0)
		s := newStoreSession(t, metrics.NewCollector(nil))
		require.NoError(t, st.Add(s))

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					if _, err := st.Get(s.ID()); err != nil {
						return
					}
				}
			}()
		}
		require.NoError(t, st.Delete(s.ID()))
		wg.Wait()

		assert.Equal(t, 0, st.Len(), "round %d", round)
		_, err := st.Get(s.ID())
		assert.True(t, qerrors.Is(err, qerrors.ErrSessionNotFound))
		st.Close()
	}
}

func TestStoreExpiryClosesSessions(t *testing.T) {
	st := NewStore(20*time.Millisecond, 5*time.Millisecond, 0)
	defer st.Close()

	s := newStoreSession(t, metrics.NewCollector(nil))
	require.NoError(t, st.Add(s))

	require.Eventually(t, func() bool {
		_, err := s.GenerateKeys(context.Background(), kex.Kyber)
		return qerrors.Is(err, qerrors.ErrSessionClosed)
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 0, st.Len())
	assert.Equal(t, session.StateUninitialized, s.State(kex.Kyber))
}

func TestStoreLimit(t *testing.T) {
	collector := metrics.NewCollector(nil)
	st := NewStore(time.Minute, time.Minute, 2)
	defer st.Close()

	require.NoError(t, st.Add(newStoreSession(t, collector)))
	require.NoError(t, st.Add(newStoreSession(t, collector)))

	extra := newStoreSession(t, collector)
	defer extra.Close()
	err := st.Add(extra)
	assert.ErrorIs(t, err, ErrTooManySessions)
}

func TestStoreClose(t *testing.T) {
	collector := metrics.NewCollector(nil)
	st := NewStore(time.Minute, time.Minute, 0)

	for i := 0; i < 3; i++ {
		require.NoError(t, st.Add(newStoreSession(t, collector)))
	}
	assert.Equal(t, uint64(3), collector.Snapshot().SessionsActive)

	st.Close()
	assert.Equal(t, 0, st.Len())
	assert.Equal(t, uint64(0), collector.Snapshot().SessionsActive)
}
