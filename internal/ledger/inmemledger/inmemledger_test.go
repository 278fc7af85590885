package inmemledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicleworks/chronicle/internal/ledger"
)

func TestSubmit_CommitsAndAdvancesBlockHeight(t *testing.T) {
	l := New(func(correlationID string, payload []byte) ([]byte, string) {
		return []byte(`{"ok":true}`), ""
	})

	ctx := context.Background()

	sub, err := l.PreSubmit(ctx, []byte("tx"))
	require.NoError(t, err)

	corrID, err := l.Submit(ctx, ledger.Strong, sub)
	require.NoError(t, err)
	assert.Equal(t, sub.CorrelationID(), corrID)

	height, blockID, err := l.BlockHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), height)
	assert.NotEmpty(t, blockID)
}

func TestSubmit_Contradiction_ProducesContradictedEvent(t *testing.T) {
	l := New(func(correlationID string, payload []byte) ([]byte, string) {
		return nil, "conflicting fact"
	})

	ctx := context.Background()

	sub, err := l.PreSubmit(ctx, []byte("tx"))
	require.NoError(t, err)

	_, err = l.Submit(ctx, ledger.Strong, sub)
	require.NoError(t, err)

	ctx2, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := l.StateUpdates(ctx2, ledger.First(), nil)
	require.NoError(t, err)

	ev := <-events
	assert.Equal(t, ledger.EventContradicted, ev.Kind)
	assert.Equal(t, "conflicting fact", ev.Reason)
}

func TestStateUpdates_FromHead_OnlySeesFutureEvents(t *testing.T) {
	l := New(func(correlationID string, payload []byte) ([]byte, string) {
		return []byte("delta-1"), ""
	})

	ctx := context.Background()

	sub, err := l.PreSubmit(ctx, []byte("tx"))
	require.NoError(t, err)
	_, err = l.Submit(ctx, ledger.Strong, sub)
	require.NoError(t, err)

	ctx2, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := l.StateUpdates(ctx2, ledger.Head(), nil)
	require.NoError(t, err)

	sub2, err := l.PreSubmit(ctx, []byte("tx2"))
	require.NoError(t, err)
	_, err = l.Submit(ctx, ledger.Strong, sub2)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, sub2.CorrelationID(), ev.CorrelationID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for post-subscription event")
	}
}

func TestStateUpdates_FromFirst_ReplaysHistory(t *testing.T) {
	l := New(func(correlationID string, payload []byte) ([]byte, string) {
		return []byte("delta"), ""
	})

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		sub, err := l.PreSubmit(ctx, []byte("tx"))
		require.NoError(t, err)
		_, err = l.Submit(ctx, ledger.Strong, sub)
		require.NoError(t, err)
	}

	ctx2, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := l.StateUpdates(ctx2, ledger.First(), nil)
	require.NoError(t, err)

	seen := 0
	for i := 0; i < 3; i++ {
		select {
		case <-events:
			seen++
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for historical replay")
		}
	}

	assert.Equal(t, 3, seen)
}

func TestBlockHeight_EmptyLedger(t *testing.T) {
	l := New(func(string, []byte) ([]byte, string) { return nil, "" })

	height, blockID, err := l.BlockHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), height)
	assert.Empty(t, blockID)
}
