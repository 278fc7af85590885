package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/chronicleworks/chronicle/internal/engine"
	"github.com/chronicleworks/chronicle/internal/identity"
	"github.com/chronicleworks/chronicle/internal/ledger"
	"github.com/chronicleworks/chronicle/internal/ledger/inmemledger"
	"github.com/chronicleworks/chronicle/internal/policy"
	"github.com/chronicleworks/chronicle/internal/prov/op"
	"github.com/chronicleworks/chronicle/internal/signing"
	"github.com/chronicleworks/chronicle/internal/subscription"
)

// harness wires a Dispatcher against a real inmemledger + engine.State,
// the same pipeline chronicled's own process assembles, so dry-run and
// ledger-apply exercise one code path (inmemledger's own doc comment).
type harness struct {
	d   *Dispatcher
	bus *subscription.Bus
}

func newHarness(t *testing.T, bundle []byte) *harness {
	t.Helper()

	store := signing.NewStore(signing.NewMemoryBackend())
	_, err := store.Generate(signing.NamespaceBatcher, "default")
	require.NoError(t, err)
	_, err = store.Generate(signing.NamespaceChronicle, "default")
	require.NoError(t, err)

	st := engine.New(store)
	l := inmemledger.New(st.ApplyFn)

	gate := policy.NewGate()
	gate.Load(bundle)

	bus := subscription.New()

	d := New(l, store, gate, bus)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	g, gctx := errgroup.WithContext(ctx)
	subscription.RunGroup(gctx, g, bus, l, ledger.Position{Kind: ledger.PositionFirst})
	g.Go(func() error {
		d.RunMirror(gctx)
		return nil
	})

	return &harness{d: d, bus: bus}
}

func TestDispatch_AgentCreate_ReturnsSubmission(t *testing.T) {
	h := newHarness(t, []byte("*"))

	resp, err := h.d.Dispatch(context.Background(), AgentCreate{Namespace: "default", Name: "bobross"}, identity.Chronicle())
	require.NoError(t, err)

	assert.Equal(t, KindSubmission, resp.Kind)
	assert.Equal(t, "chronicle:agent:bobross", resp.Subject)
	assert.NotEmpty(t, resp.CorrelationID)
}

func TestDispatch_RepeatedCommand_ShortCircuitsToAlreadyRecorded(t *testing.T) {
	h := newHarness(t, []byte("*"))
	ctx := context.Background()
	caller := identity.Chronicle()

	first, err := h.d.Dispatch(ctx, AgentCreate{Namespace: "default", Name: "bobross"}, caller)
	require.NoError(t, err)
	require.Equal(t, KindSubmission, first.Kind)

	require.Eventually(t, func() bool {
		resp, err := h.d.Dispatch(ctx, Query{Namespace: "default"}, caller)
		if err != nil {
			return false
		}
		for ns := range resp.Prov.Namespaces {
			if _, ok := resp.Prov.GetAgent(ns, "bobross"); ok {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	second, err := h.d.Dispatch(ctx, AgentCreate{Namespace: "default", Name: "bobross"}, caller)
	require.NoError(t, err)
	assert.Equal(t, KindAlreadyRecorded, second.Kind)
}

func TestDispatch_DeniedByPolicy(t *testing.T) {
	h := newHarness(t, []byte("Agent.Create"))

	_, err := h.d.Dispatch(context.Background(), ActivityCreate{Namespace: "default", Name: "paint"}, identity.Anonymous())
	assert.Error(t, err)
}

func TestDispatch_Query_ReadsThroughMirror(t *testing.T) {
	h := newHarness(t, []byte("*"))
	ctx := context.Background()
	caller := identity.Chronicle()

	_, err := h.d.Dispatch(ctx, AgentCreate{Namespace: "default", Name: "bobross"}, caller)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		resp, err := h.d.Dispatch(ctx, Query{Namespace: "default"}, caller)
		require.NoError(t, err)

		if resp.Kind != KindQueryReply {
			return false
		}

		for ns := range resp.Prov.Namespaces {
			if _, ok := resp.Prov.GetAgent(ns, "bobross"); ok {
				return true
			}
		}

		return false
	}, time.Second, time.Millisecond)
}

func TestDispatch_Import_AppliesRawOperations(t *testing.T) {
	h := newHarness(t, []byte("*"))

	ns := h.d.namespaces.resolve(h.d.snapshot(), "default")

	resp, err := h.d.Dispatch(context.Background(), Import{
		Namespace: "default",
		Ops:       []op.Operation{op.AgentExists{NS: ns, ExternalID: "imported"}},
	}, identity.Chronicle())
	require.NoError(t, err)
	assert.Equal(t, KindImportSubmitted, resp.Kind)
}

func TestDispatch_DepthCharge_ReturnsDepthChargeSubmitted(t *testing.T) {
	h := newHarness(t, []byte("*"))

	resp, err := h.d.Dispatch(context.Background(), DepthCharge{}, identity.Chronicle())
	require.NoError(t, err)
	assert.Equal(t, KindDepthChargeSubmitted, resp.Kind)
}
