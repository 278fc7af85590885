package dispatcher

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chronicleworks/chronicle/internal/identity"
	"github.com/chronicleworks/chronicle/internal/ledger"
	"github.com/chronicleworks/chronicle/internal/policy"
	"github.com/chronicleworks/chronicle/internal/prov/apply"
	"github.com/chronicleworks/chronicle/internal/prov/model"
	"github.com/chronicleworks/chronicle/internal/prov/op"
	"github.com/chronicleworks/chronicle/internal/signing"
	"github.com/chronicleworks/chronicle/internal/subscription"
	"github.com/chronicleworks/chronicle/internal/tx"
	"github.com/chronicleworks/chronicle/pkg/chronerr"
	"github.com/chronicleworks/chronicle/pkg/mlog"
)

var (
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chronicle_dispatcher_submissions_total", Help: "Dispatch outcomes by command shape and kind."},
		[]string{"shape", "kind"},
	)
	contradictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chronicle_dispatcher_contradictions_total", Help: "Dry-run contradictions by command shape."},
		[]string{"shape"},
	)
)

func init() {
	prometheus.MustRegister(submissionsTotal, contradictionsTotal)
}

// Dispatcher is the single entry point for the command pipeline (spec
// §4.7): Translate -> Authorize -> Dry-run -> Compose tx -> Submit.
// Await is implemented by callers subscribing on Bus directly — Dispatch
// itself never blocks on commit.
type Dispatcher struct {
	ledger  ledger.Ledger
	signer  *signing.Store
	policy  *policy.Gate
	bus     *subscription.Bus
	namespaces *namespaceResolver

	mu     sync.RWMutex
	mirror *model.Model
}

// New wires a Dispatcher. The returned Dispatcher does not own l's
// lifecycle; the caller is expected to also run bus against l via
// subscription.RunGroup and run Dispatcher.RunMirror (this Dispatcher's
// own bus subscriber) so the read mirror stays current.
func New(l ledger.Ledger, signer *signing.Store, gate *policy.Gate, bus *subscription.Bus) *Dispatcher {
	return &Dispatcher{
		ledger:     l,
		signer:     signer,
		policy:     gate,
		bus:        bus,
		namespaces: newNamespaceResolver(),
		mirror:     model.New(),
	}
}

// RunMirror subscribes to every committed event on d's bus and merges its
// delta into the read mirror used for dry-run and query. Runs until ctx
// is cancelled; callers typically launch this under the same errgroup as
// subscription.RunGroup.
func (d *Dispatcher) RunMirror(ctx context.Context) {
	sub := d.bus.Subscribe("")
	defer d.bus.Unsubscribe(sub)

	for {
		select {
		case delivery, ok := <-sub.C:
			if !ok {
				return
			}

			if delivery.Event.Kind != ledger.EventCommitted || len(delivery.Event.Delta) == 0 {
				continue
			}

			delta, _, err := model.FromExpandedJSON(delivery.Event.Delta)
			if err != nil {
				mlog.FromContext(ctx).Errorf("dispatcher: discarding unparsable delta: %v", err)
				continue
			}

			d.mu.Lock()
			d.mirror.Merge(delta)
			d.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) snapshot() *model.Model {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.mirror.Clone()
}

// Dispatch runs the full command pipeline for cmd on behalf of caller.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command, caller identity.Identity) (Response, error) {
	if q, ok := cmd.(Query); ok {
		return d.runQuery(q, caller)
	}

	shape := cmd.Shape()

	current := d.snapshot()

	nsName := namespaceOf(cmd)
	ns := d.namespaces.resolve(current, nsName)

	ops, err := translate(ns, cmd)
	if err != nil {
		return Response{}, err
	}

	decision := d.policy.Evaluate(caller, ops, shape)
	if !decision.Allow {
		return Response{}, chronerr.PolicyDenied{}
	}

	result, err := apply.Apply(current, ops)
	if err != nil {
		contradictionsTotal.WithLabelValues(shape).Inc()
		return Response{}, err
	}

	if len(result.Delta) == 0 {
		submissionsTotal.WithLabelValues(shape, string(KindAlreadyRecorded)).Inc()
		return Response{Kind: KindAlreadyRecorded, Subject: subject(cmd), Prov: result.Model}, nil
	}

	correlationID, err := d.submit(ctx, caller, ops)
	if err != nil {
		return Response{}, err
	}

	kind := KindSubmission

	switch cmd.(type) {
	case DepthCharge:
		kind = KindDepthChargeSubmitted
	case Import:
		kind = KindImportSubmitted
	}

	submissionsTotal.WithLabelValues(shape, string(kind)).Inc()

	return Response{Kind: kind, Subject: subject(cmd), Prov: result.Model, CorrelationID: correlationID}, nil
}

// submit composes the signed transaction envelope and submits it with
// Strong consistency (spec §4.7 steps 4-5).
func (d *Dispatcher) submit(ctx context.Context, caller identity.Identity, ops []op.Operation) (string, error) {
	signedIdentity, err := identity.Sign(d.signer, caller)
	if err != nil {
		return "", err
	}

	envelope := tx.Envelope{
		Version:        tx.Version,
		CorrelationID:  tx.NewCorrelationID(),
		Payload:        ops,
		SignedIdentity: signedIdentity,
	}

	envelopeBytes, err := tx.Marshal(envelope)
	if err != nil {
		return "", err
	}

	sig, err := d.signer.BatcherSign(envelopeBytes)
	if err != nil {
		return "", err
	}

	payload, err := tx.MarshalSigned(tx.Signed{Envelope: envelopeBytes, Signature: sig})
	if err != nil {
		return "", err
	}

	submittable, err := d.ledger.PreSubmit(ctx, payload)
	if err != nil {
		return "", chronerr.SubmissionError{CorrelationID: envelope.CorrelationID.String(), Err: err}
	}

	correlationID, err := d.ledger.Submit(ctx, ledger.Strong, submittable)
	if err != nil {
		return "", chronerr.SubmissionError{CorrelationID: envelope.CorrelationID.String(), Err: err}
	}

	return correlationID, nil
}

// runQuery is the read-through path (spec §6.4 "query(namespace)"); it
// answers from the dispatcher's own mirror. A deployment with the
// Persistence Projector wired as the system of record for queries should
// read from there instead — the mirror only reflects what this process
// has observed since it started.
func (d *Dispatcher) runQuery(q Query, caller identity.Identity) (Response, error) {
	decision := d.policy.Evaluate(caller, nil, q.Shape())
	if !decision.Allow {
		return Response{}, chronerr.PolicyDenied{}
	}

	return Response{Kind: KindQueryReply, Prov: d.snapshot()}, nil
}

// AwaitCommit subscribes for delivery of the commit (or contradiction)
// event matching correlationID (spec §4.7 step 6). Callers that need to
// know the outcome of a Submission response use this instead of blocking
// inside Dispatch.
func (d *Dispatcher) AwaitCommit(correlationID string) *subscription.Subscriber {
	return d.bus.Subscribe(correlationID)
}
