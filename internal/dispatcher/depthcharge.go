package dispatcher

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chronicleworks/chronicle/internal/identity"
	"github.com/chronicleworks/chronicle/internal/ledger"
	"github.com/chronicleworks/chronicle/pkg/mlog"
)

var depthChargeLatency = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "chronicle_depth_charge_latency_seconds",
	Help: "Round-trip latency of the most recent depth-charge commit.",
})

func init() {
	prometheus.MustRegister(depthChargeLatency)
}

// RunDepthCharge submits a DepthCharge command every interval until ctx
// is cancelled, recording the submit-to-commit round trip as a liveness
// gauge (spec §4.7, SPEC_FULL §12 item 1). Commit latency is measured by
// awaiting the submission's own correlation id on the bus rather than
// assuming Submit's return implies commit, since Weak-consistency ledgers
// may return before finality. The subscription is opened before
// dispatching because the commit event can be published before Dispatch
// returns, and the bus does not replay past events.
func RunDepthCharge(ctx context.Context, d *Dispatcher, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			charge(ctx, d)
		case <-ctx.Done():
			return
		}
	}
}

func charge(ctx context.Context, d *Dispatcher) {
	start := clockNow()

	sub := d.bus.Subscribe("")
	defer d.bus.Unsubscribe(sub)

	resp, err := d.Dispatch(ctx, DepthCharge{}, identity.Chronicle())
	if err != nil {
		mlog.FromContext(ctx).Warnf("depth charge submission failed: %v", err)
		return
	}

	timeout := time.After(30 * time.Second)

	for {
		select {
		case delivery := <-sub.C:
			if delivery.Event.CorrelationID != resp.CorrelationID {
				continue
			}

			if delivery.Event.Kind == ledger.EventCommitted {
				depthChargeLatency.Set(clockNow().Sub(start).Seconds())
			}
		case <-ctx.Done():
		case <-timeout:
			mlog.FromContext(ctx).Warnf("depth charge %s did not commit within 30s", resp.CorrelationID)
		}

		return
	}
}

func clockNow() time.Time { return time.Now() }
