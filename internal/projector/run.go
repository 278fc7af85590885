package projector

import (
	"context"

	"github.com/cenkalti/backoff/v4"

	"github.com/chronicleworks/chronicle/internal/ledger"
	"github.com/chronicleworks/chronicle/pkg/mlog"
)

// Run reads l's StateUpdates stream from the projector's last checkpoint
// and projects every event until ctx is cancelled (spec §4.8:
// "checkpoints the last successfully projected block-id and resumes from
// it on restart"). Projection failures are isolated per-event and retried
// with backoff rather than stalling the whole stream (spec §7: "a
// supervised task retries on a backoff").
func Run(ctx context.Context, s *Store, l ledger.Ledger) error {
	from, err := s.Checkpoint(ctx)
	if err != nil {
		return err
	}

	events, err := l.StateUpdates(ctx, from, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}

			if err := projectWithRetry(ctx, s, ev); err != nil && ctx.Err() == nil {
				mlog.FromContext(ctx).Errorf("projector: giving up on block %s: %v", ev.BlockID, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func projectWithRetry(ctx context.Context, s *Store, ev ledger.Event) error {
	b := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)

	return backoff.Retry(func() error {
		return s.Project(ctx, ev)
	}, b)
}
