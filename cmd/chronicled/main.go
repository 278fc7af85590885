// Command chronicled runs the provenance ledger node: the API Dispatcher,
// its depth-charge liveness probe, the Subscription Bus fan-out, and the
// Persistence Projector, all behind a single HTTP surface (spec §6.4).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/chronicleworks/chronicle/internal/dispatcher"
	"github.com/chronicleworks/chronicle/internal/engine"
	"github.com/chronicleworks/chronicle/internal/ledger"
	"github.com/chronicleworks/chronicle/internal/ledger/grpcledger"
	"github.com/chronicleworks/chronicle/internal/ledger/inmemledger"
	"github.com/chronicleworks/chronicle/internal/policy"
	"github.com/chronicleworks/chronicle/internal/projector"
	"github.com/chronicleworks/chronicle/internal/signing"
	"github.com/chronicleworks/chronicle/internal/subscription"
	"github.com/chronicleworks/chronicle/pkg/config"
	"github.com/chronicleworks/chronicle/pkg/mlog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := mlog.NewZapLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = mlog.WithContext(ctx, logger)

	signer := signing.NewStore(signing.FilesystemBackend{Dir: cfg.SignerKeyDir})
	for _, ns := range []string{signing.NamespaceChronicle, signing.NamespaceBatcher, signing.NamespaceOPA} {
		if err := ensureKey(signer, ns); err != nil {
			return fmt.Errorf("provision %s key: %w", ns, err)
		}
	}

	l, closeLedger, err := openLedger(ctx, cfg, signer)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer closeLedger() //nolint:errcheck

	gate := policy.NewGate()
	gate.Load([]byte("*"))

	bus := subscription.New()
	d := dispatcher.New(l, signer, gate, bus)

	store, err := projector.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open projector store: %w", err)
	}
	defer store.Close() //nolint:errcheck

	g, gctx := errgroup.WithContext(ctx)

	subscription.RunGroup(gctx, g, bus, l, ledger.First())

	g.Go(func() error {
		d.RunMirror(gctx)
		return nil
	})

	g.Go(func() error {
		dispatcher.RunDepthCharge(gctx, d, cfg.DepthChargeInterval)
		return nil
	})

	g.Go(func() error {
		return projector.Run(gctx, store, l)
	})

	g.Go(func() error {
		return serveHTTP(gctx, cfg, d, store, gate)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func ensureKey(store *signing.Store, namespace string) error {
	if _, err := store.CopySigningKey(namespace, "default"); err != nil {
		if errors.Is(err, signing.ErrNoKeyFound) {
			_, err := store.Generate(namespace, "default")
			return err
		}

		return err
	}

	return nil
}

func openLedger(ctx context.Context, cfg *config.Config, signer *signing.Store) (ledger.Ledger, func() error, error) {
	if cfg.LedgerGRPCAddress == "" {
		state := engine.New(signer)
		return inmemledger.New(state.ApplyFn), func() error { return nil }, nil
	}

	client, err := grpcledger.Dial(ctx, cfg.LedgerGRPCAddress)
	if err != nil {
		return nil, nil, err
	}

	return client, client.Close, nil
}
