// Package grpcledger is the gRPC-backed ledger.Ledger implementation
// (spec §4.6): it dials the ledger-gateway service, reconnecting with
// unbounded exponential backoff, and exposes PreSubmit/Submit/
// StateUpdates/GetStateEntry/BlockHeight over a hand-rolled msgpack
// codec (see codec.go) instead of a protoc-generated stub.
package grpcledger

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc"
	grpcbackoff "google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/chronicleworks/chronicle/internal/ledger"
	"github.com/chronicleworks/chronicle/pkg/chronerr"
	"github.com/chronicleworks/chronicle/pkg/mlog"
)

const serviceName = "chronicle.Ledger"

type submittable struct {
	correlationID string
	payload       []byte
}

func (s submittable) CorrelationID() string { return s.correlationID }

// Client dials target lazily and transparently reconnects on transport
// failure with base-2s unbounded exponential backoff (spec §4.6 "Retry
// policy").
type Client struct {
	target string
	conn   *grpc.ClientConn
}

// Dial builds the client connection for target, retrying construction
// with unbounded exponential backoff until it succeeds or ctx is
// cancelled. The connection itself is established lazily on first use,
// so a successful Dial does not mean the server is reachable.
func Dial(ctx context.Context, target string) (*Client, error) {
	c := &Client{target: target}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxElapsedTime = 0 // unbounded, per spec §4.6

	reconnect := grpcbackoff.DefaultConfig
	reconnect.BaseDelay = 2 * time.Second

	err := backoff.Retry(func() error {
		conn, dialErr := grpc.NewClient(target,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(grpc.CallContentSubtype(msgpackCodec{}.Name())),
			grpc.WithConnectParams(grpc.ConnectParams{Backoff: reconnect}),
		)
		if dialErr != nil {
			mlog.FromContext(ctx).Warnf("grpcledger: dial %s failed, retrying: %v", target, dialErr)
			return dialErr
		}

		c.conn = conn

		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, chronerr.SubmissionError{CorrelationID: "", Err: fmt.Errorf("grpcledger: dial %s: %w", target, err)}
	}

	return c, nil
}

func (c *Client) PreSubmit(ctx context.Context, tx []byte) (ledger.Submittable, error) {
	req := preSubmitRequest{Tx: tx}

	var resp preSubmitResponse
	if err := c.invoke(ctx, "PreSubmit", req, &resp); err != nil {
		return nil, err
	}

	return submittable{correlationID: resp.CorrelationID, payload: resp.Submittable}, nil
}

func (c *Client) Submit(ctx context.Context, consistency ledger.Consistency, sub ledger.Submittable) (string, error) {
	s, ok := sub.(submittable)
	if !ok {
		return "", fmt.Errorf("grpcledger: foreign submittable value")
	}

	req := submitRequest{Consistency: int32(consistency), Submittable: s.payload}

	var resp submitResponse
	if err := c.invoke(ctx, "Submit", req, &resp); err != nil {
		return "", chronerr.SubmissionError{CorrelationID: s.correlationID, Err: err}
	}

	return resp.CorrelationID, nil
}

func (c *Client) StateUpdates(ctx context.Context, from ledger.Position, limit *int) (<-chan ledger.Event, error) {
	req := stateUpdatesRequest{FromKind: int32(from.Kind), BlockID: from.BlockID}
	if limit != nil {
		req.Limit = int64(*limit)
	}

	stream, err := c.conn.NewStream(ctx, &grpc.StreamDesc{ServerStreams: true}, fullMethod("StateUpdates"),
		grpc.CallContentSubtype(msgpackCodec{}.Name()))
	if err != nil {
		return nil, err
	}

	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}

	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	out := make(chan ledger.Event, 256)

	go func() {
		defer close(out)

		for {
			var w eventWire
			if err := stream.RecvMsg(&w); err != nil {
				return
			}

			select {
			case out <- ledger.Event{
				Kind:          ledger.EventKind(w.Kind),
				CorrelationID: w.CorrelationID,
				BlockID:       w.BlockID,
				Position:      w.Position,
				Delta:         w.Delta,
				Reason:        w.Reason,
			}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (c *Client) GetStateEntry(ctx context.Context, pallet, name, key string) ([]byte, error) {
	req := getStateEntryRequest{Pallet: pallet, Name: name, Key: key}

	var resp getStateEntryResponse
	if err := c.invoke(ctx, "GetStateEntry", req, &resp); err != nil {
		return nil, err
	}

	if !resp.Found {
		return nil, nil
	}

	return resp.Value, nil
}

func (c *Client) BlockHeight(ctx context.Context) (uint64, string, error) {
	var resp blockHeightResponse
	if err := c.invoke(ctx, "BlockHeight", struct{}{}, &resp); err != nil {
		return 0, "", err
	}

	return resp.Position, resp.BlockID, nil
}

func (c *Client) invoke(ctx context.Context, method string, req, resp interface{}) error {
	return c.conn.Invoke(ctx, fullMethod(method), req, resp, grpc.CallContentSubtype(msgpackCodec{}.Name()))
}

func fullMethod(name string) string { return "/" + serviceName + "/" + name }

func (c *Client) Close() error { return c.conn.Close() }
