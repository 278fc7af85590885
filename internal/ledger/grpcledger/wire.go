package grpcledger

// Wire types exchanged with the ledger-gateway service (spec §6.1/§6.2).
// Both ends are chronicled-controlled, so these are plain msgpack-tagged
// structs rather than protoc-generated protobuf messages.

type preSubmitRequest struct {
	Tx []byte `msgpack:"tx"`
}

type preSubmitResponse struct {
	CorrelationID string `msgpack:"correlation_id"`
	Submittable   []byte `msgpack:"submittable"`
}

type submitRequest struct {
	Consistency int32  `msgpack:"consistency"`
	Submittable []byte `msgpack:"submittable"`
}

type submitResponse struct {
	CorrelationID string `msgpack:"correlation_id"`
}

type stateUpdatesRequest struct {
	FromKind int32  `msgpack:"from_kind"`
	BlockID  string `msgpack:"block_id"`
	Limit    int64  `msgpack:"limit"` // 0 means unbounded
}

type eventWire struct {
	Kind          int32  `msgpack:"kind"`
	CorrelationID string `msgpack:"correlation_id"`
	BlockID       string `msgpack:"block_id"`
	Position      uint64 `msgpack:"position"`
	Delta         []byte `msgpack:"delta"`
	Reason        string `msgpack:"reason"`
}

type getStateEntryRequest struct {
	Pallet string `msgpack:"pallet"`
	Name   string `msgpack:"name"`
	Key    string `msgpack:"key"`
}

type getStateEntryResponse struct {
	Value []byte `msgpack:"value"`
	Found bool   `msgpack:"found"`
}

type blockHeightResponse struct {
	Position uint64 `msgpack:"position"`
	BlockID  string `msgpack:"block_id"`
}
