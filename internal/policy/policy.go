// Package policy implements the embedded authorization gate (spec
// §4.9): an opaque bundle interpreted by an Evaluator, plus the key
// mutations (BootstrapRoot/RegisterKey/RotateKey) and bundle installation
// (Load). All of this state lives in the process-local Gate: mutations
// are not submitted as ledger transactions and are not replicated to
// other nodes, and Load installs a bundle without checking any signature.
package policy

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/chronicleworks/chronicle/internal/identity"
	"github.com/chronicleworks/chronicle/internal/prov/op"
	"github.com/chronicleworks/chronicle/pkg/chronerr"
)

// Decision is the evaluator's verdict. Deny never discloses which rule
// fired (spec §7: "without disclosing which rule").
type Decision struct {
	Allow  bool
	Reason string
}

// Evaluator interprets a policy bundle's opaque bytes against an
// identity, the translated operation list a command expanded to, and the
// command's shape (spec §4.7 step 2: "Authorize (identity, operation-list,
// command-shape)"). Carrying ops lets a bundle deny on operation content —
// e.g. a SetAttributes touching a sensitive domain type — rather than only
// on command shape. A real deployment can back this with an OPA (Open
// Policy Agent) bundle runtime; ReferenceEvaluator below is a minimal
// newline-delimited allow-list so the core pipeline is runnable without an
// external OPA dependency (spec §4.9 is domain-mandated; no pack repo
// ships an OPA client — see DESIGN.md).
type Evaluator interface {
	Evaluate(id identity.Identity, ops []op.Operation, commandShape string) Decision
}

// ReferenceEvaluator treats the bundle as a newline-separated list of
// allowed command shapes (e.g. "Agent.Create", "*" for allow-all);
// Chronicle identity always passes.
type ReferenceEvaluator struct {
	allowed map[string]bool
}

func NewReferenceEvaluator(bundle []byte) *ReferenceEvaluator {
	allowed := map[string]bool{}

	scanner := bufio.NewScanner(bytes.NewReader(bundle))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		allowed[string(line)] = true
	}

	return &ReferenceEvaluator{allowed: allowed}
}

// Evaluate allows by command shape alone; ops is accepted to satisfy the
// Evaluator contract (spec §4.7 step 2) but the reference allow-list has no
// per-operation rules. A bundle runtime that does (e.g. OPA) inspects ops
// directly.
func (e *ReferenceEvaluator) Evaluate(id identity.Identity, ops []op.Operation, commandShape string) Decision {
	if id.Kind == identity.KindChronicle {
		return Decision{Allow: true}
	}

	if e.allowed["*"] || e.allowed[commandShape] {
		return Decision{Allow: true}
	}

	return Decision{Allow: false, Reason: "violation of policy rules"}
}

// KeyEntry is the Gate's in-memory record for a named authority key,
// shaped like the "Key entries" record of spec §4.9.
type KeyEntry struct {
	ID      string
	Current VersionedKey
	Expired []VersionedKey
}

type VersionedKey struct {
	Key     string
	Version int
}

// Bundle pairs a policy's opaque bytes with its content hash and address,
// mirroring the on-ledger "Policy metadata" record.
type Bundle struct {
	ID            string
	ContentHash   string
	PolicyAddress string
	Bytes         []byte
}

func HashBundle(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Gate is the mutex-guarded, process-wide evaluator cache (spec §5:
// "mutex-guarded; evaluation is fast but strictly serialized per
// process"; spec §9: "kept in a process-wide cache keyed by content
// hash"). It rebuilds the Evaluator whenever the bundle hash changes.
type Gate struct {
	mu        sync.Mutex
	hash      string
	bundle    []byte
	evaluator Evaluator
	keys      map[string]*KeyEntry
}

func NewGate() *Gate {
	return &Gate{keys: map[string]*KeyEntry{}}
}

// Load installs bundle as the active policy if its hash differs from
// what's cached, rebuilding the evaluator.
func (g *Gate) Load(bundle []byte) {
	hash := HashBundle(bundle)

	g.mu.Lock()
	defer g.mu.Unlock()

	if hash == g.hash {
		return
	}

	g.hash = hash
	g.bundle = bundle
	g.evaluator = NewReferenceEvaluator(bundle)
}

// Bundle returns the raw bytes of the currently active policy, as set by
// the most recent Load.
func (g *Gate) Bundle() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.bundle
}

// Evaluate runs the currently loaded evaluator against the translated
// operation list and the command's shape (spec §4.7 step 2). Absent any
// loaded bundle, every non-Chronicle identity is denied — fail closed.
func (g *Gate) Evaluate(id identity.Identity, ops []op.Operation, commandShape string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id.Kind == identity.KindChronicle {
		return Decision{Allow: true}
	}

	if g.evaluator == nil {
		return Decision{Allow: false, Reason: "violation of policy rules"}
	}

	return g.evaluator.Evaluate(id, ops, commandShape)
}

// BootstrapRoot installs the initial root key; fails if one is already
// present (spec §4.9).
func (g *Gate) BootstrapRoot(publicKeyHex string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.keys["root"]; ok {
		return chronerr.PolicyLoaderError{PolicyID: "root", Message: "root key already bootstrapped"}
	}

	g.keys["root"] = &KeyEntry{ID: "root", Current: VersionedKey{Key: publicKeyHex, Version: 0}}

	return nil
}

// RegisterKey stores a new named key, optionally overwriting an existing
// one (spec §4.9).
func (g *Gate) RegisterKey(name, publicKeyHex string, overwrite bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.keys[name]; ok && !overwrite {
		return chronerr.PolicyLoaderError{PolicyID: name, Message: "key already registered"}
	}

	g.keys[name] = &KeyEntry{ID: name, Current: VersionedKey{Key: publicKeyHex, Version: 0}}

	return nil
}

// RotateKey implements the double-signature protocol (spec §4.9): the
// caller has already verified prevSig against the currently stored key
// and newSig against newKeyHex before calling this — Gate only performs
// the bookkeeping mutation.
func (g *Gate) RotateKey(name, newKeyHex string) (VersionedKey, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.keys[name]
	if !ok {
		return VersionedKey{}, chronerr.PolicyLoaderError{PolicyID: name, Message: "no such key"}
	}

	expired := entry.Current
	entry.Expired = append(entry.Expired, expired)
	entry.Current = VersionedKey{Key: newKeyHex, Version: expired.Version + 1}

	return entry.Current, nil
}

func (g *Gate) GetKey(name string) (*KeyEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.keys[name]
	if !ok {
		return nil, chronerr.PolicyLoaderError{PolicyID: name, Message: "no such key"}
	}

	cp := *entry

	return &cp, nil
}

func (g *Gate) String() string {
	return fmt.Sprintf("policy.Gate{hash=%s, keys=%d}", g.hash, len(g.keys))
}
