package dispatcher

import (
	"sync"

	"github.com/google/uuid"

	"github.com/chronicleworks/chronicle/internal/prov/id"
	"github.com/chronicleworks/chronicle/internal/prov/model"
)

// namespaceResolver maps a command's bare namespace name to a stable
// id.NamespaceID. A namespace's uuid is submitter-provided and must stay
// stable for the life of the process (spec §3.2 invariant 6); a real
// deployment persists this mapping in the projector's namespace table,
// but within one dispatcher process the first command naming a namespace
// mints the uuid and every later command reuses it, either from the
// mirror (once the CreateNamespace op has committed) or from this
// pending cache (while it's still in flight).
type namespaceResolver struct {
	mu      sync.Mutex
	pending map[string]uuid.UUID
}

func newNamespaceResolver() *namespaceResolver {
	return &namespaceResolver{pending: map[string]uuid.UUID{}}
}

func (r *namespaceResolver) resolve(mirror *model.Model, externalID string) id.NamespaceID {
	r.mu.Lock()
	defer r.mu.Unlock()

	for ns := range mirror.Namespaces {
		if ns.ExternalID == externalID {
			return ns
		}
	}

	if u, ok := r.pending[externalID]; ok {
		return id.NamespaceID{ExternalID: externalID, UUID: u}
	}

	u := uuid.New()
	r.pending[externalID] = u

	return id.NamespaceID{ExternalID: externalID, UUID: u}
}
