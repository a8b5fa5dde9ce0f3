package comm

import "sync"

// LocalTransport is an in-process Transport: each rank is identified
// by an integer, and Exchange calls are dispatched directly into the
// target rank's registered Handler, no socket involved. This backs
// the single-process test suite and the cmd/ddfmm CLI's multi-rank
// simulation (spec §8 scenario 5, "two processes").
type LocalTransport struct {
	rank     int
	handlers *localRegistry
}

// localRegistry is shared by every rank's LocalTransport in a run so
// Exchange can reach any other rank's Handler.
type localRegistry struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	nranks   int
}

// NewLocalCluster builds nranks LocalTransports sharing one registry.
// Callers register each rank's Handler via RegisterHandler before
// issuing any Exchange calls.
func NewLocalCluster(nranks int) []*LocalTransport {
	reg := &localRegistry{handlers: make(map[int]Handler), nranks: nranks}
	out := make([]*LocalTransport, nranks)
	for r := 0; r < nranks; r++ {
		out[r] = &LocalTransport{rank: r, handlers: reg}
	}
	return out
}

// RegisterHandler associates this transport's rank with the Handler
// that will serve incoming Exchange calls (typically a ParVec).
func (t *LocalTransport) RegisterHandler(h Handler) {
	t.handlers.mu.Lock()
	defer t.handlers.mu.Unlock()
	t.handlers.handlers[t.rank] = h
}

func (t *LocalTransport) Rank() int     { return t.rank }
func (t *LocalTransport) NumRanks() int { return t.handlers.nranks }

// Exchange dispatches directly to ownerRank's Handler. Calls are
// synchronous and safe for concurrent use from different rank
// transports (the registry is read-locked for the lookup).
func (t *LocalTransport) Exchange(ownerRank int, req Request) (Response, error) {
	t.handlers.mu.RLock()
	h, ok := t.handlers.handlers[ownerRank]
	t.handlers.mu.RUnlock()
	if !ok {
		return Response{}, ErrNoHandler
	}
	return h.HandleExchange(req)
}
