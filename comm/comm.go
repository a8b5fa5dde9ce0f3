// Package comm implements the communication schedule spec §4.1/§5
// describes: a collective, phase-wise exchange where every process
// issues the same sequence of get/put phases and blocks only at the
// matching *_end call. Transport is the seam between that schedule and
// the wire; ddfmm ships two implementations: RPCTransport, a real
// net/rpc service per rank carried over gorilla/rpc's JSON codec, and
// LocalTransport, an in-process stand-in for tests and for the
// single-binary CLI that calls the owner rank's Handler directly in the
// caller's goroutine.
package comm

import (
	"fmt"

	"github.com/emmanuel-garza/ddfmm/ddferr"
)

// FieldMask mirrors codec.FieldMask without importing codec, so comm
// stays usable by any masked value type.
type FieldMask = uint32

// Request is the unit of work a phase sends to a single owning rank:
// either "the keys I want" (a get) or "the keys and payload I'm
// publishing" (a put).
type Request struct {
	Phase    string
	Store    string // names the ParVec this request targets, e.g. "tree", "hf:3"
	Kind     RequestKind
	FromRank int
	Mask     FieldMask
	Keys     [][]byte
	Payload  [][]byte // present only for Kind == Put
}

// RequestKind distinguishes a get (fetch) from a put (publish) within
// the single Exchange primitive both compile down to (spec §4.1).
type RequestKind uint8

const (
	KindGet RequestKind = iota
	KindPut
)

// Response carries back, for a Get, the encoded values in the same
// order as the request's Keys; for a Put, it is empty (an ack).
type Response struct {
	Payload [][]byte
}

// Transport is the seam the ParVec two-phase exchange (spec §4.1) is
// built on: Exchange sends a Request to its owner rank and returns the
// owner's Response once the phase completes. Callers (ParVec's
// get_end/put_end) invoke this once per owner involved in the phase
// and must all agree on phase name and mask (a mismatch is a
// ProtocolError, spec §7 kind 3).
type Transport interface {
	// Rank returns this process's own rank.
	Rank() int
	// NumRanks returns the total number of ranks in the run.
	NumRanks() int
	// Exchange sends req to ownerRank and returns its response. It may
	// be called many times within a phase (once per distinct owner);
	// the Transport does not itself enforce phase barriers — that is
	// ParVec's job (see parvec.ParVec.GetEnd/PutEnd).
	Exchange(ownerRank int, req Request) (Response, error)
}

// Handler is what a rank exposes to satisfy other ranks' Exchange
// calls: it resolves a Request against that rank's local ParVec
// stores. Both Transport implementations dispatch into a Handler
// rather than knowing about ParVec directly.
type Handler interface {
	HandleExchange(req Request) (Response, error)
}

// ErrNoHandler is a ProtocolError: a transport was asked to reach a
// rank that never registered a Handler.
var ErrNoHandler = fmt.Errorf("%w: no handler registered for rank", ddferr.ErrProtocol)

// Demux is a Handler that fans a single rank's incoming Exchange calls
// out to several named ParVec stores — the tree's box store and one
// directional store per high-frequency level — sharing one
// Transport endpoint per rank the way a single RPC server exposes
// several named services. Every ddfmm ParVec tags its own Requests
// with its store name (see parvec.New's store argument); Demux reads
// that tag back off to find the right sub-handler.
type Demux struct {
	byStore map[string]Handler
}

// NewDemux returns an empty Demux; callers Register each store before
// the cluster starts issuing Exchange calls.
func NewDemux() *Demux {
	return &Demux{byStore: map[string]Handler{}}
}

// Register associates a store name with the Handler that serves it.
func (d *Demux) Register(store string, h Handler) {
	d.byStore[store] = h
}

// HandleExchange dispatches req to the Handler registered under
// req.Store, failing with a ProtocolError if no such store was
// registered (spec §7 kind 3: exchange phase mismatch).
func (d *Demux) HandleExchange(req Request) (Response, error) {
	h, ok := d.byStore[req.Store]
	if !ok {
		return Response{}, fmt.Errorf("%w: no store %q registered on this rank's demux", ddferr.ErrProtocol, req.Store)
	}
	return h.HandleExchange(req)
}
