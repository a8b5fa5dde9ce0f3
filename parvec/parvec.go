// Package parvec implements the distributed associative container
// spec §4.1 calls ParVec: a K→V mapping partitioned across processes,
// with an authoritative owned store, a nonowned cache populated by the
// last exchange, and the two-phase get/put collective that moves
// exactly the masked fields of V across the wire.
//
// The owned and cache stores are each backed by an in-memory
// cockroachdb/pebble database rather than a bare map, so ParVec gets a
// real embedded KV engine's durability and iteration semantics even
// though every run in this package is in-memory; traffic is also
// surfaced as prometheus counters for scraping during a long-running
// evaluation.
package parvec

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/emmanuel-garza/ddfmm/codec"
	"github.com/emmanuel-garza/ddfmm/comm"
	"github.com/emmanuel-garza/ddfmm/ddferr"
)

// KeyCodec converts a ParVec key type to and from its wire/storage
// byte encoding.
type KeyCodec[K any] interface {
	Encode(k K) []byte
	Decode(b []byte) (K, error)
}

// Partition supplies the owning rank for a key (C3: PointPartition,
// BoxPartition, BoxAndDirLevelPartition all satisfy this).
type Partition[K any] interface {
	Owner(k K) int
	NumRanks() int
}

const fullMask codec.FieldMask = ^codec.FieldMask(0)

// ParVec is the generic container of spec §4.1. V is constrained to
// satisfy codec.MaskedValue[V] so it can be partially (de)serialized
// by field mask.
type ParVec[K comparable, V codec.MaskedValue[V]] struct {
	rank      int
	store     string
	partition Partition[K]
	keys      KeyCodec[K]
	newValue  func() V
	transport comm.Transport

	mu    sync.Mutex
	owned *pebble.DB
	cache *pebble.DB

	sentBytes int64
	recvBytes int64

	sentCounter prometheus.Counter
	recvCounter prometheus.Counter

	pendingGetKeys []K
	pendingGetMask codec.FieldMask
	pendingPutKeys []K
	pendingPutMask codec.FieldMask
}

// New constructs a ParVec for the calling rank, tagging every Request it
// issues with storeName so a per-rank comm.Demux can route it back to
// this instance (see comm.Demux). reg may be nil, in which case traffic
// is still tracked internally but not exported to Prometheus.
func New[K comparable, V codec.MaskedValue[V]](rank int, storeName string, partition Partition[K], keyCodec KeyCodec[K], newValue func() V, transport comm.Transport, reg prometheus.Registerer) (*ParVec[K, V], error) {
	owned, err := pebble.Open("owned", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("%w: opening owned store: %v", ddferr.ErrIO, err)
	}
	cache, err := pebble.Open("cache", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("%w: opening cache store: %v", ddferr.ErrIO, err)
	}

	pv := &ParVec[K, V]{
		rank:      rank,
		store:     storeName,
		partition: partition,
		keys:      keyCodec,
		newValue:  newValue,
		transport: transport,
		owned:     owned,
		cache:     cache,
		sentCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ddfmm_parvec_kbytes_sent_total",
			Help:        "Cumulative kilobytes sent by this rank's ParVec exchanges.",
			ConstLabels: prometheus.Labels{"store": storeName},
		}),
		recvCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ddfmm_parvec_kbytes_received_total",
			Help:        "Cumulative kilobytes received by this rank's ParVec exchanges.",
			ConstLabels: prometheus.Labels{"store": storeName},
		}),
	}
	if reg != nil {
		if err := reg.Register(pv.sentCounter); err != nil {
			return nil, fmt.Errorf("%w: registering sent counter: %v", ddferr.ErrConfig, err)
		}
		if err := reg.Register(pv.recvCounter); err != nil {
			return nil, fmt.Errorf("%w: registering received counter: %v", ddferr.ErrConfig, err)
		}
	}
	return pv, nil
}

// Insert inserts v locally under k, as the owned copy if this rank
// owns k, otherwise as a local seed that a later PutBegin/PutEnd must
// route to the real owner (spec §4.1: "caller is responsible for
// eventually routing to owner").
func (pv *ParVec[K, V]) Insert(k K, v V) error {
	pv.mu.Lock()
	defer pv.mu.Unlock()
	db := pv.cache
	if pv.partition.Owner(k) == pv.rank {
		db = pv.owned
	}
	return pv.putEncoded(db, k, v, fullMask)
}

func (pv *ParVec[K, V]) putEncoded(db *pebble.DB, k K, v V, mask codec.FieldMask) error {
	var buf bytes.Buffer
	if err := v.EncodeMasked(&buf, mask); err != nil {
		return fmt.Errorf("%w: encoding value: %v", ddferr.ErrProtocol, err)
	}
	return db.Set(pv.keys.Encode(k), buf.Bytes(), pebble.Sync)
}

// Access returns the local entry for k, owned or cached, merging
// cached fields over a freshly constructed zero value. It fails with
// InvariantViolation if k has never been inserted, put, or fetched by
// a prior get (spec §7 kind 4).
func (pv *ParVec[K, V]) Access(k K) (V, error) {
	pv.mu.Lock()
	defer pv.mu.Unlock()

	var zero V
	enc := pv.keys.Encode(k)
	if val, ok, err := pv.readFull(pv.owned, enc); err != nil {
		return zero, err
	} else if ok {
		return val, nil
	}
	if val, ok, err := pv.readFull(pv.cache, enc); err != nil {
		return zero, err
	} else if ok {
		return val, nil
	}
	return zero, fmt.Errorf("%w: access of key never fetched locally", ddferr.ErrInvariant)
}

func (pv *ParVec[K, V]) readFull(db *pebble.DB, enc []byte) (V, bool, error) {
	var zero V
	b, closer, err := db.Get(enc)
	if err == pebble.ErrNotFound {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("%w: reading local store: %v", ddferr.ErrIO, err)
	}
	defer closer.Close()

	v := pv.newValue()
	if err := v.DecodeMasked(bytes.NewReader(b), fullMask); err != nil {
		return zero, false, fmt.Errorf("%w: decoding value: %v", ddferr.ErrProtocol, err)
	}
	return v, true, nil
}

// GetBegin records the keys and mask a subsequent GetEnd must
// guarantee are locally present (spec §4.1).
func (pv *ParVec[K, V]) GetBegin(keys []K, mask codec.FieldMask) {
	pv.pendingGetKeys = keys
	pv.pendingGetMask = mask
}

// GetEnd performs the collective fetch recorded by GetBegin: for every
// key, an owned key is a no-op, a remote key is grouped with others
// owned by the same rank and fetched in one Exchange call, decoded
// into the cache with only mask's fields populated.
func (pv *ParVec[K, V]) GetEnd(mask codec.FieldMask) error {
	if mask != pv.pendingGetMask {
		return fmt.Errorf("%w: get_end mask does not match get_begin mask", ddferr.ErrProtocol)
	}
	byOwner := map[int][]K{}
	for _, k := range pv.pendingGetKeys {
		owner := pv.partition.Owner(k)
		if owner == pv.rank {
			continue
		}
		byOwner[owner] = append(byOwner[owner], k)
	}

	for owner, ks := range byOwner {
		encKeys := make([][]byte, len(ks))
		for i, k := range ks {
			encKeys[i] = pv.keys.Encode(k)
		}
		req := comm.Request{Phase: "get", Store: pv.store, Kind: comm.KindGet, FromRank: pv.rank, Mask: mask, Keys: encKeys}
		pv.countSent(req.Keys)
		resp, err := pv.transport.Exchange(owner, req)
		if err != nil {
			return fmt.Errorf("%w: get exchange with rank %d: %v", ddferr.ErrProtocol, owner, err)
		}
		pv.countRecv(resp.Payload)
		if len(resp.Payload) != len(ks) {
			return fmt.Errorf("%w: get reply arity mismatch from rank %d", ddferr.ErrProtocol, owner)
		}
		pv.mu.Lock()
		for i, k := range ks {
			v := pv.newValue()
			if err := v.DecodeMasked(bytes.NewReader(resp.Payload[i]), mask); err != nil {
				pv.mu.Unlock()
				return fmt.Errorf("%w: decoding get reply: %v", ddferr.ErrProtocol, err)
			}
			if err := pv.mergeIntoCache(k, v, mask); err != nil {
				pv.mu.Unlock()
				return err
			}
		}
		pv.mu.Unlock()
	}
	pv.pendingGetKeys = nil
	return nil
}

func (pv *ParVec[K, V]) mergeIntoCache(k K, v V, mask codec.FieldMask) error {
	enc := pv.keys.Encode(k)
	existing, ok, err := pv.readFull(pv.cache, enc)
	if err != nil {
		return err
	}
	if !ok {
		existing = pv.newValue()
	}
	existing.MergeMasked(v, mask)
	return pv.putEncoded(pv.cache, k, existing, fullMask)
}

// PutBegin records the keys and mask a subsequent PutEnd must publish
// to their owners (spec §4.1).
func (pv *ParVec[K, V]) PutBegin(keys []K, mask codec.FieldMask) {
	pv.pendingPutKeys = keys
	pv.pendingPutMask = mask
}

// PutEnd performs the collective publish recorded by PutBegin: local
// (owned-by-self) keys are merged in place, remote keys are grouped by
// owner and published in one Exchange call each.
func (pv *ParVec[K, V]) PutEnd(mask codec.FieldMask) error {
	if mask != pv.pendingPutMask {
		return fmt.Errorf("%w: put_end mask does not match put_begin mask", ddferr.ErrProtocol)
	}
	byOwner := map[int][]K{}
	for _, k := range pv.pendingPutKeys {
		owner := pv.partition.Owner(k)
		if owner == pv.rank {
			v, err := pv.localValue(k)
			if err != nil {
				return err
			}
			pv.mu.Lock()
			err = pv.mergeIntoOwned(k, v, mask)
			pv.mu.Unlock()
			if err != nil {
				return err
			}
			continue
		}
		byOwner[owner] = append(byOwner[owner], k)
	}

	for owner, ks := range byOwner {
		encKeys := make([][]byte, len(ks))
		payload := make([][]byte, len(ks))
		for i, k := range ks {
			v, err := pv.localValue(k)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := v.EncodeMasked(&buf, mask); err != nil {
				return fmt.Errorf("%w: encoding put payload: %v", ddferr.ErrProtocol, err)
			}
			encKeys[i] = pv.keys.Encode(k)
			payload[i] = buf.Bytes()
		}
		req := comm.Request{Phase: "put", Store: pv.store, Kind: comm.KindPut, FromRank: pv.rank, Mask: mask, Keys: encKeys, Payload: payload}
		pv.countSent(payload)
		if _, err := pv.transport.Exchange(owner, req); err != nil {
			return fmt.Errorf("%w: put exchange with rank %d: %v", ddferr.ErrProtocol, owner, err)
		}
	}
	pv.pendingPutKeys = nil
	return nil
}

func (pv *ParVec[K, V]) localValue(k K) (V, error) {
	pv.mu.Lock()
	defer pv.mu.Unlock()
	enc := pv.keys.Encode(k)
	if v, ok, err := pv.readFull(pv.owned, enc); err != nil || ok {
		return v, err
	}
	if v, ok, err := pv.readFull(pv.cache, enc); err != nil || ok {
		return v, err
	}
	var zero V
	return zero, fmt.Errorf("%w: put of key with no local value", ddferr.ErrInvariant)
}

func (pv *ParVec[K, V]) mergeIntoOwned(k K, v V, mask codec.FieldMask) error {
	enc := pv.keys.Encode(k)
	existing, ok, err := pv.readFull(pv.owned, enc)
	if err != nil {
		return err
	}
	if !ok {
		existing = pv.newValue()
	}
	existing.MergeMasked(v, mask)
	return pv.putEncoded(pv.owned, k, existing, fullMask)
}

// HandleExchange implements comm.Handler, serving other ranks' Get and
// Put requests directly against this rank's owned store.
func (pv *ParVec[K, V]) HandleExchange(req comm.Request) (comm.Response, error) {
	pv.mu.Lock()
	defer pv.mu.Unlock()

	switch req.Kind {
	case comm.KindGet:
		out := make([][]byte, len(req.Keys))
		for i, enc := range req.Keys {
			k, err := pv.keys.Decode(enc)
			if err != nil {
				return comm.Response{}, fmt.Errorf("%w: decoding requested key: %v", ddferr.ErrProtocol, err)
			}
			v, ok, err := pv.readFull(pv.owned, pv.keys.Encode(k))
			if err != nil {
				return comm.Response{}, err
			}
			if !ok {
				return comm.Response{}, fmt.Errorf("%w: get request for key this rank does not own", ddferr.ErrProtocol)
			}
			var buf bytes.Buffer
			if err := v.EncodeMasked(&buf, req.Mask); err != nil {
				return comm.Response{}, fmt.Errorf("%w: encoding get response: %v", ddferr.ErrProtocol, err)
			}
			out[i] = buf.Bytes()
		}
		pv.countRecv(req.Keys)
		pv.countSent(out)
		return comm.Response{Payload: out}, nil
	case comm.KindPut:
		for i, enc := range req.Keys {
			k, err := pv.keys.Decode(enc)
			if err != nil {
				return comm.Response{}, fmt.Errorf("%w: decoding published key: %v", ddferr.ErrProtocol, err)
			}
			v := pv.newValue()
			if err := v.DecodeMasked(bytes.NewReader(req.Payload[i]), req.Mask); err != nil {
				return comm.Response{}, fmt.Errorf("%w: decoding published value: %v", ddferr.ErrProtocol, err)
			}
			if err := pv.mergeIntoOwned(k, v, req.Mask); err != nil {
				return comm.Response{}, err
			}
		}
		pv.countRecv(req.Payload)
		return comm.Response{}, nil
	default:
		return comm.Response{}, fmt.Errorf("%w: unknown request kind", ddferr.ErrProtocol)
	}
}

// InitializeData clears the nonowned cache and resets the traffic
// counters (spec §4.1's kbytes_sent/kbytes_received, "reset on
// initialize_data").
func (pv *ParVec[K, V]) InitializeData() error {
	pv.mu.Lock()
	defer pv.mu.Unlock()

	it, err := pv.cache.NewIter(nil)
	if err != nil {
		return fmt.Errorf("%w: iterating cache for reset: %v", ddferr.ErrIO, err)
	}
	var keys [][]byte
	for it.First(); it.Valid(); it.Next() {
		keys = append(keys, append([]byte(nil), it.Key()...))
	}
	if err := it.Close(); err != nil {
		return fmt.Errorf("%w: closing cache iterator: %v", ddferr.ErrIO, err)
	}
	for _, k := range keys {
		if err := pv.cache.Delete(k, pebble.Sync); err != nil {
			return fmt.Errorf("%w: clearing cache: %v", ddferr.ErrIO, err)
		}
	}
	pv.sentBytes = 0
	pv.recvBytes = 0
	return nil
}

// KBytesSent returns cumulative kilobytes sent since the last
// InitializeData.
func (pv *ParVec[K, V]) KBytesSent() float64 { return float64(pv.sentBytes) / 1024 }

// KBytesReceived returns cumulative kilobytes received since the last
// InitializeData.
func (pv *ParVec[K, V]) KBytesReceived() float64 { return float64(pv.recvBytes) / 1024 }

func (pv *ParVec[K, V]) countSent(chunks [][]byte) {
	var n int64
	for _, c := range chunks {
		n += int64(len(c))
	}
	pv.sentBytes += n
	pv.sentCounter.Add(float64(n) / 1024)
}

func (pv *ParVec[K, V]) countRecv(chunks [][]byte) {
	var n int64
	for _, c := range chunks {
		n += int64(len(c))
	}
	pv.recvBytes += n
	pv.recvCounter.Add(float64(n) / 1024)
}

// Close releases the owned and cache stores.
func (pv *ParVec[K, V]) Close() error {
	if err := pv.owned.Close(); err != nil {
		return err
	}
	return pv.cache.Close()
}
