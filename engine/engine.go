// Package engine implements C8, the Evaluator of spec §4.6: it drives
// every simulated rank's tree construction and low-/high-frequency
// passes through the exact multi-rank BSP schedule spec §4.5 demands —
// the non-directional upward/downward passes need only a single
// whole-phase barrier (BoxPartition is subtree-contiguous, so M2M/L2L
// never cross ranks), but the directional passes must interleave rank
// by rank within every level, because BoxAndDirLevelPartition balances
// ownership by pair count rather than by space and so does create
// cross-rank dependencies between adjacent directional levels — and
// gathers each rank's leaf potentials back into one global result.
package engine

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/emmanuel-garza/ddfmm/boxkey"
	"github.com/emmanuel-garza/ddfmm/comm"
	"github.com/emmanuel-garza/ddfmm/config"
	"github.com/emmanuel-garza/ddfmm/ddferr"
	"github.com/emmanuel-garza/ddfmm/ddlog"
	"github.com/emmanuel-garza/ddfmm/highfreq"
	"github.com/emmanuel-garza/ddfmm/kernel"
	"github.com/emmanuel-garza/ddfmm/lowfreq"
	"github.com/emmanuel-garza/ddfmm/metrics"
	"github.com/emmanuel-garza/ddfmm/operator"
	"github.com/emmanuel-garza/ddfmm/partition"
	"github.com/emmanuel-garza/ddfmm/set"
	"github.com/emmanuel-garza/ddfmm/tree"
)

// Evaluator owns one tree.Tree per simulated rank plus, when the
// configuration puts UnitLevel above the root, one highfreq.Stores per
// rank — the full state a single process needs to drive spec §4.6's
// Eval over an in-process comm.LocalTransport cluster (spec §8
// scenario 5's "two processes" collapsed into one binary, the way
// cmd/ddfmm and every *_test.go in this module runs a multi-rank case).
type Evaluator struct {
	cfg     config.Config
	lib     operator.Library
	helm    kernel.Helmholtz
	log     ddlog.Logger
	boxPart *partition.BoxPartition
	npts    int

	transports []*comm.LocalTransport
	demuxes    []*comm.Demux
	trees      []*tree.Tree
	stores     []*highfreq.Stores // nil entry when UnitLevel <= 0: no directional regime

	registries []*prometheus.Registry // one per rank, holds that rank's ParVec traffic counters
	gatherer   metrics.MultiGatherer  // merges every rank's registry into one scrape
}

// Option configures New.
type Option func(*options)

type options struct {
	lib operator.Library
	log ddlog.Logger
}

// WithLibrary overrides the default operator.Analytic stand-in with
// another operator.Library (spec §6: the real translation-operator
// file format is out of scope, so ddfmm always runs against a
// Library implementation the caller supplies or defaults to).
func WithLibrary(lib operator.Library) Option { return func(o *options) { o.lib = lib } }

// WithLogger overrides the default no-op ddlog.Logger.
func WithLogger(log ddlog.Logger) Option { return func(o *options) { o.log = log } }

// New builds the evaluator for nranks simulated ranks, partitioning
// boxes with a round-robin P×P×P tensor sized from cfg.Geomprtn (spec
// §6's geomprtn key) and constructing every rank's tree from the same
// replicated point set (spec §5: "read-only after setup; safe to
// share by reference"). Each rank's tree store and, when the
// directional regime is active, each of its per-level highfreq stores
// are registered on that rank's own comm.Demux so a single
// comm.LocalTransport endpoint per rank can serve every store spec
// §4.1/§4.5 need.
func New(cfg config.Config, points [][3]float64, nranks int, opts ...Option) (*Evaluator, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	if nranks <= 0 {
		return nil, fmt.Errorf("%w: nranks must be > 0, got %d", ddferr.ErrConfig, nranks)
	}

	o := options{lib: operator.NewAnalytic(cfg.K, cfg.Accu), log: ddlog.NewNoOp()}
	for _, opt := range opts {
		opt(&o)
	}

	boxPart, err := stripedBoxPartition(cfg, nranks)
	if err != nil {
		return nil, err
	}

	local := comm.NewLocalCluster(nranks)

	e := &Evaluator{
		cfg:        cfg,
		lib:        o.lib,
		helm:       kernel.Helmholtz{K: cfg.K},
		log:        o.log,
		boxPart:    boxPart,
		npts:       len(points),
		transports: local,
		demuxes:    make([]*comm.Demux, nranks),
		trees:      make([]*tree.Tree, nranks),
		stores:     make([]*highfreq.Stores, nranks),
		registries: make([]*prometheus.Registry, nranks),
		gatherer:   metrics.NewMultiGatherer(),
	}

	for r := 0; r < nranks; r++ {
		reg := prometheus.NewRegistry()
		e.registries[r] = reg
		if err := e.gatherer.Register(fmt.Sprintf("rank%d", r), reg); err != nil {
			return nil, fmt.Errorf("%w: registering rank %d metrics: %v", ddferr.ErrConfig, r, err)
		}

		tr, err := tree.SetupTree(cfg, r, points, boxPart, local[r], reg)
		if err != nil {
			return nil, fmt.Errorf("%w: rank %d tree setup: %v", ddferr.ErrInvariant, r, err)
		}
		e.trees[r] = tr
		e.demuxes[r] = comm.NewDemux()
		e.demuxes[r].Register("tree", tr.PV)
		local[r].RegisterHandler(e.demuxes[r])
	}

	baseLevel := int32(cfg.UnitLevel())
	if baseLevel > 0 {
		for r := 0; r < nranks; r++ {
			s, err := highfreq.Build(e.trees[r], local[r], e.registries[r])
			if err != nil {
				return nil, fmt.Errorf("%w: rank %d directional store build: %v", ddferr.ErrInvariant, r, err)
			}
			e.stores[r] = s
			for level := int32(0); level < baseLevel; level++ {
				ls, ok := s.Level(level)
				if !ok {
					continue
				}
				e.demuxes[r].Register(fmt.Sprintf("hf:%d", level), ls)
			}
		}
	}

	e.log.Info("evaluator ready", "ranks", nranks, "unit_level", baseLevel, "points", len(points),
		"directional_dirs", e.directionCount())
	return e, nil
}

// directionCount sums, over every owned box on every rank, the number
// of distinct incoming directions IncDirSet recorded — a cheap
// sanity figure logged at construction, not recomputed from FarLists,
// since it is exactly what tree.computeLists already materialized per
// owned box.
func (e *Evaluator) directionCount() int {
	total := 0
	for r, tr := range e.trees {
		for level := int32(0); level <= tr.MaxLevel(); level++ {
			for _, k := range tr.BoxesAtLevel(level) {
				if tr.Owner(k) != r {
					continue
				}
				bd, err := tr.PV.Access(k)
				if err != nil {
					continue
				}
				total += bd.IncDirSet.Len()
			}
		}
	}
	return total
}

// DistinctOutgoingDirections unions every owned box's OutDirSet at the
// given level across all simulated ranks, returning the wedge
// directions that level's high-frequency pass actually emits into.
// This is a coarser-grained cousin of directionCount: where
// directionCount sums Len() per box (how many wedges, double counting
// shared directions), this merges the sets first, so a level where
// every box happens to emit into the same handful of directions reads
// very differently from one spreading across many. Grounded on
// IncDirSet/OutDirSet's construction in tree.computeLists.
func (e *Evaluator) DistinctOutgoingDirections(level int32) set.Set[boxkey.Direction] {
	all := set.Set[boxkey.Direction]{}
	for r, tr := range e.trees {
		for _, k := range tr.BoxesAtLevel(level) {
			if tr.Owner(k) != r {
				continue
			}
			bd, err := tr.PV.Access(k)
			if err != nil {
				continue
			}
			all = all.Union(bd.OutDirSet.Clone())
		}
	}
	return all
}

// Eval runs spec §4.6's full evaluation: densities, indexed by the
// same global point order New's points were given in, are scattered
// to each rank's owned leaves (step 2), the low-frequency upward pass
// runs once per rank behind a single whole-phase barrier (step 3), the
// directional upward/M2L/downward passes run level-by-level with every
// rank advancing together (step 4-5, spec §4.5), the low-frequency
// downward pass runs once per rank (step 6), and each rank's resulting
// leaf potentials are gathered into one global slice in point order
// (step 7).
func (e *Evaluator) Eval(densities []complex128) ([]complex128, error) {
	if len(densities) != e.npts {
		return nil, fmt.Errorf("%w: got %d densities, want %d", ddferr.ErrConfig, len(densities), e.npts)
	}
	if err := e.resetAll(); err != nil {
		return nil, err
	}
	if err := e.scatterDensities(densities); err != nil {
		return nil, err
	}

	for r, tr := range e.trees {
		if err := lowfreq.Upward(tr, e.lib, e.helm); err != nil {
			return nil, fmt.Errorf("%w: rank %d upward pass: %v", ddferr.ErrNumeric, r, err)
		}
	}

	baseLevel := int32(e.cfg.UnitLevel())
	if baseLevel > 0 {
		for level := baseLevel - 1; level >= 0; level-- {
			for r, tr := range e.trees {
				if e.stores[r] == nil {
					continue
				}
				if err := highfreq.M2MUpLevel(tr, e.lib, e.stores[r], level); err != nil {
					return nil, fmt.Errorf("%w: rank %d directional M2M level %d: %v", ddferr.ErrNumeric, r, level, err)
				}
			}
		}
		for r, tr := range e.trees {
			if e.stores[r] == nil {
				continue
			}
			if err := highfreq.M2LAcross(tr, e.lib, e.stores[r]); err != nil {
				return nil, fmt.Errorf("%w: rank %d directional M2L: %v", ddferr.ErrNumeric, r, err)
			}
		}
		for level := int32(0); level < baseLevel; level++ {
			for r, tr := range e.trees {
				if e.stores[r] == nil {
					continue
				}
				if err := highfreq.L2LDownLevel(tr, e.lib, e.stores[r], level); err != nil {
					return nil, fmt.Errorf("%w: rank %d directional L2L level %d: %v", ddferr.ErrNumeric, r, level, err)
				}
			}
		}
	}

	for r, tr := range e.trees {
		if err := lowfreq.Downward(tr, e.lib, e.helm); err != nil {
			return nil, fmt.Errorf("%w: rank %d downward pass: %v", ddferr.ErrNumeric, r, err)
		}
	}

	return e.gatherValues()
}

// resetAll clears every rank's nonowned caches and traffic counters
// (spec §4.1's kbytes_sent/kbytes_received, "reset on
// initialize_data") before a fresh Eval, so repeated calls on one
// Evaluator don't accumulate stale cached fields from a prior density
// vector.
func (e *Evaluator) resetAll() error {
	for r, tr := range e.trees {
		if err := tr.PV.InitializeData(); err != nil {
			return fmt.Errorf("%w: rank %d tree store reset: %v", ddferr.ErrIO, r, err)
		}
		if e.stores[r] == nil {
			continue
		}
		baseLevel := e.stores[r].BaseLevel()
		for level := int32(0); level < baseLevel; level++ {
			ls, ok := e.stores[r].Level(level)
			if !ok {
				continue
			}
			if err := ls.InitializeData(); err != nil {
				return fmt.Errorf("%w: rank %d level %d store reset: %v", ddferr.ErrIO, r, level, err)
			}
		}
	}
	return nil
}

// scatterDensities assigns densities[bd.PtIdx[i]] to each owned leaf's
// ExtDen[i] and clears ExtVal, per spec §4.6 step 2.
func (e *Evaluator) scatterDensities(densities []complex128) error {
	for r, tr := range e.trees {
		for level := int32(0); level <= tr.MaxLevel(); level++ {
			for _, k := range tr.BoxesAtLevel(level) {
				if tr.Owner(k) != r || !tr.IsLeafKey(k) {
					continue
				}
				bd, err := tr.PV.Access(k)
				if err != nil {
					return fmt.Errorf("%w: rank %d reading leaf %s: %v", ddferr.ErrInvariant, r, k, err)
				}
				if len(bd.PtIdx) == 0 {
					continue
				}
				if bd.ExtDen == nil || len(bd.ExtDen) != len(bd.PtIdx) {
					bd.ExtDen = make([]complex128, len(bd.PtIdx))
				}
				for i, idx := range bd.PtIdx {
					if int(idx) < 0 || int(idx) >= len(densities) {
						return fmt.Errorf("%w: point index %d out of range for %d densities", ddferr.ErrInvariant, idx, len(densities))
					}
					bd.ExtDen[i] = densities[idx]
				}
				bd.ExtVal = make([]complex128, len(bd.PtIdx))
				if err := tr.PV.Insert(k, bd); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// gatherValues collects bd.ExtVal from every owned leaf box across
// every rank back into one global slice in point order, per spec
// §4.6 step 7.
func (e *Evaluator) gatherValues() ([]complex128, error) {
	out := make([]complex128, e.npts)
	for r, tr := range e.trees {
		for level := int32(0); level <= tr.MaxLevel(); level++ {
			for _, k := range tr.BoxesAtLevel(level) {
				if tr.Owner(k) != r || !tr.IsLeafKey(k) {
					continue
				}
				bd, err := tr.PV.Access(k)
				if err != nil {
					return nil, fmt.Errorf("%w: rank %d reading leaf %s: %v", ddferr.ErrInvariant, r, k, err)
				}
				for i, idx := range bd.PtIdx {
					if i < len(bd.ExtVal) {
						out[idx] = bd.ExtVal[i]
					}
				}
			}
		}
	}
	return out, nil
}

// TrafficKBytes sums KBytesSent/KBytesReceived across every rank's
// tree store and directional level stores, giving callers (e.g.
// cmd/ddfmm) a single run-wide communication-volume figure.
func (e *Evaluator) TrafficKBytes() (sent, received float64) {
	for r, tr := range e.trees {
		sent += tr.PV.KBytesSent()
		received += tr.PV.KBytesReceived()
		if e.stores[r] == nil {
			continue
		}
		baseLevel := e.stores[r].BaseLevel()
		for level := int32(0); level < baseLevel; level++ {
			ls, ok := e.stores[r].Level(level)
			if !ok {
				continue
			}
			sent += ls.KBytesSent()
			received += ls.KBytesReceived()
		}
	}
	return sent, received
}

// GatherMetrics scrapes every rank's registered Prometheus counters
// through the single metrics.MultiGatherer built in New, merging
// trafficKBytes into one monotonic, cumulative snapshot across the
// Evaluator's lifetime — unlike TrafficKBytes, these figures are never
// reset by resetAll (Prometheus counters only increase), matching the
// usual "scrape a running process" story rather than spec §4.1's
// per-eval kbytes_sent/kbytes_received windows.
func (e *Evaluator) GatherMetrics() ([]*dto.MetricFamily, error) {
	return e.gatherer.Gather()
}

// CumulativeTrafficKBytes reports the lifetime sent/received totals
// recoverable from GatherMetrics, summing the ddfmm_parvec_kbytes_*
// counters across every rank and every store within each rank.
func (e *Evaluator) CumulativeTrafficKBytes() (sent, received float64, err error) {
	mfs, err := e.GatherMetrics()
	if err != nil {
		return 0, 0, err
	}
	return metrics.SumCounter(mfs, "ddfmm_parvec_kbytes_sent_total"),
		metrics.SumCounter(mfs, "ddfmm_parvec_kbytes_received_total"), nil
}

// stripedBoxPartition builds a simple round-robin P×P×P owner tensor
// across nranks ranks. BoxPartition's contiguity guarantee (spec
// §4.2: every box at or below CellLevel is owned by the same rank as
// the cell-level ancestor it descends from) holds regardless of how
// the cells themselves are distributed across ranks, so a round-robin
// stripe is a sufficient load-balancing policy for the in-process
// evaluator; a real deployment would instead compute owners from
// actual point density per cell.
func stripedBoxPartition(cfg config.Config, nranks int) (*partition.BoxPartition, error) {
	p := cfg.Geomprtn
	owners := make([]int32, p*p*p)
	for i := range owners {
		owners[i] = int32(i % nranks)
	}
	return partition.NewBoxPartition(p, int32(cfg.CellLevel()), owners)
}
