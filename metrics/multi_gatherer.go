// Package metrics merges the per-rank prometheus.Registry instances
// parvec.New attaches its traffic counters to into one gatherable
// snapshot, so cmd/ddfmm (or any long-running host of an
// engine.Evaluator) can scrape one endpoint instead of one per rank.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/protobuf/proto"
)

// MultiGatherer is a collection of named prometheus.Gatherers that is
// itself a prometheus.Gatherer, grounded on the teacher's
// internal/api/metrics/multi_gatherer.go: one registry per rank is
// registered under its own namespace, and Gather concatenates every
// namespace's metric families rather than attempting to merge
// same-named families across ranks (each family already carries a
// "store" const label from parvec.New that distinguishes the tree store
// from each directional level's store within one rank).
type MultiGatherer interface {
	prometheus.Gatherer

	// Register adds gatherer under namespace. Re-registering an
	// existing namespace is a ProtocolError-shaped bug (one rank
	// trying to attach its registry twice), so it fails rather than
	// silently replacing the prior gatherer.
	Register(namespace string, gatherer prometheus.Gatherer) error
}

type multiGatherer struct {
	order     []string
	gatherers map[string]prometheus.Gatherer
}

// NewMultiGatherer returns an empty MultiGatherer.
func NewMultiGatherer() MultiGatherer {
	return &multiGatherer{gatherers: make(map[string]prometheus.Gatherer)}
}

func (m *multiGatherer) Register(namespace string, gatherer prometheus.Gatherer) error {
	if _, exists := m.gatherers[namespace]; exists {
		return fmt.Errorf("metrics namespace %q already registered", namespace)
	}
	m.order = append(m.order, namespace)
	m.gatherers[namespace] = gatherer
	return nil
}

// Gather implements prometheus.Gatherer, concatenating every
// registered namespace's families in registration order. Each family is
// proto.Clone'd before being appended so a caller mutating the returned
// slice can never alias a gatherer's own storage.
func (m *multiGatherer) Gather() ([]*dto.MetricFamily, error) {
	var result []*dto.MetricFamily
	for _, ns := range m.order {
		mfs, err := m.gatherers[ns].Gather()
		if err != nil {
			return nil, fmt.Errorf("gathering metrics for namespace %q: %w", ns, err)
		}
		for _, mf := range mfs {
			result = append(result, proto.Clone(mf).(*dto.MetricFamily))
		}
	}
	return result, nil
}

// SumCounter returns the total value of every Counter metric named name
// across mfs, summing across every family instance and every labeled
// series within it (e.g. once per rank, once per store within a rank).
func SumCounter(mfs []*dto.MetricFamily, name string) float64 {
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
