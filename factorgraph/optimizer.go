package factorgraph

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
)

// Optimizer maintains a growing factor graph together with the current best
// estimate of every variable. Factors and variables are only ever added, never
// removed; each Update re-optimizes the whole accumulated problem warm-started
// from the previous estimate, so repeated solves reuse earlier work instead of
// starting over.
type Optimizer struct {
	graph    Graph
	estimate *Values
	logger   golog.Logger
}

// NewOptimizer returns an optimizer with an empty graph.
func NewOptimizer(logger golog.Logger) *Optimizer {
	return &Optimizer{estimate: NewValues(), logger: logger}
}

// AddFactors appends the graph delta to the accumulated problem.
func (o *Optimizer) AddFactors(g *Graph) {
	o.graph.Add(g.Factors()...)
}

// AddInitialEstimates registers estimates for newly created variables. A key
// that already has an estimate is an error.
func (o *Optimizer) AddInitialEstimates(v *Values) error {
	return o.estimate.Insert(v)
}

// Update re-optimizes the accumulated graph from the current estimate and
// stores the result. On failure the estimate keeps whatever partially improved
// form the solve produced; callers that need a clean state must rebuild it.
func (o *Optimizer) Update() error {
	for _, f := range o.graph.Factors() {
		for _, k := range f.Keys() {
			if !o.estimate.Has(k) {
				return errors.Errorf("factor references %v which has no initial estimate", k)
			}
		}
	}
	result, err := Optimize(&o.graph, o.estimate, o.logger)
	if result != nil {
		o.estimate = result
	}
	if err != nil {
		return errors.Wrap(err, "incremental update")
	}
	return nil
}

// CurrentEstimate returns a copy of the current best estimate for every variable.
func (o *Optimizer) CurrentEstimate() *Values {
	return o.estimate.Copy()
}

// NumFactors returns the number of factors accumulated so far.
func (o *Optimizer) NumFactors() int {
	return o.graph.Size()
}

// NumVariables returns the number of variables with estimates.
func (o *Optimizer) NumVariables() int {
	return o.estimate.Len()
}
