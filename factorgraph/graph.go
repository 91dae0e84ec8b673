package factorgraph

// Graph is an ordered collection of factors forming a nonlinear least-squares
// objective. Order matters to the incremental optimizer only in that priors
// must precede the factors that reference the same variables.
type Graph struct {
	factors []Factor
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Add appends factors to the graph.
func (g *Graph) Add(factors ...Factor) {
	g.factors = append(g.factors, factors...)
}

// Factors returns the factors in insertion order.
func (g *Graph) Factors() []Factor {
	return g.factors
}

// Size returns the number of factors.
func (g *Graph) Size() int {
	return len(g.factors)
}

// Dim returns the total residual dimension of the graph.
func (g *Graph) Dim() int {
	var dim int
	for _, f := range g.factors {
		dim += f.Dim()
	}
	return dim
}
