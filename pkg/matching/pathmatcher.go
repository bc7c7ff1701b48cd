package matching

import (
	"container/heap"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/qeclabs/surface-decoder/pkg/dem"
)

// PathCompiler compiles detector error models into PathMatchers.
type PathCompiler struct {
	log *zap.SugaredLogger
}

// NewPathCompiler creates a PathCompiler. A nil logger disables logging.
func NewPathCompiler(log *zap.SugaredLogger) *PathCompiler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &PathCompiler{log: log}
}

// PathMatcher is a minimum-weight matching decoder over the detector graph.
// Every graphlike mechanism becomes an edge between its detectors (or
// between its single detector and a virtual boundary node) with weight
// log((1-p)/p) and the mechanism's observable flips attached. Decoding
// pairs up fired detectors greedily along shortest paths and XORs the
// observable flips of every traversed edge into the prediction.
//
// The compiled graph is immutable and Decode keeps all mutable state on the
// call stack, so a PathMatcher is safe for concurrent use from multiple
// goroutines.
type PathMatcher struct {
	numDetectors   int
	numObservables int
	hasBoundary    bool

	// nodes 0..numDetectors-1 are detectors; node numDetectors is the
	// boundary (present only when hasBoundary).
	adj   [][]halfEdge
	edges []matchEdge
}

type matchEdge struct {
	u, v        int
	weight      float64
	observables []int
}

type halfEdge struct {
	to   int
	edge int32
}

// Compile builds the matching graph for model. Mechanisms with identical
// endpoints are merged by combining their probabilities; if their observable
// flips disagree, the first mechanism wins and the conflict is logged.
func (c *PathCompiler) Compile(model *dem.Model) (Matcher, error) {
	m := &PathMatcher{
		numDetectors:   model.NumDetectors,
		numObservables: model.NumObservables,
	}
	boundary := model.NumDetectors

	type endpoints struct{ u, v int }
	merged := make(map[endpoints]int, len(model.Mechanisms))
	probs := make([]float64, 0, len(model.Mechanisms))

	for i, mech := range model.Mechanisms {
		if mech.Probability <= 0 || mech.Probability >= 1 {
			return nil, fmt.Errorf("%w: mechanism %d has p=%v", ErrProbability, i, mech.Probability)
		}
		var u, v int
		switch len(mech.Detectors) {
		case 0:
			if len(mech.Observables) > 0 {
				return nil, fmt.Errorf("%w: mechanism %d flips observables without detectors", ErrNotGraphlike, i)
			}
			continue // pure no-op mechanism
		case 1:
			u, v = mech.Detectors[0], boundary
			m.hasBoundary = true
		case 2:
			u, v = mech.Detectors[0], mech.Detectors[1]
		default:
			return nil, fmt.Errorf("%w: mechanism %d touches %d detectors", ErrNotGraphlike, i, len(mech.Detectors))
		}

		key := endpoints{u: min(u, v), v: max(u, v)}
		if ei, ok := merged[key]; ok {
			// Two disjoint ways to produce the same detector pair: either
			// one firing alone flips the pair, so the probabilities combine
			// as p1(1-p2) + p2(1-p1).
			p1, p2 := probs[ei], mech.Probability
			probs[ei] = p1*(1-p2) + p2*(1-p1)
			m.edges[ei].weight = edgeWeight(probs[ei])
			if !equalInts(m.edges[ei].observables, mech.Observables) {
				c.log.Debugw("conflicting observable flips on merged edge; keeping first",
					"mechanism", i, "u", u, "v", v)
			}
			continue
		}
		merged[key] = len(m.edges)
		probs = append(probs, mech.Probability)
		m.edges = append(m.edges, matchEdge{
			u:           u,
			v:           v,
			weight:      edgeWeight(mech.Probability),
			observables: mech.Observables,
		})
	}

	nodes := m.numDetectors
	if m.hasBoundary {
		nodes++
	}
	m.adj = make([][]halfEdge, nodes)
	for ei, e := range m.edges {
		m.adj[e.u] = append(m.adj[e.u], halfEdge{to: e.v, edge: int32(ei)})
		m.adj[e.v] = append(m.adj[e.v], halfEdge{to: e.u, edge: int32(ei)})
	}

	c.log.Debugw("compiled matching graph",
		"detectors", m.numDetectors,
		"observables", m.numObservables,
		"edges", len(m.edges),
		"boundary", m.hasBoundary,
	)
	return m, nil
}

// edgeWeight maps a firing probability to a matching weight. Probabilities
// above 1/2 would yield negative weights; they saturate at zero so shortest
// paths stay well defined.
func edgeWeight(p float64) float64 {
	w := math.Log((1 - p) / p)
	if w < 0 {
		return 0
	}
	return w
}

// Decode implements Matcher. The syndrome must cover the full compiled
// detector index space, one 0/1 byte per detector.
func (m *PathMatcher) Decode(syndrome []uint8) ([]uint8, error) {
	if len(syndrome) != m.numDetectors {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSyndromeLength, len(syndrome), m.numDetectors)
	}
	preds := make([]uint8, m.numObservables)

	var fired []int
	for d, v := range syndrome {
		if v != 0 {
			fired = append(fired, d)
		}
	}
	if len(fired) == 0 {
		return preds, nil
	}
	if len(fired)%2 != 0 && !m.hasBoundary {
		return nil, fmt.Errorf("%w: %d events and no boundary", ErrUnmatchable, len(fired))
	}

	boundary := m.numDetectors
	remaining := append([]int(nil), fired...)
	for len(remaining) > 0 {
		u := remaining[0]
		remaining = remaining[1:]

		dist, prevEdge := m.shortestPaths(u)

		// Nearest partner: another fired detector or the boundary.
		bestIdx, bestCost := -1, math.Inf(1)
		for i, v := range remaining {
			if dist[v] < bestCost {
				bestCost, bestIdx = dist[v], i
			}
		}
		toBoundary := math.Inf(1)
		if m.hasBoundary {
			toBoundary = dist[boundary]
		}

		switch {
		case toBoundary < bestCost:
			m.applyPath(preds, prevEdge, u, boundary)
		case bestIdx >= 0 && !math.IsInf(bestCost, 1):
			v := remaining[bestIdx]
			m.applyPath(preds, prevEdge, u, v)
			remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		default:
			return nil, fmt.Errorf("%w: detector %d is unreachable", ErrUnmatchable, u)
		}
	}
	return preds, nil
}

// applyPath XORs the observable flips of every edge on the shortest path
// from u to target into preds.
func (m *PathMatcher) applyPath(preds []uint8, prevEdge []int32, u, target int) {
	for n := target; n != u; {
		e := m.edges[prevEdge[n]]
		for _, o := range e.observables {
			preds[o] ^= 1
		}
		if e.u == n {
			n = e.v
		} else {
			n = e.u
		}
	}
}

// shortestPaths runs Dijkstra from source over the full graph using a lazy
// decrease-key heap, returning distances and the edge used to reach each
// node.
func (m *PathMatcher) shortestPaths(source int) ([]float64, []int32) {
	dist := make([]float64, len(m.adj))
	prevEdge := make([]int32, len(m.adj))
	for i := range dist {
		dist[i] = math.Inf(1)
		prevEdge[i] = -1
	}
	dist[source] = 0

	pq := nodeQueue{{node: source, dist: 0}}
	for len(pq) > 0 {
		item := heap.Pop(&pq).(nodeItem)
		if item.dist > dist[item.node] {
			continue // stale entry
		}
		for _, he := range m.adj[item.node] {
			if d := item.dist + m.edges[he.edge].weight; d < dist[he.to] {
				dist[he.to] = d
				prevEdge[he.to] = he.edge
				heap.Push(&pq, nodeItem{node: he.to, dist: d})
			}
		}
	}
	return dist, prevEdge
}

type nodeItem struct {
	node int
	dist float64
}

type nodeQueue []nodeItem

func (q nodeQueue) Len() int           { return len(q) }
func (q nodeQueue) Less(i, j int) bool { return q[i].dist < q[j].dist }
func (q nodeQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x any)        { *q = append(*q, x.(nodeItem)) }
func (q *nodeQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
