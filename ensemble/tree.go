package ensemble

import (
	"math"
	"sort"

	"github.com/venus-lab/venusml/core/parallel"
)

// Node is one node of a regression tree. Leaves have Left == Right == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Gain      float64
	Depth     int
}

// IsLeaf reports whether n is a leaf.
func (n *Node) IsLeaf() bool { return n.Left < 0 }

// Tree is a binary regression tree. Rows with feature value <= Threshold go
// left, everything else (including NaN) goes right.
type Tree struct {
	Nodes []Node
}

// Predict returns the leaf value reached by row.
func (t *Tree) Predict(row []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// NumLeaves counts the leaves.
func (t *Tree) NumLeaves() int {
	count := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			count++
		}
	}
	return count
}

// minChildWeight is the smallest hessian sum a child may have.
const minChildWeight = 1.0

// parallelFeatures is the feature count below which split search stays on
// the calling goroutine.
const parallelFeatures = 4

// split describes the best partition of a node.
type split struct {
	feature   int
	threshold float64
	gain      float64
	ok        bool
}

// treeBuilder grows one tree on fixed gradients.
type treeBuilder struct {
	cfg   *Config
	X     [][]float64
	grad  []float64
	hess  []float64
	bins  *binner
	pick  func(features []int) []int
	feats []int
}

// candidate is a leaf waiting to be split.
type candidate struct {
	node  int
	rows  []int
	depth int
	seq   int
	split split
}

func thresholdL1(g, alpha float64) float64 {
	switch {
	case g > alpha:
		return g - alpha
	case g < -alpha:
		return g + alpha
	default:
		return 0
	}
}

func (b *treeBuilder) score(g, h float64) float64 {
	t := thresholdL1(g, b.cfg.RegAlpha)
	return t * t / (h + b.cfg.RegLambda)
}

func (b *treeBuilder) leafValue(rows []int) float64 {
	var g, h float64
	for _, i := range rows {
		g += b.grad[i]
		h += b.hess[i]
	}
	if h+b.cfg.RegLambda == 0 {
		return 0
	}
	return -thresholdL1(g, b.cfg.RegAlpha) / (h + b.cfg.RegLambda)
}

// build grows a tree over rows. Depthwise expands leaves level by level,
// lossguide always expands the leaf with the largest gain.
func (b *treeBuilder) build(rows []int) Tree {
	tree := Tree{Nodes: []Node{{Left: -1, Right: -1, Value: b.leafValue(rows)}}}

	var pending []candidate
	seq := 0
	push := func(node int, rows []int, depth int) {
		if b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth {
			return
		}
		s := b.bestSplit(rows)
		if !s.ok {
			return
		}
		pending = append(pending, candidate{node: node, rows: rows, depth: depth, seq: seq, split: s})
		seq++
	}
	push(0, rows, 0)

	leaves := 1
	for len(pending) > 0 {
		if b.cfg.MaxLeaves > 0 && leaves >= b.cfg.MaxLeaves {
			break
		}
		k := b.next(pending)
		c := pending[k]
		pending = append(pending[:k], pending[k+1:]...)

		left, right := partition(b.X, c.rows, c.split)
		li, ri := len(tree.Nodes), len(tree.Nodes)+1
		tree.Nodes = append(tree.Nodes,
			Node{Left: -1, Right: -1, Value: b.leafValue(left), Depth: c.depth + 1},
			Node{Left: -1, Right: -1, Value: b.leafValue(right), Depth: c.depth + 1},
		)
		n := &tree.Nodes[c.node]
		n.Feature, n.Threshold, n.Gain = c.split.feature, c.split.threshold, c.split.gain
		n.Left, n.Right = li, ri
		leaves++

		push(li, left, c.depth+1)
		push(ri, right, c.depth+1)
	}
	return tree
}

func (b *treeBuilder) next(pending []candidate) int {
	best := 0
	for k := 1; k < len(pending); k++ {
		p, q := pending[k], pending[best]
		if b.cfg.GrowPolicy == GrowLossguide {
			if p.split.gain > q.split.gain {
				best = k
			}
			continue
		}
		if p.depth < q.depth || (p.depth == q.depth && p.seq < q.seq) {
			best = k
		}
	}
	return best
}

func partition(X [][]float64, rows []int, s split) (left, right []int) {
	for _, i := range rows {
		if X[i][s.feature] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

func (b *treeBuilder) bestSplit(rows []int) split {
	features := b.feats
	if b.pick != nil {
		features = b.pick(features)
	}

	var G, H float64
	for _, i := range rows {
		G += b.grad[i]
		H += b.hess[i]
	}
	parent := b.score(G, H)

	results := make([]split, len(features))
	parallel.ParallelizeWithThreshold(len(features), parallelFeatures, func(start, end int) {
		for k := start; k < end; k++ {
			if b.bins != nil {
				results[k] = b.histSplit(rows, features[k], G, H, parent)
			} else {
				results[k] = b.exactSplit(rows, features[k], G, H, parent)
			}
		}
	})

	best := split{}
	for _, s := range results {
		if s.ok && (!best.ok || s.gain > best.gain) {
			best = s
		}
	}
	return best
}

func (b *treeBuilder) consider(best *split, feature int, threshold, gl, hl, G, H, parent float64) {
	hr := H - hl
	if hl < minChildWeight || hr < minChildWeight {
		return
	}
	gain := 0.5 * (b.score(gl, hl) + b.score(G-gl, hr) - parent)
	if gain <= 1e-12 || math.IsNaN(gain) {
		return
	}
	if !best.ok || gain > best.gain {
		*best = split{feature: feature, threshold: threshold, gain: gain, ok: true}
	}
}

// exactSplit enumerates every boundary between distinct values.
func (b *treeBuilder) exactSplit(rows []int, feature int, G, H, parent float64) split {
	order := append([]int(nil), rows...)
	sort.Slice(order, func(p, q int) bool { return b.X[order[p]][feature] < b.X[order[q]][feature] })

	best := split{}
	var gl, hl float64
	for k := 0; k < len(order)-1; k++ {
		i := order[k]
		gl += b.grad[i]
		hl += b.hess[i]
		v, next := b.X[i][feature], b.X[order[k+1]][feature]
		if v == next {
			continue
		}
		b.consider(&best, feature, (v+next)/2, gl, hl, G, H, parent)
	}
	return best
}

// histSplit scans the precomputed bins of feature.
func (b *treeBuilder) histSplit(rows []int, feature int, G, H, parent float64) split {
	cuts := b.bins.cuts[feature]
	if len(cuts) == 0 {
		return split{}
	}
	g := make([]float64, len(cuts)+1)
	h := make([]float64, len(cuts)+1)
	for _, i := range rows {
		bin := b.bins.index[feature][i]
		g[bin] += b.grad[i]
		h[bin] += b.hess[i]
	}

	best := split{}
	var gl, hl float64
	for bin := 0; bin < len(cuts); bin++ {
		gl += g[bin]
		hl += h[bin]
		b.consider(&best, feature, cuts[bin], gl, hl, G, H, parent)
	}
	return best
}

// binner holds per-feature cut points and the bin of every training row.
type binner struct {
	cuts  [][]float64
	index [][]int
}

func newBinner(X [][]float64, cols, maxBin int) *binner {
	b := &binner{cuts: make([][]float64, cols), index: make([][]int, cols)}
	values := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i, row := range X {
			values[i] = row[j]
		}
		cuts := findCuts(values, maxBin)
		idx := make([]int, len(X))
		for i, row := range X {
			idx[i] = sort.SearchFloat64s(cuts, row[j])
		}
		b.cuts[j] = cuts
		b.index[j] = idx
	}
	return b
}

// findCuts returns at most maxBin-1 ascending split points. With few
// distinct values every midpoint is a cut, otherwise the distinct values are
// split into equal-frequency groups.
func findCuts(values []float64, maxBin int) []float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Float64s(sorted)

	unique := sorted[:1]
	for _, v := range sorted[1:] {
		if v != unique[len(unique)-1] {
			unique = append(unique, v)
		}
	}

	var cuts []float64
	if len(unique) <= maxBin {
		for i := 1; i < len(unique); i++ {
			cuts = append(cuts, (unique[i-1]+unique[i])/2)
		}
		return cuts
	}
	step := float64(len(unique)) / float64(maxBin)
	last := 0
	for k := 1; k < maxBin; k++ {
		i := int(math.Round(float64(k) * step))
		if i <= last || i >= len(unique) {
			continue
		}
		cuts = append(cuts, (unique[i-1]+unique[i])/2)
		last = i
	}
	return cuts
}
