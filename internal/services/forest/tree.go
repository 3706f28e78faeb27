package forest

import (
	"sort"
)

const leaf = -1

type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
}

// Tree is a CART regression tree using squared-error splits.
type Tree struct {
	nodes []node
	// importances holds the raw squared-error decrease contributed by each feature.
	importances []float64
}

type treeBuilder struct {
	x        [][]float64
	y        []float64
	maxDepth int
	minSplit int
	minLeaf  int
	tree     *Tree
}

// growTree fits a tree on the rows listed in idx (duplicates allowed for bootstrap).
func growTree(x [][]float64, y []float64, idx []int, nFeatures int, cfg Config) *Tree {
	b := &treeBuilder{
		x:        x,
		y:        y,
		maxDepth: cfg.MaxDepth,
		minSplit: cfg.MinSamplesSplit,
		minLeaf:  cfg.MinSamplesLeaf,
		tree:     &Tree{importances: make([]float64, nFeatures)},
	}
	b.build(idx, 0)
	return b.tree
}

func (b *treeBuilder) build(idx []int, depth int) int {
	sum, sumSq := 0.0, 0.0
	for _, i := range idx {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	id := len(b.tree.nodes)
	b.tree.nodes = append(b.tree.nodes, node{feature: leaf, left: leaf, right: leaf, value: sum / n})

	if (b.maxDepth > 0 && depth >= b.maxDepth) || len(idx) < b.minSplit || len(idx) < 2*b.minLeaf {
		return id
	}
	parentSSE := sumSq - sum*sum/n
	if parentSSE <= 1e-12 {
		return id
	}

	s, ok := b.bestSplit(idx, parentSSE)
	if !ok {
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][s.feature] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.tree.importances[s.feature] += parentSSE - s.sse

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	nd := &b.tree.nodes[id]
	nd.feature = s.feature
	nd.threshold = s.threshold
	nd.left = l
	nd.right = r
	return id
}

type split struct {
	feature   int
	threshold float64
	sse       float64
}

func (b *treeBuilder) bestSplit(idx []int, parentSSE float64) (split, bool) {
	best := split{sse: parentSSE}
	found := false
	sorted := make([]int, len(idx))
	nFeatures := len(b.x[idx[0]])

	for f := 0; f < nFeatures; f++ {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool { return b.x[sorted[a]][f] < b.x[sorted[c]][f] })

		totalSum, totalSq := 0.0, 0.0
		for _, i := range sorted {
			totalSum += b.y[i]
			totalSq += b.y[i] * b.y[i]
		}

		lSum, lSq := 0.0, 0.0
		n := len(sorted)
		for k := 1; k < n; k++ {
			yi := b.y[sorted[k-1]]
			lSum += yi
			lSq += yi * yi
			if k < b.minLeaf || n-k < b.minLeaf {
				continue
			}
			lo := b.x[sorted[k-1]][f]
			hi := b.x[sorted[k]][f]
			if !(lo < hi) {
				continue
			}
			nl, nr := float64(k), float64(n-k)
			rSum, rSq := totalSum-lSum, totalSq-lSq
			sse := (lSq - lSum*lSum/nl) + (rSq - rSum*rSum/nr)
			if sse < best.sse-1e-12 {
				thr := (lo + hi) / 2
				if thr >= hi {
					thr = lo
				}
				best = split{feature: f, threshold: thr, sse: sse}
				found = true
			}
		}
	}
	return best, found
}

// Predict walks the tree for a single feature vector.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		nd := t.nodes[i]
		if nd.left == leaf {
			return nd.value
		}
		if x[nd.feature] <= nd.threshold {
			i = nd.left
		} else {
			i = nd.right
		}
	}
}

// depth is the number of edges on the longest root-to-leaf path.
func (t *Tree) depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		nd := t.nodes[i]
		if nd.left == leaf {
			return 0
		}
		l, r := walk(nd.left), walk(nd.right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}
