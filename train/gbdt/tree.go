package gbdt

import (
	"sort"
)

// Node is one node of a regression tree. Internal nodes route on
// x[Feature] <= Threshold (true branch = Left); leaves carry the additive
// output value with shrinkage already applied.
type Node struct {
	Feature   int
	Threshold float64
	Left      int // child index, -1 for leaves
	Right     int // child index, -1 for leaves
	Value     float64
}

// Tree is a single regression tree of the ensemble. Node 0 is the root.
type Tree struct {
	Nodes []Node
}

// IsLeaf reports whether node i is a leaf.
func (t *Tree) IsLeaf(i int) bool {
	return t.Nodes[i].Left < 0
}

// Predict returns the tree's output for one feature vector.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for !t.IsLeaf(i) {
		n := t.Nodes[i]
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Value
}

// split describes the best found partition of one leaf.
type split struct {
	gain      float64
	feature   int
	threshold float64
	left      []int
	right     []int
	leftG     float64
	leftH     float64
	rightG    float64
	rightH    float64
}

// openLeaf tracks a grown-but-splittable leaf during tree construction.
type openLeaf struct {
	node      int // index into Tree.Nodes
	rows      []int
	sumG      float64
	sumH      float64
	best      *split
	evaluated bool
}

// minSplitGain guards against splits whose gain is numerical noise.
const minSplitGain = 1e-12

// growTree fits one regression tree to the per-row gradients and hessians,
// growing leaf-wise: repeatedly split the open leaf with the highest gain
// until the leaf budget is exhausted or no positive-gain split remains.
func growTree(x [][]float64, grad, hess []float64, rows []int, features []int, cfg Config) *Tree {
	t := &Tree{}

	sumG, sumH := 0.0, 0.0
	for _, r := range rows {
		sumG += grad[r]
		sumH += hess[r]
	}

	rootID := t.addLeaf(leafValue(sumG, sumH, cfg))
	open := []*openLeaf{{node: rootID, rows: rows, sumG: sumG, sumH: sumH}}

	for leaves := 1; leaves < cfg.NumLeaves; leaves++ {
		var best *openLeaf
		for _, l := range open {
			if !l.evaluated {
				l.best = findBestSplit(x, grad, hess, l, features, cfg)
				l.evaluated = true
			}
			if l.best == nil {
				continue
			}
			if best == nil || l.best.gain > best.best.gain {
				best = l
			}
		}
		if best == nil {
			break
		}

		s := best.best
		leftID := t.addLeaf(leafValue(s.leftG, s.leftH, cfg))
		rightID := t.addLeaf(leafValue(s.rightG, s.rightH, cfg))
		t.Nodes[best.node].Feature = s.feature
		t.Nodes[best.node].Threshold = s.threshold
		t.Nodes[best.node].Left = leftID
		t.Nodes[best.node].Right = rightID

		next := open[:0]
		for _, l := range open {
			if l != best {
				next = append(next, l)
			}
		}
		open = append(next,
			&openLeaf{node: leftID, rows: s.left, sumG: s.leftG, sumH: s.leftH},
			&openLeaf{node: rightID, rows: s.right, sumG: s.rightG, sumH: s.rightH},
		)
	}

	return t
}

// addLeaf appends a leaf node and returns its index.
func (t *Tree) addLeaf(value float64) int {
	t.Nodes = append(t.Nodes, Node{Feature: -1, Left: -1, Right: -1, Value: value})
	return len(t.Nodes) - 1
}

// leafValue is the regularized Newton step for a leaf, with shrinkage.
func leafValue(sumG, sumH float64, cfg Config) float64 {
	return -sumG / (sumH + cfg.Lambda) * cfg.LearningRate
}

// findBestSplit scans every candidate feature of one leaf for the
// highest-gain partition, or returns nil when no admissible split exists.
// Thresholds are midpoints between adjacent distinct feature values.
func findBestSplit(x [][]float64, grad, hess []float64, l *openLeaf, features []int, cfg Config) *split {
	if len(l.rows) < 2*cfg.MinSamplesLeaf {
		return nil
	}

	parentScore := l.sumG * l.sumG / (l.sumH + cfg.Lambda)

	var best *split
	ordered := make([]int, len(l.rows))

	for _, f := range features {
		copy(ordered, l.rows)
		sort.Slice(ordered, func(i, j int) bool { return x[ordered[i]][f] < x[ordered[j]][f] })

		leftG, leftH := 0.0, 0.0
		for i := 0; i < len(ordered)-1; i++ {
			r := ordered[i]
			leftG += grad[r]
			leftH += hess[r]

			// Only cut between distinct values.
			v, next := x[r][f], x[ordered[i+1]][f]
			if v == next {
				continue
			}
			nLeft := i + 1
			nRight := len(ordered) - nLeft
			if nLeft < cfg.MinSamplesLeaf || nRight < cfg.MinSamplesLeaf {
				continue
			}

			rightG := l.sumG - leftG
			rightH := l.sumH - leftH
			gain := leftG*leftG/(leftH+cfg.Lambda) + rightG*rightG/(rightH+cfg.Lambda) - parentScore
			if gain <= minSplitGain {
				continue
			}
			if best != nil && gain <= best.gain {
				continue
			}

			best = &split{
				gain:      gain,
				feature:   f,
				threshold: (v + next) / 2,
				left:      append([]int(nil), ordered[:nLeft]...),
				right:     append([]int(nil), ordered[nLeft:]...),
				leftG:     leftG,
				leftH:     leftH,
				rightG:    rightG,
				rightH:    rightH,
			}
		}
	}

	return best
}
