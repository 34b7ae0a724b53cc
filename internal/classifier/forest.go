package classifier

import (
	"context"
	"fmt"
)

// Tree is one decision tree in array form. Node i is a leaf when
// ChildrenLeft[i] == -1; otherwise samples with x[Feature[i]] <= Threshold[i]
// go left. Value[i] holds the class weights reaching node i.
type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// Forest is a random forest classifier. The class probabilities are the
// mean of the normalised leaf distributions over all trees.
type Forest struct {
	Trees []Tree `json:"trees"`
}

// Name implements Model.
func (f *Forest) Name() string { return TypeRandomForest }

// PredictProba implements Model.
func (f *Forest) PredictProba(ctx context.Context, x []float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var proba []float64
	for ti := range f.Trees {
		leaf, err := f.Trees[ti].leaf(x)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", ti, err)
		}
		if proba == nil {
			proba = make([]float64, len(leaf))
		}
		var total float64
		for _, w := range leaf {
			total += w
		}
		if total <= 0 {
			return nil, fmt.Errorf("tree %d: empty leaf distribution", ti)
		}
		for c, w := range leaf {
			proba[c] += w / total
		}
	}
	n := float64(len(f.Trees))
	for c := range proba {
		proba[c] /= n
	}
	return proba, nil
}

func (t *Tree) leaf(x []float64) ([]float64, error) {
	node := 0
	// A well-formed tree reaches a leaf in fewer steps than it has nodes.
	for steps := 0; steps <= len(t.ChildrenLeft); steps++ {
		if t.ChildrenLeft[node] == -1 {
			return t.Value[node], nil
		}
		f := t.Feature[node]
		if f < 0 || f >= len(x) {
			return nil, fmt.Errorf("node %d splits on feature %d, vector has %d", node, f, len(x))
		}
		if x[f] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return nil, fmt.Errorf("cycle detected")
}

func (f *Forest) check(nFeatures, nClasses int) error {
	if len(f.Trees) == 0 {
		return fmt.Errorf("random forest has no trees")
	}
	for ti, t := range f.Trees {
		n := len(t.ChildrenLeft)
		if n == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}
		if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
			return fmt.Errorf("tree %d: node arrays differ in length", ti)
		}
		for i := 0; i < n; i++ {
			if len(t.Value[i]) != nClasses {
				return fmt.Errorf("tree %d node %d: %d class weights, expected %d", ti, i, len(t.Value[i]), nClasses)
			}
			if t.ChildrenLeft[i] == -1 {
				continue
			}
			if t.ChildrenLeft[i] <= 0 || t.ChildrenLeft[i] >= n || t.ChildrenRight[i] <= 0 || t.ChildrenRight[i] >= n {
				return fmt.Errorf("tree %d node %d: child index out of range", ti, i)
			}
			if t.Feature[i] < 0 || t.Feature[i] >= nFeatures {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, i, t.Feature[i])
			}
		}
	}
	return nil
}
