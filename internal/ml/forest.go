package ml

import (
	"fmt"
	"math/rand"
	"sort"
)

// ForestParams 随机森林参数
type ForestParams struct {
	NumTrees        int   `json:"num_trees"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	Seed            int64 `json:"seed"`
}

// DefaultForestParams 与离线基准一致: 100 棵树, 深度 10, 固定种子
func DefaultForestParams() ForestParams {
	return ForestParams{
		NumTrees:        100,
		MaxDepth:        10,
		MinSamplesSplit: 2,
		Seed:            42,
	}
}

// treeNode 回归树节点。Leaf 为真时只有 Value 有效。
type treeNode struct {
	Leaf      bool      `json:"leaf"`
	Value     float64   `json:"value,omitempty"`
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
}

// RandomForest 回归树集成: bootstrap 采样, 方差缩减分裂, 预测取均值。
// 固定种子下训练完全可复现。树策略不做标准化。
type RandomForest struct {
	Params     ForestParams `json:"params"`
	Trees      []*treeNode  `json:"trees"`
	Importance []float64    `json:"importance"`
}

// NewRandomForest 创建随机森林
func NewRandomForest(params ForestParams) *RandomForest {
	return &RandomForest{Params: params}
}

// Fit 训练全部树。单一 rng 顺序建树, 同一种子产出同一森林。
func (f *RandomForest) Fit(X [][]float64, y []float64) error {
	n := len(X)
	if n == 0 {
		return fmt.Errorf("fit forest: empty training set")
	}
	if n != len(y) {
		return fmt.Errorf("fit forest: %d rows but %d targets", n, len(y))
	}
	p := len(X[0])

	rng := rand.New(rand.NewSource(f.Params.Seed))
	imp := make([]float64, p)

	f.Trees = make([]*treeNode, f.Params.NumTrees)
	for t := range f.Trees {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		f.Trees[t] = f.buildTree(X, y, idx, 0, imp)
	}

	// 归一化不纯度重要性
	total := 0.0
	for _, v := range imp {
		total += v
	}
	if total > 0 {
		for j := range imp {
			imp[j] /= total
		}
	}
	f.Importance = imp
	return nil
}

// Predict 所有树的预测均值
func (f *RandomForest) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		sum := 0.0
		for _, tree := range f.Trees {
			sum += predictTree(tree, row)
		}
		out[i] = sum / float64(len(f.Trees))
	}
	return out
}

// FeatureImportance 训练时累积的归一化不纯度缩减
func (f *RandomForest) FeatureImportance() []float64 {
	return f.Importance
}

func predictTree(node *treeNode, row []float64) float64 {
	for !node.Leaf {
		if row[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

// buildTree 递归建树。分裂准则为加权平方误差的缩减, 缩减量计入 imp。
func (f *RandomForest) buildTree(X [][]float64, y []float64, idx []int, depth int, imp []float64) *treeNode {
	mean, sse := meanSSE(y, idx)

	if depth >= f.Params.MaxDepth || len(idx) < f.Params.MinSamplesSplit || sse == 0 {
		return &treeNode{Leaf: true, Value: mean}
	}

	feature, threshold, gain, ok := bestSplit(X, y, idx, sse)
	if !ok {
		return &treeNode{Leaf: true, Value: mean}
	}
	imp[feature] += gain

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &treeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      f.buildTree(X, y, left, depth+1, imp),
		Right:     f.buildTree(X, y, right, depth+1, imp),
	}
}

// bestSplit 在全部特征上穷举最优二分。对每个特征按值排序后用前缀和
// 扫描候选切点, 切点取相邻不同取值的中点。
func bestSplit(X [][]float64, y []float64, idx []int, nodeSSE float64) (feature int, threshold, gain float64, ok bool) {
	n := len(idx)
	p := len(X[idx[0]])

	bestSSE := nodeSSE
	order := make([]int, n)

	for j := 0; j < p; j++ {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool {
			return X[order[a]][j] < X[order[b]][j]
		})

		// 前缀统计量: 左侧和、左侧平方和
		sumL, sqL := 0.0, 0.0
		sumT, sqT := 0.0, 0.0
		for _, i := range order {
			sumT += y[i]
			sqT += y[i] * y[i]
		}

		for k := 0; k < n-1; k++ {
			yi := y[order[k]]
			sumL += yi
			sqL += yi * yi

			vk, vnext := X[order[k]][j], X[order[k+1]][j]
			if vk == vnext {
				continue
			}

			nl, nr := float64(k+1), float64(n-k-1)
			sseL := sqL - sumL*sumL/nl
			sumR, sqR := sumT-sumL, sqT-sqL
			sseR := sqR - sumR*sumR/nr

			if sseL+sseR < bestSSE {
				bestSSE = sseL + sseR
				feature = j
				threshold = (vk + vnext) / 2
				ok = true
			}
		}
	}

	return feature, threshold, nodeSSE - bestSSE, ok
}

func meanSSE(y []float64, idx []int) (mean, sse float64) {
	n := float64(len(idx))
	if n == 0 {
		return 0, 0
	}
	for _, i := range idx {
		mean += y[i]
	}
	mean /= n
	for _, i := range idx {
		d := y[i] - mean
		sse += d * d
	}
	return mean, sse
}
