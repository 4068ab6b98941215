package pipeline

import (
	"math"
	"math/rand"

	"github.com/langchou/tripgazer/internal/models"
)

// DefaultSeed 默认随机种子, 保证切分可复现
const DefaultSeed = 42

// Split 随机切分训练/测试集。同一 seed 永远产出同一切分。
func Split(ds *models.Dataset, testSize float64, seed int64) (train, test *models.Dataset) {
	n := len(ds.X)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) {
		idx[i], idx[j] = idx[j], idx[i]
	})

	nTest := int(math.Round(float64(n) * testSize))
	if nTest > n {
		nTest = n
	}

	test = subset(ds, idx[:nTest])
	train = subset(ds, idx[nTest:])
	return train, test
}

func subset(ds *models.Dataset, idx []int) *models.Dataset {
	out := &models.Dataset{
		X:     make([][]float64, len(idx)),
		Y:     make([]float64, len(idx)),
		Names: ds.Names,
	}
	for i, j := range idx {
		out.X[i] = ds.X[j]
		out.Y[i] = ds.Y[j]
	}
	return out
}
