package validation

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Splitter produces train/test index sets over the rows of X.
type Splitter interface {
	Split(X, y mat.Matrix) []CVFold
	GetNSplits() int
}

// CVFold holds the row indices of one fold.
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold splits rows into NSplits contiguous (optionally shuffled) test blocks.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewKFold creates a k-fold splitter. nSplits below 2 defaults to 5.
func NewKFold(nSplits int, shuffle bool, randomSeed int) *KFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of folds.
func (kf *KFold) GetNSplits() int { return kf.NSplits }

// Split assigns the first n%k folds one extra row.
func (kf *KFold) Split(X, _ mat.Matrix) []CVFold {
	n, _ := X.Dims()
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(kf.RandomSeed), uint64(kf.RandomSeed)))
		r.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
	}

	folds := make([]CVFold, kf.NSplits)
	size, rem := n/kf.NSplits, n%kf.NSplits
	start := 0
	for i := range folds {
		testSize := size
		if i < rem {
			testSize++
		}
		end := start + testSize
		folds[i] = CVFold{
			TestIndices:  append([]int(nil), indices[start:end]...),
			TrainIndices: append(append([]int(nil), indices[:start]...), indices[end:]...),
		}
		start = end
	}
	return folds
}
