package suggest

import (
	"math"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Tree is a binary decision tree stored as parallel node arrays.
// Feature[i] < 0 marks a leaf; Value[i] is the positive-class share at node i.
type Tree struct {
	Feature   []int     `json:"feature"`
	Threshold []float64 `json:"threshold"`
	Left      []int     `json:"left"`
	Right     []int     `json:"right"`
	Value     []float64 `json:"value"`
}

type Forest struct {
	NFeatures int    `json:"n_features"`
	Trees     []Tree `json:"trees"`
}

type forestParams struct {
	trees    int
	seed     int64
	maxDepth int
}

// fitForest grows a bootstrap ensemble of Gini trees, each split drawing
// sqrt(nFeatures) candidate features. Output depends only on the seed.
func fitForest(X []sparseVec, y []int, nFeatures int, p forestParams) *Forest {
	if p.trees <= 0 {
		p.trees = 100
	}
	if p.maxDepth <= 0 {
		p.maxDepth = 64
	}
	mtry := int(math.Sqrt(float64(nFeatures)))
	if mtry < 1 {
		mtry = 1
	}

	// Draw every tree's bootstrap and seed up front so parallel
	// construction stays deterministic.
	master := rand.New(rand.NewSource(p.seed))
	samples := make([][]int, p.trees)
	seeds := make([]int64, p.trees)
	for t := range samples {
		s := make([]int, len(X))
		for i := range s {
			s[i] = master.Intn(len(X))
		}
		samples[t] = s
		seeds[t] = master.Int63()
	}

	f := &Forest{NFeatures: nFeatures, Trees: make([]Tree, p.trees)}
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := range f.Trees {
		g.Go(func() error {
			b := &treeBuilder{
				X: X, y: y, mtry: mtry, maxDepth: p.maxDepth,
				rng: rand.New(rand.NewSource(seeds[t])),
			}
			b.build(samples[t], 0)
			f.Trees[t] = b.tree
			return nil
		})
	}
	_ = g.Wait()
	return f
}

// proba averages the leaf positive shares of all trees.
func (f *Forest) proba(x sparseVec) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].leafValue(x)
	}
	return sum / float64(len(f.Trees))
}

func (t *Tree) leafValue(x sparseVec) float64 {
	n := 0
	for t.Feature[n] >= 0 {
		if x.at(t.Feature[n]) <= t.Threshold[n] {
			n = t.Left[n]
		} else {
			n = t.Right[n]
		}
	}
	return t.Value[n]
}

func (f *Forest) valid() bool {
	if f == nil || len(f.Trees) == 0 || f.NFeatures < 0 {
		return false
	}
	for i := range f.Trees {
		t := &f.Trees[i]
		n := len(t.Feature)
		if n == 0 || len(t.Threshold) != n || len(t.Left) != n || len(t.Right) != n || len(t.Value) != n {
			return false
		}
		for k := 0; k < n; k++ {
			if t.Feature[k] < 0 {
				continue
			}
			// children are always appended after their parent
			if t.Feature[k] >= f.NFeatures || t.Left[k] <= k || t.Right[k] <= k || t.Left[k] >= n || t.Right[k] >= n {
				return false
			}
		}
	}
	return true
}

type treeBuilder struct {
	X        []sparseVec
	y        []int
	mtry     int
	maxDepth int
	rng      *rand.Rand
	tree     Tree
}

func (b *treeBuilder) addNode(value float64) int {
	b.tree.Feature = append(b.tree.Feature, -1)
	b.tree.Threshold = append(b.tree.Threshold, 0)
	b.tree.Left = append(b.tree.Left, -1)
	b.tree.Right = append(b.tree.Right, -1)
	b.tree.Value = append(b.tree.Value, value)
	return len(b.tree.Feature) - 1
}

func (b *treeBuilder) build(samples []int, depth int) int {
	pos := 0
	for _, s := range samples {
		pos += b.y[s]
	}
	id := b.addNode(float64(pos) / float64(len(samples)))
	if pos == 0 || pos == len(samples) || depth >= b.maxDepth {
		return id
	}
	feat, thr, ok := b.bestSplit(samples, pos)
	if !ok {
		return id
	}
	var left, right []int
	for _, s := range samples {
		if b.X[s].at(feat) <= thr {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.tree.Feature[id] = feat
	b.tree.Threshold[id] = thr
	b.tree.Left[id] = l
	b.tree.Right[id] = r
	return id
}

func gini(pos, n float64) float64 {
	if n == 0 {
		return 0
	}
	p := pos / n
	return 1 - p*p - (1-p)*(1-p)
}

type point struct {
	v float64
	y int
}

// bestSplit looks at up to mtry non-constant features in random order and
// returns the split with the lowest weighted child impurity.
func (b *treeBuilder) bestSplit(samples []int, pos int) (int, float64, bool) {
	cands := b.varyingFeatures(samples)
	if len(cands) == 0 {
		return 0, 0, false
	}
	b.rng.Shuffle(len(cands), func(i, j int) { cands[i], cands[j] = cands[j], cands[i] })
	if len(cands) > b.mtry {
		cands = cands[:b.mtry]
	}

	n := float64(len(samples))
	best := math.Inf(1)
	bestFeat, bestThr := 0, 0.0
	pts := make([]point, len(samples))
	for _, f := range cands {
		for i, s := range samples {
			pts[i] = point{v: b.X[s].at(f), y: b.y[s]}
		}
		sort.Slice(pts, func(i, j int) bool { return pts[i].v < pts[j].v })
		lpos := 0.0
		for i := 0; i < len(pts)-1; i++ {
			lpos += float64(pts[i].y)
			if pts[i].v == pts[i+1].v {
				continue
			}
			ln := float64(i + 1)
			rn := n - ln
			imp := (ln*gini(lpos, ln) + rn*gini(float64(pos)-lpos, rn)) / n
			if imp < best {
				best = imp
				bestFeat = f
				bestThr = (pts[i].v + pts[i+1].v) / 2
			}
		}
	}
	if math.IsInf(best, 1) {
		return 0, 0, false
	}
	return bestFeat, bestThr, true
}

// varyingFeatures lists, in index order, the features whose value is not
// the same across all samples of the node.
func (b *treeBuilder) varyingFeatures(samples []int) []int {
	present := map[int]int{}
	first := map[int]float64{}
	varies := map[int]bool{}
	for _, s := range samples {
		row := b.X[s]
		for k, f := range row.idx {
			present[f]++
			if v, ok := first[f]; !ok {
				first[f] = row.val[k]
			} else if v != row.val[k] {
				varies[f] = true
			}
		}
	}
	out := make([]int, 0, len(present))
	for f, c := range present {
		if c < len(samples) || varies[f] {
			out = append(out, f)
		}
	}
	sort.Ints(out)
	return out
}
