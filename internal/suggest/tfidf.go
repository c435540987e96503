package suggest

import (
	"math"
	"sort"
	"strings"
)

// Vectorizer is a fitted TF-IDF model over unigrams and bigrams.
// IDF uses the smoothed form ln((1+n)/(1+df))+1 and rows are L2-normalized.
type Vectorizer struct {
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
}

// sparseVec holds the non-zero entries of one row, sorted by index.
type sparseVec struct {
	idx []int
	val []float64
}

func (s sparseVec) at(i int) float64 {
	k := sort.SearchInts(s.idx, i)
	if k < len(s.idx) && s.idx[k] == i {
		return s.val[k]
	}
	return 0
}

func ngrams(tokens []string) []string {
	out := make([]string, 0, 2*len(tokens))
	out = append(out, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}

// fitVectorizer keeps the maxFeatures most frequent terms of the corpus.
// Indices follow the alphabetical order of the kept terms.
func fitVectorizer(docs [][]string, maxFeatures int) *Vectorizer {
	freq := map[string]int{}
	df := map[string]int{}
	for _, d := range docs {
		seen := map[string]struct{}{}
		for _, g := range ngrams(d) {
			freq[g]++
			if _, ok := seen[g]; !ok {
				seen[g] = struct{}{}
				df[g]++
			}
		}
	}

	terms := make([]string, 0, len(freq))
	for t := range freq {
		terms = append(terms, t)
	}
	if maxFeatures > 0 && len(terms) > maxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if freq[terms[i]] != freq[terms[j]] {
				return freq[terms[i]] > freq[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:maxFeatures]
	}
	sort.Strings(terms)

	n := float64(len(docs))
	v := &Vectorizer{
		Vocabulary: make(map[string]int, len(terms)),
		IDF:        make([]float64, len(terms)),
	}
	for i, t := range terms {
		v.Vocabulary[t] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}
	return v
}

func (v *Vectorizer) Len() int { return len(v.IDF) }

// transform maps preprocessed tokens to a normalized TF-IDF row.
// Terms outside the vocabulary are ignored.
func (v *Vectorizer) transform(tokens []string) sparseVec {
	counts := map[int]float64{}
	for _, g := range ngrams(tokens) {
		if i, ok := v.Vocabulary[g]; ok {
			counts[i]++
		}
	}
	row := sparseVec{
		idx: make([]int, 0, len(counts)),
		val: make([]float64, 0, len(counts)),
	}
	for i := range counts {
		row.idx = append(row.idx, i)
	}
	sort.Ints(row.idx)
	var norm float64
	for _, i := range row.idx {
		w := counts[i] * v.IDF[i]
		row.val = append(row.val, w)
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for k := range row.val {
			row.val[k] /= norm
		}
	}
	return row
}

func (v *Vectorizer) valid() bool {
	if v == nil || len(v.Vocabulary) != len(v.IDF) {
		return false
	}
	for t, i := range v.Vocabulary {
		if i < 0 || i >= len(v.IDF) || strings.TrimSpace(t) == "" {
			return false
		}
	}
	return true
}
