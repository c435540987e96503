package nlp

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"review_insights/internal/domain"
)

var positiveWords = wordSet(`good great excellent amazing awesome fantastic wonderful delicious tasty friendly
helpful nice lovely perfect best love loved enjoy enjoyed clean fresh cozy quick fast fair polite attentive
recommend beautiful pleasant superb outstanding affordable generous happy comfortable impressive welcoming`)

var negativeWords = wordSet(`bad terrible awful horrible poor worst rude slow dirty cold bland overpriced
expensive disappointing disappointed noisy loud broken stale greasy salty hate hated wrong unfriendly
small tiny late never mediocre gross burnt raw crowded uncomfortable unprofessional`)

var negators = wordSet(`not no never nothing hardly isn't wasn't aren't weren't don't doesn't didn't
can't couldn't won't wouldn't shouldn't`)

var intensifiers = wordSet(`very really so extremely super incredibly absolutely truly`)

// aspects a review typically talks about; they win over plain keywords
var aspectWords = wordSet(`food service staff price prices menu atmosphere ambiance ambience parking
drinks coffee wine beer dessert breakfast lunch dinner portions portion music location wait waiter
waitress manager cleanliness decor seating terrace room rooms pizza pasta burger sushi bar view`)

var localStopWords = wordSet(`the and a an of to in for is on with as by at from that this it be or are
was were will has have had but you your we our they their them i me my he she his her its very really
so just also there here what when which who all any some more most than then too can could would should
been being do does did am us place`)

func wordSet(s string) map[string]struct{} {
	m := map[string]struct{}{}
	for _, w := range strings.Fields(s) {
		m[w] = struct{}{}
	}
	return m
}

// Local is a deterministic lexicon scorer. It needs no network and is the
// fallback when the remote service fails.
type Local struct{}

func NewLocal() *Local { return &Local{} }

func (l *Local) Analyze(ctx context.Context, text string) (domain.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return domain.Analysis{}, err
	}
	toks := words(text)

	var pos, neg float64
	for i, t := range toks {
		_, isPos := positiveWords[t]
		_, isNeg := negativeWords[t]
		if !isPos && !isNeg {
			continue
		}
		w := 1.0
		flip := false
		for j := i - 1; j >= 0 && j >= i-3; j-- {
			if _, ok := negators[toks[j]]; ok {
				flip = !flip
			}
			if _, ok := intensifiers[toks[j]]; ok && j == i-1 {
				w = 1.5
			}
		}
		if isPos != flip {
			pos += w
		} else {
			neg += w
		}
	}

	score := (pos - neg) / (pos + neg + 1)
	return domain.Analysis{
		Score:     math.Max(-1, math.Min(1, score)),
		Magnitude: pos + neg,
		Entities:  topicEntities(toks, 3),
	}, nil
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

// topicEntities ranks aspect words first, then other keywords, by frequency.
func topicEntities(toks []string, n int) []domain.Entity {
	freq := map[string]int{}
	total := 0
	for _, t := range toks {
		if len(t) < 3 {
			continue
		}
		if _, stop := localStopWords[t]; stop {
			continue
		}
		freq[t]++
		total++
	}

	type kv struct {
		K      string
		V      int
		aspect bool
	}
	list := make([]kv, 0, len(freq))
	for k, v := range freq {
		_, a := aspectWords[k]
		_, p := positiveWords[k]
		_, ng := negativeWords[k]
		if p || ng {
			continue
		}
		list = append(list, kv{k, v, a})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].aspect != list[j].aspect {
			return list[i].aspect
		}
		if list[i].V == list[j].V {
			return list[i].K < list[j].K
		}
		return list[i].V > list[j].V
	})
	if n > len(list) {
		n = len(list)
	}
	out := make([]domain.Entity, 0, n)
	for i := 0; i < n; i++ {
		typ := "OTHER"
		if list[i].aspect {
			typ = "CONSUMER_GOOD"
		}
		out = append(out, domain.Entity{
			Name:     list[i].K,
			Type:     typ,
			Salience: float64(list[i].V) / float64(total),
		})
	}
	return out
}
