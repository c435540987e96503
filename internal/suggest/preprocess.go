package suggest

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
)

// Modal and negation words are not dropped: they carry most of the signal.
var stopWords = func() map[string]struct{} {
	words := strings.Fields(`
a about above across after afterwards again against all almost alone along already also although always
am among amongst amount an and another any anyhow anyone anything anyway anywhere are around as at
be became because become becomes becoming been before beforehand behind being below beside besides between
beyond both bottom but by ca call did do does doing done down due during each eight either eleven else
elsewhere empty enough even ever every everyone everything everywhere except few fifteen fifty first five
for former formerly forty four from front full further get give go had has have he hence her here
hereafter hereby herein hereupon hers herself him himself his however hundred i if in indeed into is it
its itself just keep last latter latterly least less made make many me meanwhile mine more moreover most
mostly move much my myself name namely neither nevertheless next nine nobody none noone nor nothing now
nowhere of off often on once one only onto or other others otherwise our ours ourselves out over own
part per perhaps please put quite rather re really regarding same say see seem seemed seeming seems
serious several she show side since six sixty so some somehow someone something sometime sometimes
somewhere still such take ten than that the their them themselves then thence there thereafter thereby
therefore therein thereupon these they third this those though three through throughout thru thus to
together too top toward towards twelve twenty two under unless until up upon us used using various very
via was we well were what whatever when whence whenever where whereafter whereas whereby wherein whereupon
wherever whether which while whither who whoever whole whom whose why will with within without yet you
your yours yourself yourselves 's 're 've 'd 'll 'm`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// tokenize lowercases and splits on anything that is not a letter, digit or
// apostrophe. Single-rune tokens are dropped.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if len([]rune(f)) < 2 {
			continue
		}
		out = append(out, f)
	}
	return out
}

// preprocess returns stemmed, stop-word free tokens.
func preprocess(text string) []string {
	toks := tokenize(strings.TrimSpace(text))
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		if _, stop := stopWords[t]; stop {
			continue
		}
		out = append(out, stem(t))
	}
	return out
}

func stem(word string) string {
	s, err := snowball.Stem(word, "english", true)
	if err != nil || s == "" {
		return word
	}
	return s
}
