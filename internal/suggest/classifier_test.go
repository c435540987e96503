package suggest_test

import (
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"review_insights/internal/suggest"
)

var trainingCorpus = []string{
	"They should add more vegetarian options",
	"You should add vegan options to the menu",
	"Should add a vegetarian option for lunch",
	"They really should add vegetarian dishes",
	"I wish they had more parking spaces",
	"Would be nice to have outdoor seating",
	"They need to improve the lighting, it is too dark",
	"Please consider extending the opening hours",
	"Maybe upgrade the chairs, they are uncomfortable",
	"How about a loyalty card for regulars",
	"The staff could be faster at the counter",
	"I hope they change the music playlist",
	"The food was great",
	"Food was great and the staff were friendly",
	"The food was great, lovely evening",
	"Great food and a cozy atmosphere",
	"Amazing pizza with a crispy crust",
	"Lovely pasta and excellent wine",
	"The ambiance is cozy and romantic",
	"Delicious burgers and tasty fries",
	"Friendly waiter, quick service",
	"Beautiful terrace with a view of the river",
	"Best tacos in town",
	"Excellent breakfast, fresh coffee",
	"Very clean place and polite staff",
	"We had a wonderful dinner here",
}

func fitted(t *testing.T) *suggest.Classifier {
	t.Helper()
	c := suggest.NewClassifier(suggest.Config{})
	rate, err := c.Fit(trainingCorpus, suggest.DefaultPatterns())
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if rate != 12.0/26.0 {
		t.Fatalf("positive rate=%v, want %v", rate, 12.0/26.0)
	}
	return c
}

func TestClassifier_Predict(t *testing.T) {
	c := fitted(t)

	ok, err := c.Predict("They should add more vegetarian options", suggest.DefaultThreshold)
	if err != nil || !ok {
		t.Fatalf("expected suggestion, got %v err=%v", ok, err)
	}
	ok, err = c.Predict("The food was great", suggest.DefaultThreshold)
	if err != nil || ok {
		t.Fatalf("expected no suggestion, got %v err=%v", ok, err)
	}

	p, err := c.PredictProba("zzqx unseen gibberish")
	if err != nil || p < 0 || p > 1 {
		t.Fatalf("proba=%v err=%v", p, err)
	}
}

func TestClassifier_Deterministic(t *testing.T) {
	a, b := fitted(t), fitted(t)
	for _, s := range []string{"They should add more vegetarian options", "The food was great", "cozy place"} {
		pa, _ := a.PredictProba(s)
		pb, _ := b.PredictProba(s)
		if pa != pb {
			t.Fatalf("%q: %v != %v", s, pa, pb)
		}
	}
}

func TestClassifier_NotTrained(t *testing.T) {
	c := suggest.NewClassifier(suggest.Config{})
	if _, err := c.PredictProba("anything"); !errors.Is(err, suggest.ErrNotTrained) {
		t.Fatalf("expected ErrNotTrained, got %v", err)
	}
	if _, err := c.Predict("anything", 0.5); !errors.Is(err, suggest.ErrNotTrained) {
		t.Fatalf("expected ErrNotTrained, got %v", err)
	}
	if err := c.Save(&bytes.Buffer{}); !errors.Is(err, suggest.ErrNotTrained) {
		t.Fatalf("expected ErrNotTrained on save, got %v", err)
	}
	if _, err := c.Fit(nil, suggest.DefaultPatterns()); !errors.Is(err, suggest.ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
}

func TestClassifier_SaveLoad(t *testing.T) {
	c := fitted(t)
	want, _ := c.PredictProba("They should add more vegetarian options")

	var snap, pair bytes.Buffer
	if err := c.Save(&snap); err != nil {
		t.Fatal(err)
	}
	if err := c.SavePair(&pair); err != nil {
		t.Fatal(err)
	}

	for name, buf := range map[string]*bytes.Buffer{"snapshot": &snap, "pair": &pair} {
		loaded := suggest.NewClassifier(suggest.Config{})
		if err := loaded.Load(bytes.NewReader(buf.Bytes())); err != nil {
			t.Fatalf("%s: load: %v", name, err)
		}
		got, err := loaded.PredictProba("They should add more vegetarian options")
		if err != nil || got != want {
			t.Fatalf("%s: proba=%v err=%v, want %v", name, got, err, want)
		}
	}

	path := filepath.Join(t.TempDir(), "model.json.gz")
	if err := c.SaveFile(path, suggest.KindSnapshot); err != nil {
		t.Fatal(err)
	}
	fromFile := suggest.NewClassifier(suggest.Config{})
	if err := fromFile.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	if !fromFile.Trained() {
		t.Fatal("expected trained classifier after LoadFile")
	}
}

func gz(t *testing.T, body string) []byte {
	t.Helper()
	var b bytes.Buffer
	zw := gzip.NewWriter(&b)
	if _, err := zw.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	_ = zw.Close()
	return b.Bytes()
}

func TestClassifier_LoadRejectsUnknownFormats(t *testing.T) {
	cases := map[string][]byte{
		"plain text":      []byte("not a model"),
		"bad json":        gz(t, "{"),
		"unknown kind":    gz(t, `{"kind":"pickle","version":1}`),
		"missing payload": gz(t, `{"kind":"snapshot","version":1}`),
		"empty pair":      gz(t, `{"kind":"pair","version":1,"pair":{}}`),
	}
	for name, body := range cases {
		c := suggest.NewClassifier(suggest.Config{})
		err := c.Load(bytes.NewReader(body))
		var ue *suggest.UnrecognizedModelFormatError
		if !errors.As(err, &ue) {
			t.Fatalf("%s: expected UnrecognizedModelFormatError, got %v", name, err)
		}
		if c.Trained() {
			t.Fatalf("%s: classifier must stay untrained", name)
		}
	}
}

func TestClassifier_Evaluate(t *testing.T) {
	c := fitted(t)
	ev, err := c.Evaluate(
		[]string{"They should add more vegetarian options", "The food was great"},
		[]bool{true, false},
	)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Accuracy != 1 || ev.Confusion[1][1] != 1 || ev.Confusion[0][0] != 1 || ev.F1 != 1 {
		t.Fatalf("unexpected evaluation: %+v", ev)
	}
	if _, err := c.Evaluate([]string{"a"}, nil); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestDetector(t *testing.T) {
	d := fitted(t).Detector(0)
	if ok, err := d.Predict("   "); ok || err != nil {
		t.Fatalf("empty text: %v %v", ok, err)
	}
	if ok, err := d.Predict("THEY SHOULD ADD MORE VEGETARIAN OPTIONS"); !ok || err != nil {
		t.Fatalf("upper case suggestion: %v %v", ok, err)
	}
	if _, err := suggest.NewClassifier(suggest.Config{}).Detector(0.5).Predict("x y"); !errors.Is(err, suggest.ErrNotTrained) {
		t.Fatalf("expected ErrNotTrained, got %v", err)
	}
}

func TestPatternSet(t *testing.T) {
	ps := suggest.DefaultPatterns()
	if ps.Len() != 22 {
		t.Fatalf("default patterns=%d", ps.Len())
	}
	if !ps.Match("You SHOULD try") || ps.Match("shoulder pain") || ps.Match("") {
		t.Fatal("default pattern matching is off")
	}

	custom, err := suggest.NewPatternSet(`\bplease\b`)
	if err != nil {
		t.Fatal(err)
	}
	c := suggest.NewClassifier(suggest.Config{Trees: 10})
	rate, err := c.Fit([]string{"please fix the door", "nice view", "they should paint"}, custom)
	if err != nil || rate != 1.0/3.0 {
		t.Fatalf("rate=%v err=%v", rate, err)
	}

	if _, err := suggest.NewPatternSet(`(`); err == nil {
		t.Fatal("expected compile error")
	}

	path := filepath.Join(t.TempDir(), "patterns.yaml")
	if err := os.WriteFile(path, []byte("patterns:\n  - '\\bplease\\b'\n  - '\\bfix\\b'\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	loaded, err := suggest.LoadPatternSet(path)
	if err != nil || loaded.Len() != 2 || !loaded.Match("Fix it") {
		t.Fatalf("loaded=%v err=%v", loaded.Patterns(), err)
	}

	pd := suggest.PatternDetector{Set: ps}
	if ok, _ := pd.Predict("would be nice to have wifi"); !ok {
		t.Fatal("pattern detector missed a suggestion")
	}
}

func TestSaveFile_UnknownKind(t *testing.T) {
	c := suggest.NewClassifier(suggest.Config{})
	path := filepath.Join(t.TempDir(), "out", "model.gz")
	if err := c.SaveFile(path, "bundle"); err == nil {
		t.Fatal("expected error for unknown artifact kind")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("nothing should be written, stat err=%v", err)
	}
}
