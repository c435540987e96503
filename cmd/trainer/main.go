package main

import (
	"context"
	"flag"
	"time"

	"github.com/rs/zerolog/log"

	"review_insights/internal/adapters/observability"
	"review_insights/internal/bootstrap"
	"review_insights/internal/domain"
	"review_insights/internal/shared"
	mysqlrepo "review_insights/internal/storage/mysql"
	"review_insights/internal/suggest"
)

func main() {
	corpusPath := flag.String("corpus", "", "training texts, one per line")
	business := flag.Int64("business", 0, "also train on stored reviews of this business")
	evalPath := flag.String("eval", "", "labelled evaluation set, label<TAB>text per line")
	out := flag.String("out", "", "model output path (default SUGGESTION_MODEL_PATH)")
	pair := flag.Bool("pair", false, "write the vectorizer/forest pair format")
	trees := flag.Int("trees", suggest.DefaultTrees, "number of trees")
	maxFeatures := flag.Int("max-features", suggest.DefaultMaxFeatures, "vocabulary size")
	seed := flag.Int64("seed", suggest.DefaultSeed, "random seed")
	flag.Parse()

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv)
	if *out == "" {
		*out = cfg.SuggestionModelPath
	}

	var corpus []string
	if *corpusPath != "" {
		texts, err := readCorpusFile(*corpusPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *corpusPath).Msg("read corpus failed")
		}
		corpus = append(corpus, texts...)
	}
	if *business > 0 {
		texts, err := storedTexts(cfg, *business)
		if err != nil {
			log.Fatal().Err(err).Int64("business_id", *business).Msg("load stored reviews failed")
		}
		corpus = append(corpus, texts...)
	}

	ps, err := bootstrap.Patterns(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load patterns failed")
	}

	clf := suggest.NewClassifier(suggest.Config{MaxFeatures: *maxFeatures, Trees: *trees, Seed: *seed})
	start := time.Now()
	ratio, err := clf.Fit(corpus, ps)
	if err != nil {
		log.Fatal().Err(err).Msg("training failed")
	}
	log.Info().Int("texts", len(corpus)).Float64("suggestion_ratio", ratio).Dur("took", time.Since(start)).Msg("model trained")

	if *evalPath != "" {
		ev, err := evaluate(clf, *evalPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *evalPath).Msg("evaluation failed")
		}
		log.Info().
			Float64("accuracy", ev.Accuracy).
			Float64("precision", ev.Precision).
			Float64("recall", ev.Recall).
			Float64("f1", ev.F1).
			Interface("confusion", ev.Confusion).
			Msg("evaluation")
	}

	kind := suggest.KindSnapshot
	if *pair {
		kind = suggest.KindPair
	}
	if err := clf.SaveFile(*out, kind); err != nil {
		log.Fatal().Err(err).Str("path", *out).Msg("save model failed")
	}
	log.Info().Str("path", *out).Msg("model saved")
}

func storedTexts(cfg shared.Config, businessID int64) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	db, err := bootstrap.OpenDB(ctx, cfg.MySQLDSN)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	page, err := mysqlrepo.New(db).ListReviews(ctx, businessID, domain.PageQuery{Limit: 500})
	if err != nil {
		return nil, err
	}
	var out []string
	for _, r := range page.Items {
		if r.Content != "" {
			out = append(out, r.Content)
		}
	}
	return out, nil
}
