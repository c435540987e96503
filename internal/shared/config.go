package shared

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Target is one business to ingest: the reviews of URL are stored under BusinessID.
type Target struct {
	BusinessID int64
	URL        string
}

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CacheTTL    time.Duration
	BackupDir   string

	NLPMode            string // remote|local
	NLPOnError         string // fallback|drop
	NLPAPIKey          string
	NLPEndpoint        string
	NLPRPS             int
	NLPBreakerFailures int
	NLPBreakerReset    time.Duration
	EnrichWorkers      int

	SuggestionModelPath    string
	SuggestionPatternsPath string
	SuggestionThreshold    float64
	NormalizerSeed         int64

	Headless      bool
	MaxScrolls    int
	ScrapeTimeout time.Duration
	ChromeNames   []string

	Workers int
	Targets []Target
}

// Load reads the environment, after merging a .env file when one exists.
func Load() Config {
	_ = godotenv.Load()

	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/reviews?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", ""),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		BackupDir:   env("BACKUP_DIR", "backups"),

		NLPMode:            strings.ToLower(env("NLP_MODE", "remote")),
		NLPOnError:         strings.ToLower(env("NLP_ON_ERROR", "fallback")),
		NLPAPIKey:          env("NLP_API_KEY", ""),
		NLPEndpoint:        env("NLP_ENDPOINT", ""),
		NLPRPS:             atoi("NLP_RPS", 10),
		NLPBreakerFailures: atoi("NLP_BREAKER_FAILURES", 5),
		NLPBreakerReset:    time.Duration(atoi("NLP_BREAKER_RESET_SECONDS", 30)) * time.Second,
		EnrichWorkers:      atoi("ENRICH_WORKERS", 4),

		SuggestionModelPath:    env("SUGGESTION_MODEL_PATH", "models/suggestion.model.gz"),
		SuggestionPatternsPath: env("SUGGESTION_PATTERNS_PATH", ""),
		SuggestionThreshold:    atof("SUGGESTION_THRESHOLD", 0.5),
		NormalizerSeed:         int64(atoi("NORMALIZER_SEED", 0)),

		Headless:      env("HEADLESS", "true") != "false",
		MaxScrolls:    atoi("SCRAPE_MAX_SCROLLS", 200),
		ScrapeTimeout: time.Duration(atoi("SCRAPE_TIMEOUT_SECONDS", 600)) * time.Second,
		ChromeNames:   list(env("CHROME_PROCESS_NAMES", "")),

		Workers: atoi("INGEST_WORKERS", 2),
	}

	targets, err := ParseTargets(os.Getenv("INGEST_TARGETS"))
	if err != nil {
		log.Warn().Err(err).Msg("INGEST_TARGETS ignored")
	}
	c.Targets = targets

	if c.NLPMode == "remote" && c.NLPAPIKey == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		log.Warn().Msg("NLP_API_KEY is empty; remote analysis relies on ambient credentials")
	}
	return c
}

// ParseTargets parses whitespace separated "businessID=url" pairs.
func ParseTargets(s string) ([]Target, error) {
	var out []Target
	for _, f := range strings.Fields(s) {
		id, url, ok := strings.Cut(f, "=")
		if !ok || url == "" {
			return nil, fmt.Errorf("target %q: want businessID=url", f)
		}
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("target %q: bad business id", f)
		}
		out = append(out, Target{BusinessID: n, URL: url})
	}
	return out, nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func atof(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func list(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
