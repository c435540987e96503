package shared

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("NLP_MODE", "")
	t.Setenv("INGEST_TARGETS", "")
	t.Setenv("CACHE_TTL_SECONDS", "")
	c := Load()
	if c.NLPMode != "remote" || c.NLPOnError != "fallback" || c.SuggestionThreshold != 0.5 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.CacheTTL != 900*time.Second || !c.Headless || len(c.Targets) != 0 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("NLP_MODE", "LOCAL")
	t.Setenv("NLP_RPS", "2")
	t.Setenv("HEADLESS", "false")
	t.Setenv("CHROME_PROCESS_NAMES", "chrome, chromium ,")
	t.Setenv("INGEST_TARGETS", "3=https://maps.google.com/?cid=1 4=https://maps.google.com/place/a,b")
	c := Load()
	if c.NLPMode != "local" || c.NLPRPS != 2 || c.Headless {
		t.Fatalf("overrides not applied: %+v", c)
	}
	if len(c.ChromeNames) != 2 || c.ChromeNames[1] != "chromium" {
		t.Fatalf("names=%v", c.ChromeNames)
	}
	if len(c.Targets) != 2 || c.Targets[1].BusinessID != 4 || c.Targets[1].URL != "https://maps.google.com/place/a,b" {
		t.Fatalf("targets=%+v", c.Targets)
	}
}

func TestParseTargets_Errors(t *testing.T) {
	for _, in := range []string{"https://x", "0=https://x", "abc=https://x", "5="} {
		if _, err := ParseTargets(in); err == nil {
			t.Fatalf("%q: expected error", in)
		}
	}
}
