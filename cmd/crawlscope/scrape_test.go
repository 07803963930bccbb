package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nao1215/crawlscope/internal/model"
)

func TestRunScrapeCmd(t *testing.T) {
	site := newTestSite(t)

	t.Run("single page", func(t *testing.T) {
		cfgPath := writeTestConfig(t, "")
		out, err := executeCmd(t, "scrape", site.URL+"/blog/post", "-c", cfgPath, "--rate-limit=false")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var page model.PageData
		if err := json.Unmarshal([]byte(out), &page); err != nil {
			t.Fatalf("failed to decode page: %v\n%s", err, out)
		}
		if page.Title != "Post" {
			t.Errorf("expected title 'Post', got %q", page.Title)
		}
		if page.Meta == nil || page.Meta.Description != "A post" {
			t.Errorf("expected meta description 'A post', got %+v", page.Meta)
		}
	})

	t.Run("single page failure", func(t *testing.T) {
		cfgPath := writeTestConfig(t, "")
		if _, err := executeCmd(t, "scrape", site.URL+"/missing", "-c", cfgPath, "--rate-limit=false"); err == nil {
			t.Error("expected error for a missing page")
		}
	})

	t.Run("batch", func(t *testing.T) {
		cfgPath := writeTestConfig(t, "")
		out, err := executeCmd(t, "scrape", site.URL, site.URL+"/about", site.URL+"/missing", "-c", cfgPath, "--rate-limit=false")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var result model.BatchResult
		if err := json.Unmarshal([]byte(out), &result); err != nil {
			t.Fatalf("failed to decode batch: %v\n%s", err, out)
		}
		if result.Stats.Total != 3 || result.Stats.Success != 2 || result.Stats.Failed != 1 {
			t.Errorf("unexpected stats: %+v", result.Stats)
		}
		if len(result.Errors) != 1 || !strings.HasSuffix(result.Errors[0].URL, "/missing") {
			t.Errorf("expected one error for /missing, got %+v", result.Errors)
		}
	})

	t.Run("stream", func(t *testing.T) {
		cfgPath := writeTestConfig(t, "")
		out, err := executeCmd(t, "scrape", "--stream", site.URL, site.URL+"/missing", "-c", cfgPath, "--rate-limit=false")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		lines := 0
		failed := 0
		scanner := bufio.NewScanner(strings.NewReader(out))
		for scanner.Scan() {
			var line streamLine
			if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
				t.Fatalf("failed to decode line %q: %v", scanner.Text(), err)
			}
			lines++
			if line.Error != "" {
				failed++
			}
		}
		if lines != 2 || failed != 1 {
			t.Errorf("expected 2 lines with 1 failure, got %d lines with %d failures", lines, failed)
		}
	})

	t.Run("too many urls", func(t *testing.T) {
		cfgPath := writeTestConfig(t, "limits:\n  max_batch_urls: 1\n")
		_, err := executeCmd(t, "scrape", site.URL, site.URL+"/about", "-c", cfgPath)
		if !errors.Is(err, errTooManyURLs) {
			t.Errorf("expected errTooManyURLs, got %v", err)
		}
	})
}

func TestRunRobotsCmd(t *testing.T) {
	site := newTestSite(t)
	cfgPath := writeTestConfig(t, "")

	t.Run("disallowed path", func(t *testing.T) {
		out, err := executeCmd(t, "robots", site.URL+"/private/page", "-c", cfgPath, "--json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var info robotsInfo
		if err := json.Unmarshal([]byte(out), &info); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if info.Allowed {
			t.Error("expected /private/page to be disallowed")
		}
		if len(info.Sitemaps) != 1 {
			t.Errorf("expected one sitemap, got %v", info.Sitemaps)
		}
	})

	t.Run("allowed path", func(t *testing.T) {
		out, err := executeCmd(t, "robots", site.URL+"/about", "-c", cfgPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Verdict:     allowed") {
			t.Errorf("expected allowed verdict, got:\n%s", out)
		}
	})

	t.Run("invalid url", func(t *testing.T) {
		if _, err := executeCmd(t, "robots", "mailto:someone@example.com", "-c", cfgPath); err == nil {
			t.Error("expected error for a non-http URL")
		}
	})
}
