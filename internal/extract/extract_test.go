package extract

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/report-consolidator/internal/jobs/inmemory"
)

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantKey string
		wantErr bool
	}{
		{name: "plain", raw: `{"year": 2023, "categories": []}`, wantKey: "year"},
		{name: "json fence", raw: "```json\n{\"year\": 2023}\n```", wantKey: "year"},
		{name: "bare fence", raw: "```\n{\"categories\": []}\n```\n", wantKey: "categories"},
		{name: "chatter around", raw: "Here you go:\n{\"transactions\": []}\nHope this helps.", wantKey: "transactions"},
		{name: "array", raw: `[1, 2]`, wantErr: true},
		{name: "garbage", raw: `not json`, wantErr: true},
		{name: "truncated", raw: "```json\n{\"year\": ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanModelJSON(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("CleanModelJSON(%q) expected error, got %s", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("CleanModelJSON(%q) error = %v", tt.raw, err)
			}
			var m map[string]any
			if err := json.Unmarshal(got, &m); err != nil {
				t.Fatalf("output is not JSON: %v", err)
			}
			if _, ok := m[tt.wantKey]; !ok {
				t.Errorf("output %s missing key %q", got, tt.wantKey)
			}
		})
	}
}

func TestCleanModelJSON_KeepsJapaneseLiteral(t *testing.T) {
	got, err := CleanModelJSON(`{"name":"党費・会費 & 寄附"}`)
	if err != nil {
		t.Fatalf("CleanModelJSON() error = %v", err)
	}
	if !strings.Contains(string(got), "党費・会費 & 寄附") {
		t.Errorf("text was escaped: %s", got)
	}
}

func TestPagePrompt(t *testing.T) {
	p := PagePrompt()
	for _, want := range []string{"翌年への繰越額", `"category_id"`, "R6.9.30"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestOutputName(t *testing.T) {
	if got := OutputName("page_001.png"); got != "page_001.json" {
		t.Errorf("OutputName() = %q", got)
	}
}

// mockExtractor is a test double for Extractor.
type mockExtractor struct {
	mu              sync.Mutex
	calls           map[string]int
	ExtractPageFunc func(image []byte, call int) ([]byte, error)
}

func (m *mockExtractor) ExtractPage(ctx context.Context, image []byte, mimeType string) ([]byte, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[string(image)]++
	call := m.calls[string(image)]
	m.mu.Unlock()
	return m.ExtractPageFunc(image, call)
}

func writeImages(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte(n), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRunner_Run(t *testing.T) {
	imageDir := writeImages(t, "page_001.png", "page_002.jpg", "page_003.png", "notes.txt")
	outDir := filepath.Join(t.TempDir(), "out")

	ext := &mockExtractor{ExtractPageFunc: func(image []byte, call int) ([]byte, error) {
		switch string(image) {
		case "page_002.jpg":
			if call == 1 {
				return nil, errors.New("rate limited")
			}
		case "page_003.png":
			return nil, errors.New("model returned garbage")
		}
		return []byte(`{"categories": [], "transactions": []}`), nil
	}}
	r := &Runner{
		Extractor: ext,
		Queue:     inmemory.Config{Workers: 2, MaxRetries: 2, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	report, err := r.Run(ctx, imageDir, outDir)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Total != 3 || report.Extracted != 2 || len(report.Failed) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Failed[0].File != "page_003.png" || report.Failed[0].Attempts != 3 {
		t.Errorf("unexpected failure entry: %+v", report.Failed[0])
	}
	for _, name := range []string{"page_001.json", "page_002.json"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}

	raw, err := os.ReadFile(filepath.Join(outDir, ErrorLogFile))
	if err != nil {
		t.Fatalf("reading error log: %v", err)
	}
	var log struct {
		Errors []PageError `json:"errors"`
	}
	if err := json.Unmarshal(raw, &log); err != nil {
		t.Fatalf("error log is not JSON: %v", err)
	}
	if len(log.Errors) != 1 || log.Errors[0].ErrorMessage != "model returned garbage" {
		t.Errorf("unexpected error log: %s", raw)
	}
}

func TestRunner_SkipsExistingOutput(t *testing.T) {
	imageDir := writeImages(t, "page_001.png", "page_002.png")
	outDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(outDir, "page_001.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	ext := &mockExtractor{ExtractPageFunc: func(image []byte, call int) ([]byte, error) {
		return []byte(`{}`), nil
	}}
	r := &Runner{Extractor: ext, Queue: inmemory.Config{Workers: 1}}
	report, err := r.Run(context.Background(), imageDir, outDir)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Skipped != 1 || report.Extracted != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if ext.calls["page_001.png"] != 0 {
		t.Error("existing page was extracted again")
	}
	if _, err := os.Stat(filepath.Join(outDir, ErrorLogFile)); !os.IsNotExist(err) {
		t.Error("error log should not exist when nothing failed")
	}
}

func TestRunner_NoExtractor(t *testing.T) {
	if _, err := (&Runner{}).Run(context.Background(), t.TempDir(), t.TempDir()); err == nil {
		t.Error("expected error without extractor")
	}
}
