package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestIndex_RendersForm(t *testing.T) {
	var buf bytes.Buffer
	err := Index(IndexData{
		MaxFileSize:     10 << 20,
		RateCapacity:    5,
		RateWindow:      "1m0s",
		RateLimited:     true,
		StrictFourField: true,
	}).Render(context.Background(), &buf)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	html := buf.String()
	for _, want := range []string{
		`name="file"`,
		`name="separator"`,
		`<option value="excel">`,
		`data-value="\t"`,
		"Max size 10 MB",
		"5 files per 1m0s",
		`src="/static/app.js"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestErrorPage_EscapesText(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorPage("<bad>", "retry", "VAL001", 400).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(buf.String(), "<bad>") {
		t.Error("message should be escaped")
	}
	if !strings.Contains(buf.String(), "&lt;bad&gt;") {
		t.Error("escaped message missing")
	}
}

func TestIndex_SeparatorHints(t *testing.T) {
	var buf bytes.Buffer
	if err := Index(IndexData{MaxFileSize: 512 << 10}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	html := buf.String()
	if got := strings.Count(html, "data-value="); got != len(DefaultHints) {
		t.Errorf("hint count = %d, want %d", got, len(DefaultHints))
	}
	if strings.Contains(html, `data-value=" "`) {
		t.Error("space is not a valid separator and should not be offered")
	}
	if !strings.Contains(html, "Max size 512 KB") {
		t.Error("size limit missing")
	}
	if strings.Contains(html, "files per") {
		t.Error("rate line shown while rate limiting is off")
	}
	if !strings.Contains(html, `class="note"`) {
		t.Error("lenient layout note missing")
	}
}

func TestErrorPage_OptionalParts(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorPage("Too many requests", "", "RATE001", 429).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	html := buf.String()
	if !strings.Contains(html, "<title>429 Too many requests</title>") {
		t.Error("title should carry the status")
	}
	if strings.Contains(html, "<p>") {
		t.Error("empty action should not render a paragraph")
	}
	if !strings.Contains(html, "Code: RATE001") {
		t.Error("code missing")
	}
}
