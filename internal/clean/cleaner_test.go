package clean

import (
	"html"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/avetisov/lexstream/internal/model"
)

func newTestCleaner() *Cleaner {
	return New(model.DefaultConfig().Cleaning)
}

func TestClean_PageArtifacts(t *testing.T) {
	c := newTestCleaner()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "dashed page number line",
			in:   "The court held as follows.\n- 12 -\nJudgment affirmed.",
			want: "The court held as follows.\n\nJudgment affirmed.",
		},
		{
			name: "page x of y line",
			in:   "First paragraph.\nPage 3 of 17\nSecond paragraph.",
			want: "First paragraph.\n\nSecond paragraph.",
		},
		{
			name: "transcript line numbers",
			in:   "1   THE COURT: Please be seated.\n2   MR. DOYLE: Thank you, Your Honor.",
			want: "THE COURT: Please be seated.\nMR. DOYLE: Thank you, Your Honor.",
		},
		{
			name: "boilerplate stamp",
			in:   "CONFIDENTIAL\nThe parties stipulate to the following facts.",
			want: "The parties stipulate to the following facts.",
		},
		{
			name: "control characters",
			in:   "Before\x00\x01 after.\r\nNext line.",
			want: "Before after.\nNext line.",
		},
		{
			name: "whitespace runs",
			in:   "Too   many    spaces\n\n\n\n\n\nand newlines.",
			want: "Too many spaces\n\n\nand newlines.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClean_RunningHeaders(t *testing.T) {
	c := newTestCleaner()

	header := "SMITH v. JONES, No. 21-4412"
	pages := []string{
		header + "\nThe appellant raises three issues.",
		header + "\nNone of them has merit.",
		header + "\nWe affirm the judgment below.",
	}
	in := strings.Join(pages, "\f")

	got := c.Clean(in)
	if strings.Contains(got, header) {
		t.Errorf("running header survived cleaning:\n%s", got)
	}
	for _, want := range []string{"three issues", "has merit", "We affirm"} {
		if !strings.Contains(got, want) {
			t.Errorf("body text %q lost during cleaning:\n%s", want, got)
		}
	}
}

func TestClean_HTML(t *testing.T) {
	c := newTestCleaner()

	in := `<html><body><p>The motion is <em>granted</em>.</p><script>alert(1)</script><p>So ordered.</p></body></html>`
	got := c.Clean(in)

	if strings.Contains(got, "<") || strings.Contains(got, "alert") {
		t.Errorf("markup or script survived: %q", got)
	}
	if !strings.Contains(got, "The motion is granted.") {
		t.Errorf("text content lost: %q", got)
	}
	if !strings.Contains(got, "So ordered.") {
		t.Errorf("second paragraph lost: %q", got)
	}
}

func TestClean_UnicodeNormalization(t *testing.T) {
	c := newTestCleaner()

	// Fullwidth digits, typographic quotes and an em dash all fold to ASCII.
	in := "The fine was ＄５００ — or “five hundred dollars”."
	got := c.Clean(in)
	want := `The fine was $500 - or "five hundred dollars".`
	if got != want {
		t.Errorf("Clean(%q) = %q, want %q", in, got, want)
	}
}

func TestClean_URLsAndEmails(t *testing.T) {
	c := newTestCleaner()

	in := "Contact clerk@court.example.gov or see https://court.example.gov/docket/14 for details."
	got := c.Clean(in)
	if strings.Contains(got, "@") || strings.Contains(got, "http") {
		t.Errorf("URL or email survived: %q", got)
	}
}

func TestClean_EmptyAndGarbageInput(t *testing.T) {
	c := newTestCleaner()

	for _, in := range []string{"", "   \n\n\t  ", "\x00\x01\x02", "\f\f\f"} {
		if got := c.Clean(in); got != "" {
			t.Errorf("Clean(%q) = %q, want empty", in, got)
		}
	}
}

func TestClean_NestedEscapedMarkupConverges(t *testing.T) {
	c := newTestCleaner()

	// Each cleaning pass unescapes one entity level, so deeply nested
	// escaping needs one pass per level to converge.
	in := "zap"
	for i := 0; i < 12; i++ {
		in = "<b>hello</b> " + html.EscapeString(in)
	}

	once := c.Clean(in)
	twice := c.Clean(once)
	if once != twice {
		t.Fatalf("not idempotent on nested escaping:\nonce: %q\ntwice: %q", once, twice)
	}
	if strings.ContainsAny(once, "<>&") {
		t.Errorf("markup or entities survived: %q", once)
	}
}

func TestClean_NonConvergingInputReturnsEmpty(t *testing.T) {
	c := newTestCleaner()

	// Nesting past the pass bound is unsalvageable and dropped outright,
	// which downstream rejects as empty content.
	in := "zap"
	for i := 0; i < maxCleanPasses+8; i++ {
		in = "<b>hello</b> " + html.EscapeString(in)
	}

	once := c.Clean(in)
	if once != "" {
		t.Fatalf("Clean returned a non-fixed intermediate: %q", once)
	}
	if twice := c.Clean(once); twice != once {
		t.Errorf("not idempotent: %q vs %q", once, twice)
	}
}

func TestClean_FormFeedWithoutBoilerplateRemoval(t *testing.T) {
	cfg := model.DefaultConfig().Cleaning
	cfg.RemoveBoilerplate = false
	c := New(cfg)

	got := c.Clean("first page\fsecond page")
	if strings.Contains(got, "\f") {
		t.Errorf("form feed survived cleaning: %q", got)
	}
	if want := "first page\nsecond page"; got != want {
		t.Errorf("Clean = %q, want %q", got, want)
	}
}

func TestClean_Idempotent(t *testing.T) {
	c := newTestCleaner()

	rapid.Check(t, func(t *rapid.T) {
		in := rapid.String().Draw(t, "in")
		once := c.Clean(in)
		twice := c.Clean(once)
		if once != twice {
			t.Fatalf("not idempotent:\n in: %q\nonce: %q\ntwice: %q", in, once, twice)
		}
	})
}
