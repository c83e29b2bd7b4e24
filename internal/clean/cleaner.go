// Package clean strips structural noise from raw legal text: scanned-page
// artifacts, running headers and footers, markup, and encoding debris.
package clean

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/avetisov/lexstream/internal/model"
)

// Cleaner is a deterministic, pure text cleaner. It never fails on arbitrary
// input; the worst case is an empty result, which the pipeline rejects as
// empty content.
type Cleaner struct {
	cfg        model.CleaningConfig
	newlineRun *regexp.Regexp
	newlineCap string
}

var (
	tagRe        = regexp.MustCompile(`(?i)<(?:p|br|div|span|html|body|head|table|tr|td|th|li|ul|ol|h[1-6]|a|em|strong|i|b|u|blockquote|pre|center|font|sup|sub)\b[^>]*>`)
	urlRe        = regexp.MustCompile(`https?://[^\s<>"]+`)
	emailRe      = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	pageNumberRe = regexp.MustCompile(`(?m)^[ \t]*-[ \t]*\d+[ \t]*-[ \t]*$`)
	pageXofYRe   = regexp.MustCompile(`(?mi)^[ \t]*page[ \t]+\d+([ \t]+of[ \t]+\d+)?[ \t]*$`)
	lineNumberRe = regexp.MustCompile(`(?m)^[ \t]{0,4}\d{1,3}[ \t]{2,}`)
	spaceRunRe   = regexp.MustCompile(`[ \t]+`)
	lineEdgeRe   = regexp.MustCompile(`[ \t]*\n[ \t]*`)

	// Boilerplate stamped onto legal filings as whole lines.
	boilerplateRe = regexp.MustCompile(`(?mi)^[ \t]*(CONFIDENTIAL|FILED UNDER SEAL|DOCUMENT SUBJECT TO PROTECTIVE ORDER|OFFICIAL TRANSCRIPT|CERTIFIED COPY|Case No\.[ \t]+[\w-]+)[ \t]*$`)

	// Typographic characters folded to their ASCII forms.
	typographicFolder = strings.NewReplacer(
		"“", `"`, "”", `"`, "„", `"`, "‟", `"`,
		"‘", "'", "’", "'", "‚", "'", "‛", "'",
		"–", "-", "—", "-", "―", "-", "‐", "-",
		"‑", "-", "‒", "-", "−", "-",
		"…", "...",
	)
)

// New creates a cleaner from the cleaning config. Use
// model.DefaultConfig().Cleaning for the defaults.
func New(cfg model.CleaningConfig) *Cleaner {
	run := cfg.MaxNewlineRun
	if run < 1 {
		run = 3
	}
	return &Cleaner{
		cfg:        cfg,
		newlineRun: regexp.MustCompile(`\n{` + strconv.Itoa(run+1) + `,}`),
		newlineCap: strings.Repeat("\n", run),
	}
}

// maxCleanPasses bounds the fixed-point iteration. Ordinary text converges
// in two or three passes; only deeply nested entity-escaped markup needs
// more, and past this depth the input is treated as unsalvageable.
const maxCleanPasses = 32

// Clean normalizes raw text. Cleaning is applied until it reaches a fixed
// point, which makes Clean idempotent: Clean(Clean(x)) == Clean(x). Input
// that does not converge is returned empty rather than half-cleaned.
func (c *Cleaner) Clean(raw string) string {
	s := raw
	for i := 0; i < maxCleanPasses; i++ {
		next := c.pass(s)
		if next == s {
			return s
		}
		s = next
	}
	return ""
}

func (c *Cleaner) pass(s string) string {
	if c.cfg.StripHTML && tagRe.MatchString(s) {
		s = htmlToText(s)
	}

	s = norm.NFKC.String(s)
	s = stripControl(s)
	s = typographicFolder.Replace(s)

	if c.cfg.RemoveURLs {
		s = urlRe.ReplaceAllString(s, " ")
	}
	if c.cfg.RemoveEmails {
		s = emailRe.ReplaceAllString(s, " ")
	}

	if c.cfg.RemoveBoilerplate {
		s = pageNumberRe.ReplaceAllString(s, "")
		s = pageXofYRe.ReplaceAllString(s, "")
		s = lineNumberRe.ReplaceAllString(s, "")
		s = boilerplateRe.ReplaceAllString(s, "")
		s = stripRunningLines(s)
	} else {
		s = strings.ReplaceAll(s, "\f", "\n")
	}

	s = spaceRunRe.ReplaceAllString(s, " ")
	s = lineEdgeRe.ReplaceAllString(s, "\n")
	s = c.newlineRun.ReplaceAllString(s, c.newlineCap)
	return strings.TrimSpace(s)
}

// stripControl drops control characters, keeping newlines, tabs and form
// feeds and mapping carriage returns onto newlines. Form feeds are consumed
// by stripRunningLines when boilerplate removal is on and collapsed to
// newlines by the pass otherwise.
func stripControl(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t' || r == '\f':
			return r
		case r == '\r':
			return '\n'
		case r < 0x20 || r == 0x7f || r == 0xfffd:
			return -1
		default:
			return r
		}
	}, s)
}

// stripRunningLines removes running headers/footers: a line that opens or
// closes at least three form-feed-separated pages is treated as a repeated
// page decoration and dropped everywhere. Page breaks collapse to newlines.
func stripRunningLines(s string) string {
	pages := strings.Split(s, "\f")
	if len(pages) < 3 {
		return strings.ReplaceAll(s, "\f", "\n")
	}

	boundary := map[string]int{}
	for _, page := range pages {
		lines := strings.Split(page, "\n")
		seen := map[string]bool{}
		for _, line := range []string{firstNonBlank(lines), lastNonBlank(lines)} {
			if line != "" && !seen[line] {
				seen[line] = true
				boundary[line]++
			}
		}
	}

	running := map[string]bool{}
	for line, count := range boundary {
		if count >= 3 {
			running[line] = true
		}
	}
	if len(running) == 0 {
		return strings.ReplaceAll(s, "\f", "\n")
	}

	var out []string
	for _, page := range pages {
		for _, line := range strings.Split(page, "\n") {
			if running[strings.TrimSpace(line)] {
				continue
			}
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func firstNonBlank(lines []string) string {
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			return t
		}
	}
	return ""
}

func lastNonBlank(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if t := strings.TrimSpace(lines[i]); t != "" {
			return t
		}
	}
	return ""
}

// htmlToText extracts the text content of a markup body. Script and style
// subtrees are dropped; block elements end with a newline so paragraph
// boundaries survive.
func htmlToText(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		// html.Parse only fails on reader errors, never on bad markup, but
		// the cleaner must not propagate failures.
		return s
	}
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if n.Type == html.ElementNode && isBlock(n.Data) {
			buf.WriteString("\n")
		}
	}
	walk(doc)
	return buf.String()
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "tr", "table", "blockquote", "pre",
		"h1", "h2", "h3", "h4", "h5", "h6", "center":
		return true
	}
	return false
}
