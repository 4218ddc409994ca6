// Package listing parses a directory-index HTML page body into a sequence
// of (relative link, rough size in bytes) pairs. Two dialects are handled:
// table-row listings (Apache-style "Index of" pages) and <pre>-based
// listings; the dialect is picked by a simple substring sniff on the body.
package listing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Entry is a single directory-listing row: a relative link and the size
// advertised by the listing page itself (not yet verified against the
// server).
type Entry struct {
	Link      string
	RoughSize int64
}

var sizePattern = regexp.MustCompile(`(?i)^\s*([\d.]+)\s*([KMG]?)\s*$`)

// parseSize converts a listing-page size token like "12.3M" or "482" into a
// byte count. "K"/"M"/"G" are binary multiples; no suffix means bytes.
func parseSize(tok string) (int64, error) {
	m := sizePattern.FindStringSubmatch(tok)
	if m == nil {
		return 0, fmt.Errorf("unrecognized size token %q", tok)
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parse size number %q: %w", m[1], err)
	}
	switch strings.ToUpper(m[2]) {
	case "K":
		val *= 1024
	case "M":
		val *= 1024 * 1024
	case "G":
		val *= 1024 * 1024 * 1024
	}
	return int64(val), nil
}

// Parse dispatches on the presence of "table" in the body: table-based
// listings use Dialect A (<tr> rows), everything else uses Dialect B
// (<pre> lines).
func Parse(body string) ([]Entry, error) {
	if strings.Contains(body, "table") {
		return parseTableDialect(body)
	}
	return parsePreDialect(body)
}

// parseTableDialect implements Dialect A: each <tr>'s ASCII, non-empty text
// nodes form an array; the third element is the size token. Rows whose
// combined text is empty or mentions "Name"/"Parent" are header/parent-dir
// rows and are skipped.
func parseTableDialect(body string) ([]Entry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse table listing: %w", err)
	}

	var entries []Entry
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		texts := collectTextNodes(row)
		joined := strings.Join(texts, "")
		if joined == "" || strings.Contains(joined, "Name") || strings.Contains(joined, "Parent") {
			return
		}
		if len(texts) < 3 {
			return
		}
		a := row.Find("a").First()
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return
		}
		size, err := parseSize(texts[2])
		if err != nil {
			return
		}
		entries = append(entries, Entry{Link: href, RoughSize: size})
	})
	return entries, nil
}

// collectTextNodes walks row's descendant text nodes, keeping only ASCII,
// non-empty-after-trim fragments, mirroring a row.text() filter.
func collectTextNodes(sel *goquery.Selection) []string {
	var out []string
	for _, n := range sel.Nodes {
		walkText(n, &out)
	}
	return out
}

func walkText(n *html.Node, out *[]string) {
	if n.Type == html.TextNode {
		t := strings.TrimSpace(n.Data)
		if t != "" && isASCII(t) {
			*out = append(*out, t)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, out)
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

var (
	preHrefPattern = regexp.MustCompile(`<a\s+href="([^"]+)"`)
	preSizePattern = regexp.MustCompile(`(\S+)\s*$`)
)

// parsePreDialect implements Dialect B: lines inside a <pre> block, each
// with a trailing size token; the line's <a> element supplies the href.
// Lines with no trailing size token are skipped.
func parsePreDialect(body string) ([]Entry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse pre listing: %w", err)
	}

	pre := doc.Find("pre").First()
	html, err := pre.Html()
	if err != nil {
		return nil, fmt.Errorf("read pre block: %w", err)
	}

	var entries []Entry
	for _, line := range strings.Split(html, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		hrefMatch := preHrefPattern.FindStringSubmatch(line)
		if hrefMatch == nil {
			continue
		}
		sizeMatch := preSizePattern.FindStringSubmatch(strings.TrimSpace(line))
		if sizeMatch == nil {
			continue
		}
		size, err := parseSize(sizeMatch[1])
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Link: hrefMatch[1], RoughSize: size})
	}
	return entries, nil
}
