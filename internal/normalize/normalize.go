// Package normalize turns mail bodies into single-line strings that
// extraction patterns can be run against.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Filter decides whether an HTML text fragment is kept. It returns the
// text to keep (possibly rewritten) and true, or false to drop it.
type Filter func(text string) (string, bool)

var (
	lineBreaks = regexp.MustCompile(`\r\n|\n|\r`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Keep returns all fragments unchanged.
func Keep(text string) (string, bool) {
	return text, true
}

// Containing keeps fragments that contain any of the given substrings.
func Containing(substrs ...string) Filter {
	return func(text string) (string, bool) {
		for _, s := range substrs {
			if strings.Contains(text, s) {
				return text, true
			}
		}
		return "", false
	}
}

// Matching keeps fragments that match re.
func Matching(re *regexp.Regexp) Filter {
	return func(text string) (string, bool) {
		if re.MatchString(text) {
			return text, true
		}
		return "", false
	}
}

// Any keeps a fragment when any of filters keeps it, using the first
// filter's result.
func Any(filters ...Filter) Filter {
	return func(text string) (string, bool) {
		for _, f := range filters {
			if out, ok := f(text); ok {
				return out, true
			}
		}
		return "", false
	}
}

// Normalize converts body to a whitespace-collapsed string. HTML bodies
// are reduced to the distinct text fragments accepted by filter; a nil
// filter keeps everything. Plain text has its line breaks removed.
func Normalize(body string, isHTML bool, filter Filter) string {
	if isHTML {
		return HTML(body, filter)
	}
	return Text(body)
}

// Message normalizes the html body when present and falls back to the
// text body.
func Message(textBody, htmlBody string, filter Filter) string {
	if strings.TrimSpace(htmlBody) != "" {
		return Normalize(htmlBody, true, filter)
	}
	return Normalize(textBody, false, nil)
}

// Text strips line breaks and collapses whitespace runs.
func Text(body string) string {
	s := lineBreaks.ReplaceAllString(body, "")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// HTML walks the document and joins the distinct accepted text
// fragments with single spaces. Text inside style and script elements
// is never offered to filter.
func HTML(body string, filter Filter) string {
	if filter == nil {
		filter = Keep
	}

	z := html.NewTokenizer(strings.NewReader(body))
	var (
		skipDepth int
		seen      = make(map[string]struct{})
		parts     []string
	)

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return strings.Join(parts, " ")

		case html.StartTagToken, html.SelfClosingTagToken:
			// <style/> still switches the tokenizer to raw text up to
			// the matching end tag.
			if isSkipped(z) {
				skipDepth++
			}

		case html.EndTagToken:
			if isSkipped(z) && skipDepth > 0 {
				skipDepth--
			}

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := whitespace.ReplaceAllString(strings.TrimSpace(string(z.Text())), " ")
			if text == "" {
				continue
			}
			out, ok := filter(text)
			if !ok || out == "" {
				continue
			}
			if _, dup := seen[out]; dup {
				continue
			}
			seen[out] = struct{}{}
			parts = append(parts, out)
		}
	}
}

func isSkipped(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch atom.Lookup(name) {
	case atom.Style, atom.Script:
		return true
	}
	return false
}
