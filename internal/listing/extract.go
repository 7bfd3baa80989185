package listing

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/net/html"
)

// Reason classifies why extraction failed.
type Reason string

const (
	// NoHTMLPart means the message carried no text/html part.
	NoHTMLPart Reason = "no_html_part"

	// ParseFailure means the message or its HTML body could not be parsed.
	ParseFailure Reason = "parse_failure"
)

// ExtractionError reports that a fetched message could not be turned into
// a Listing. It is message-level trouble, not session trouble: callers log
// it, mark the message seen so it is not picked up again, and move on.
type ExtractionError struct {
	Reason Reason
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extracting listing (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extracting listing (%s)", e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// IsExtractionError reports whether err (or any error in its chain) is an
// ExtractionError.
func IsExtractionError(err error) bool {
	var extractErr *ExtractionError
	return errors.As(err, &extractErr)
}

// scanLimit bounds how many labeled elements Extract inspects. The primary
// listing block always sits within the first five; "suggested listing"
// blocks further down the document reuse the same labels and must not
// leak into the result.
const scanLimit = 5

// zwnj is the zero-width non-joiner the sender sprinkles through street
// addresses.
const zwnj = "\u200c"

// Extract parses a raw RFC 822 message and pulls a Listing out of its
// first HTML part. Fields whose markup is missing are left nil; Extract
// fails only when the message has no HTML part at all or cannot be
// parsed.
func Extract(raw []byte) (Listing, error) {
	body, err := htmlPart(raw)
	if err != nil {
		return Listing{}, err
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return Listing{}, &ExtractionError{Reason: ParseFailure, Err: err}
	}

	return scanLabeled(doc), nil
}

// htmlPart walks the message parts in order and returns the decoded body
// of the first text/html part. go-message reverses the part's declared
// transfer encoding (quoted-printable in these notifications) on read.
func htmlPart(raw []byte) (string, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return "", &ExtractionError{Reason: ParseFailure, Err: err}
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", &ExtractionError{Reason: ParseFailure, Err: err}
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		if !strings.HasPrefix(contentType, "text/html") {
			continue
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			return "", &ExtractionError{Reason: ParseFailure, Err: err}
		}
		return string(body), nil
	}

	return "", &ExtractionError{Reason: NoHTMLPart}
}

// labelRules maps aria-label prefixes to field handlers, in priority
// order. The first matching prefix claims the element.
var labelRules = []struct {
	prefix string
	apply  func(*Listing, *html.Node)
}{
	{"Property photo", applyPhoto},
	{"Property price", applyPrice},
	{"Property facts", applyFacts},
	{"Property address", applyAddress},
}

// scanLabeled visits elements carrying an aria-label attribute in
// document order, classifies each by label prefix, and assembles a
// Listing from the first occurrence of each recognized kind.
func scanLabeled(doc *html.Node) Listing {
	var l Listing
	remaining := scanLimit

	eachElement(doc, func(n *html.Node) bool {
		label, ok := attrValue(n, "aria-label")
		if !ok {
			return true
		}

		for _, rule := range labelRules {
			if strings.HasPrefix(label, rule.prefix) {
				rule.apply(&l, n)
				break
			}
		}

		remaining--
		return remaining > 0
	})

	return l
}

// applyPhoto captures the listing link from the photo block's anchor and
// the hero image from its background attribute.
func applyPhoto(l *Listing, n *html.Node) {
	if l.URL == nil {
		if href := anchorHref(n); href != "" {
			l.URL = &href
		}
	}
	if l.ImageURL == nil {
		if img := backgroundImage(n); img != "" {
			l.ImageURL = &img
		}
	}
}

func applyPrice(l *Listing, n *html.Node) {
	if l.Price != nil {
		return
	}
	if t := strings.TrimSpace(textContent(n)); t != "" {
		l.Price = &t
	}
}

func applyFacts(l *Listing, n *html.Node) {
	if l.Facts != nil {
		return
	}
	if t := strings.TrimSpace(textContent(n)); t != "" {
		l.Facts = &t
	}
}

func applyAddress(l *Listing, n *html.Node) {
	if l.Address != nil {
		return
	}
	t := strings.TrimSpace(strings.ReplaceAll(textContent(n), zwnj, ""))
	if t != "" {
		l.Address = &t
	}
}

// eachElement visits n and every element below it in document order,
// stopping early once visit returns false.
func eachElement(n *html.Node, visit func(*html.Node) bool) bool {
	if n.Type == html.ElementNode && !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !eachElement(c, visit) {
			return false
		}
	}
	return true
}

// attrValue returns the value of the named attribute on n.
func attrValue(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// anchorHref returns the href of n itself when n is an anchor, or of the
// first anchor in n's subtree.
func anchorHref(n *html.Node) string {
	var href string
	eachElement(n, func(e *html.Node) bool {
		if e.Data != "a" {
			return true
		}
		if v, ok := attrValue(e, "href"); ok && v != "" {
			href = v
			return false
		}
		return true
	})
	return href
}

// styleURLPattern matches a background or background-image declaration
// inside an inline style.
var styleURLPattern = regexp.MustCompile(
	`background(?:-image)?\s*:[^;]*url\(['"]?([^'")]+)['"]?\)`,
)

// backgroundImage returns the image address attached to n or its subtree:
// either a bare background attribute (how the notification marks its hero
// photo cell) or a background-image url(...) in an inline style.
func backgroundImage(n *html.Node) string {
	var img string
	eachElement(n, func(e *html.Node) bool {
		if v, ok := attrValue(e, "background"); ok && v != "" {
			img = v
			return false
		}
		if style, ok := attrValue(e, "style"); ok {
			if m := styleURLPattern.FindStringSubmatch(style); m != nil {
				img = m[1]
				return false
			}
		}
		return true
	})
	return img
}

// textContent concatenates the text nodes beneath n.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
