package page

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/spider-crawler/seoaudit/internal/urlutil"
)

// Extract contains the SEO-relevant facts parsed from one HTML document.
type Extract struct {
	Title           string
	TitleCount      int
	MetaDescription string
	HasDescription  bool
	MetaRobots      string
	Canonical       string
	Language        string
	BaseURL         string

	H1       []string
	Headings []Heading

	Links []Link

	OpenGraph map[string]string

	WordCount int
	Text      string

	// Fingerprint is the SHA-256 of the normalized visible text, or empty
	// when the page has no visible text.
	Fingerprint string
}

// Heading is one h1-h6 element in document order.
type Heading struct {
	Level int
	Text  string
}

// Link is an anchor with an href that points somewhere navigable.
type Link struct {
	URL      string
	Href     string // attribute value as written
	Text     string
	Rel      string
	Target   string
	Nofollow bool
	Internal bool
}

// Parser extracts facts from HTML documents served at one URL.
type Parser struct {
	pageURL *url.URL

	// AllowSubdomains classifies links to sibling subdomains as internal.
	AllowSubdomains bool
}

// NewParser creates a parser for documents served at pageURL.
func NewParser(pageURL string) (*Parser, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	return &Parser{pageURL: u}, nil
}

// Parse parses raw HTML.
func (p *Parser) Parse(content []byte) (*Extract, error) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	return p.Extract(root), nil
}

// ParseHTML parses content served at pageURL with the default parser.
func ParseHTML(pageURL string, content []byte) (*Extract, error) {
	p, err := NewParser(pageURL)
	if err != nil {
		return nil, err
	}
	return p.Parse(content)
}

// walker carries per-document state so a Parser can be reused.
type walker struct {
	p    *Parser
	base *url.URL
	data *Extract
	text strings.Builder
}

// Extract walks an already-parsed document.
func (p *Parser) Extract(root *html.Node) *Extract {
	w := &walker{
		p:    p,
		base: p.pageURL,
		data: &Extract{
			H1:        make([]string, 0),
			Headings:  make([]Heading, 0),
			Links:     make([]Link, 0),
			OpenGraph: make(map[string]string),
		},
	}
	w.walk(root)

	d := w.data
	d.Text = strings.Join(strings.Fields(w.text.String()), " ")
	d.WordCount = len(strings.Fields(d.Text))
	d.Fingerprint = Fingerprint(d.Text)
	return d
}

func (w *walker) walk(n *html.Node) {
	if n.Type == html.ElementNode && n.Namespace == "" {
		switch n.Data {
		case "html":
			w.data.Language = strings.TrimSpace(attr(n, "lang"))
		case "base":
			if href := attr(n, "href"); href != "" {
				w.data.BaseURL = href
				if u, err := url.Parse(href); err == nil {
					w.base = w.base.ResolveReference(u)
				}
			}
		case "title":
			w.data.TitleCount++
			if w.data.TitleCount == 1 {
				w.data.Title = strings.TrimSpace(textOf(n))
			}
		case "meta":
			w.meta(n)
		case "link":
			w.linkTag(n)
		case "a", "area":
			if l, ok := w.anchor(n); ok {
				w.data.Links = append(w.data.Links, l)
			}
		case "h1", "h2", "h3", "h4", "h5", "h6":
			text := strings.Join(strings.Fields(textOf(n)), " ")
			level := int(n.Data[1] - '0')
			w.data.Headings = append(w.data.Headings, Heading{Level: level, Text: text})
			if level == 1 {
				w.data.H1 = append(w.data.H1, text)
			}
		}
	}

	if n.Type == html.TextNode && visible(n) {
		w.text.WriteString(n.Data)
		w.text.WriteByte(' ')
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *walker) meta(n *html.Node) {
	name := strings.ToLower(attr(n, "name"))
	property := strings.ToLower(attr(n, "property"))
	content := attr(n, "content")

	switch {
	case name == "description":
		w.data.HasDescription = true
		w.data.MetaDescription = strings.TrimSpace(content)
	case name == "robots" || (name == "googlebot" && w.data.MetaRobots == ""):
		w.data.MetaRobots = strings.TrimSpace(content)
	case strings.HasPrefix(property, "og:"):
		w.data.OpenGraph[property] = strings.TrimSpace(content)
	}
}

func (w *walker) linkTag(n *html.Node) {
	if w.data.Canonical == "" && hasToken(strings.ToLower(attr(n, "rel")), "canonical") {
		w.data.Canonical = w.resolve(attr(n, "href"))
	}
}

func (w *walker) anchor(n *html.Node) (Link, bool) {
	href := strings.TrimSpace(attr(n, "href"))
	lower := strings.ToLower(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") {
		return Link{}, false
	}

	resolved := w.resolve(href)
	rel := strings.ToLower(attr(n, "rel"))
	return Link{
		URL:      resolved,
		Href:     href,
		Text:     strings.Join(strings.Fields(textOf(n)), " "),
		Rel:      rel,
		Target:   strings.ToLower(attr(n, "target")),
		Nofollow: hasToken(rel, "nofollow"),
		Internal: urlutil.SameSite(w.p.pageURL.String(), resolved, w.p.AllowSubdomains),
	}, true
}

func (w *walker) resolve(href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return w.base.ResolveReference(ref).String()
}

// Fingerprint hashes text after lowercasing and collapsing whitespace.
func Fingerprint(text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

var invisible = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "title": true,
}

func visible(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && (invisible[p.Data] || p.Data == "head") {
			return false
		}
	}
	return true
}

func attr(n *html.Node, key string) string {
	v, _ := lookup(n, key)
	return v
}

func lookup(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasToken(list, token string) bool {
	for _, t := range strings.Fields(list) {
		if t == token {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var buf bytes.Buffer
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return buf.String()
}
