package page

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Image is an img element.
type Image struct {
	Src       string
	Alt       string
	HasAlt    bool
	Srcset    string
	InPicture bool
	Loading   string
}

// Hreflang is an alternate-language link element.
type Hreflang struct {
	Lang string
	URL  string
}

// Images returns every img element of Doc in document order. Lazy-loaded
// images report their data-src.
func (c *Content) Images() []Image {
	var out []Image
	c.Doc().Find("img").Each(func(_ int, s *goquery.Selection) {
		alt, hasAlt := s.Attr("alt")
		src := s.AttrOr("src", "")
		if ds := s.AttrOr("data-src", ""); ds != "" {
			src = ds
		}
		out = append(out, Image{
			Src:       c.Resolve(src),
			Alt:       strings.TrimSpace(alt),
			HasAlt:    hasAlt,
			Srcset:    s.AttrOr("srcset", ""),
			InPicture: s.Parent().Is("picture"),
			Loading:   strings.ToLower(s.AttrOr("loading", "")),
		})
	})
	return out
}

// Hreflangs returns the link rel=alternate elements carrying hreflang.
func (c *Content) Hreflangs() []Hreflang {
	var out []Hreflang
	c.Doc().Find(`link[rel~="alternate"][hreflang]`).Each(func(_ int, s *goquery.Selection) {
		lang := strings.TrimSpace(s.AttrOr("hreflang", ""))
		if lang == "" {
			return
		}
		out = append(out, Hreflang{Lang: lang, URL: c.Resolve(s.AttrOr("href", ""))})
	})
	return out
}

// MetaContent returns the content of the first meta element whose name
// matches, ignoring case.
func (c *Content) MetaContent(name string) (string, bool) {
	var content string
	found := false
	c.Doc().Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.EqualFold(s.AttrOr("name", ""), name) {
			return true
		}
		content, found = strings.TrimSpace(s.AttrOr("content", "")), true
		return false
	})
	return content, found
}

// Resolve resolves ref against the page URL and any <base href>.
func (c *Content) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	base, err := url.Parse(c.URL)
	if err != nil {
		return ref
	}
	if b := c.extract.BaseURL; b != "" {
		if u, err := url.Parse(b); err == nil {
			base = base.ResolveReference(u)
		}
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
