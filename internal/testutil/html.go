package testutil

import (
	"fmt"
	"html"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spider-crawler/seoaudit/internal/page"
)

// HTMLBuilder assembles test documents.
type HTMLBuilder struct {
	lang      string
	title     string
	metaDesc  string
	canonical string
	viewport  string
	robots    string
	h1        string
	h2s       []string
	links     []link
	images    []image
	jsonLD    []string
	body      string
}

type link struct {
	href, text, rel, target string
}

type image struct {
	src, alt string
}

// NewHTMLBuilder creates an empty document builder.
func NewHTMLBuilder() *HTMLBuilder {
	return &HTMLBuilder{}
}

// Lang sets the html lang attribute.
func (b *HTMLBuilder) Lang(lang string) *HTMLBuilder {
	b.lang = lang
	return b
}

// Title sets the page title.
func (b *HTMLBuilder) Title(title string) *HTMLBuilder {
	b.title = title
	return b
}

// MetaDescription sets the meta description.
func (b *HTMLBuilder) MetaDescription(desc string) *HTMLBuilder {
	b.metaDesc = desc
	return b
}

// Canonical sets the canonical URL.
func (b *HTMLBuilder) Canonical(url string) *HTMLBuilder {
	b.canonical = url
	return b
}

// Viewport sets the viewport meta content.
func (b *HTMLBuilder) Viewport(content string) *HTMLBuilder {
	b.viewport = content
	return b
}

// Robots sets the robots meta content.
func (b *HTMLBuilder) Robots(content string) *HTMLBuilder {
	b.robots = content
	return b
}

// H1 sets the H1 heading.
func (b *HTMLBuilder) H1(text string) *HTMLBuilder {
	b.h1 = text
	return b
}

// H2 adds an H2 heading.
func (b *HTMLBuilder) H2(text string) *HTMLBuilder {
	b.h2s = append(b.h2s, text)
	return b
}

// Link adds an anchor.
func (b *HTMLBuilder) Link(href, text string) *HTMLBuilder {
	b.links = append(b.links, link{href: href, text: text})
	return b
}

// LinkWithRel adds an anchor with rel and target attributes.
func (b *HTMLBuilder) LinkWithRel(href, text, rel, target string) *HTMLBuilder {
	b.links = append(b.links, link{href: href, text: text, rel: rel, target: target})
	return b
}

// Img adds an image; an empty alt omits the attribute.
func (b *HTMLBuilder) Img(src, alt string) *HTMLBuilder {
	b.images = append(b.images, image{src: src, alt: alt})
	return b
}

// JSONLD adds a structured data block.
func (b *HTMLBuilder) JSONLD(doc string) *HTMLBuilder {
	b.jsonLD = append(b.jsonLD, doc)
	return b
}

// Body sets raw body content placed after the headings.
func (b *HTMLBuilder) Body(content string) *HTMLBuilder {
	b.body = content
	return b
}

// Build renders the document.
func (b *HTMLBuilder) Build() string {
	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n")
	if b.lang != "" {
		fmt.Fprintf(&sb, "<html lang=%q>\n", b.lang)
	} else {
		sb.WriteString("<html>\n")
	}
	sb.WriteString("<head>\n")
	if b.title != "" {
		fmt.Fprintf(&sb, "  <title>%s</title>\n", html.EscapeString(b.title))
	}
	meta := func(name, content string) {
		if content != "" {
			fmt.Fprintf(&sb, "  <meta name=%q content=%q>\n", name, content)
		}
	}
	meta("description", b.metaDesc)
	meta("viewport", b.viewport)
	meta("robots", b.robots)
	if b.canonical != "" {
		fmt.Fprintf(&sb, "  <link rel=\"canonical\" href=%q>\n", b.canonical)
	}
	for _, doc := range b.jsonLD {
		fmt.Fprintf(&sb, "  <script type=\"application/ld+json\">%s</script>\n", doc)
	}
	sb.WriteString("</head>\n<body>\n")

	if b.h1 != "" {
		fmt.Fprintf(&sb, "  <h1>%s</h1>\n", html.EscapeString(b.h1))
	}
	for _, h2 := range b.h2s {
		fmt.Fprintf(&sb, "  <h2>%s</h2>\n", html.EscapeString(h2))
	}
	if b.body != "" {
		sb.WriteString(b.body)
		sb.WriteString("\n")
	}
	for _, l := range b.links {
		attrs := fmt.Sprintf("href=%q", l.href)
		if l.rel != "" {
			attrs += fmt.Sprintf(" rel=%q", l.rel)
		}
		if l.target != "" {
			attrs += fmt.Sprintf(" target=%q", l.target)
		}
		fmt.Fprintf(&sb, "  <a %s>%s</a>\n", attrs, html.EscapeString(l.text))
	}
	for _, img := range b.images {
		if img.alt == "" {
			fmt.Fprintf(&sb, "  <img src=%q>\n", img.src)
		} else {
			fmt.Fprintf(&sb, "  <img src=%q alt=%q>\n", img.src, img.alt)
		}
	}
	sb.WriteString("</body>\n</html>")
	return sb.String()
}

// Content parses body as if it had been fetched from url with status 200.
func Content(t testing.TB, url, body string) *page.Content {
	t.Helper()
	c, err := page.NewContent(url, 200, nil, body)
	require.NoError(t, err)
	return c
}
