package checks

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/page"
)

var securityHeaders = []string{
	"X-Frame-Options",
	"X-Content-Type-Options",
	"Strict-Transport-Security",
	"Content-Security-Policy",
}

type securityHeadersCheck struct{ check.Base }

func newSecurityHeaders(Options) check.Check {
	return securityHeadersCheck{check.NewBase("security_headers", "Security Headers", check.CategorySecurity, check.SeverityHigh)}
}

func (c securityHeadersCheck) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	var present, missing []string
	for _, h := range securityHeaders {
		if p.Header(h) != "" {
			present = append(present, h)
		} else {
			missing = append(missing, h)
		}
	}

	msg := fmt.Sprintf("%d of %d security headers present", len(present), len(securityHeaders))
	rec := "Add missing headers: " + strings.Join(missing, ", ")
	evidence := strings.Join(present, ", ")
	switch {
	case len(present) >= Thresholds.MinSecurityHeaders:
		if len(missing) == 0 {
			rec = ""
		}
		return c.One(p, check.StatusPass, msg, rec, evidence), nil
	case len(present) > 0:
		return c.One(p, check.StatusWarning, msg, rec, evidence), nil
	}
	return c.One(p, check.StatusFail, "No security headers found", rec, "none"), nil
}

type cookieFlags struct{ check.Base }

func newCookieFlags(Options) check.Check {
	return cookieFlags{check.NewBase("cookie_security_flags", "Cookie Security Flags", check.CategorySecurity, check.SeverityMedium)}
}

// Execute counts a flag as set only when every cookie carries it.
func (c cookieFlags) Execute(p *page.Content, _ *crawlctx.CrawlContext) ([]check.Result, error) {
	raw := p.HeaderValues("Set-Cookie")
	if len(raw) == 0 {
		return nil, nil
	}

	secure, httpOnly, sameSite := true, true, true
	parsed := 0
	for _, line := range raw {
		ck, err := http.ParseSetCookie(line)
		if err != nil {
			continue
		}
		parsed++
		secure = secure && ck.Secure
		httpOnly = httpOnly && ck.HttpOnly
		sameSite = sameSite && ck.SameSite != 0
	}
	if parsed == 0 {
		return c.One(p, check.StatusWarning, "Set-Cookie headers could not be parsed",
			"Send well-formed Set-Cookie headers", sample(raw, 2)), nil
	}

	var missing []string
	for _, f := range []struct {
		name string
		ok   bool
	}{{"Secure", secure}, {"HttpOnly", httpOnly}, {"SameSite", sameSite}} {
		if !f.ok {
			missing = append(missing, f.name)
		}
	}

	evidence := plural(parsed, "cookie")
	if 3-len(missing) >= Thresholds.MinCookieFlags {
		rec := ""
		if len(missing) > 0 {
			rec = "Also set " + strings.Join(missing, ", ")
		}
		return c.One(p, check.StatusPass, "Cookies set the recommended security flags", rec, evidence), nil
	}
	return c.One(p, check.StatusWarning, "Cookies missing flags: "+strings.Join(missing, ", "),
		"Mark cookies Secure, HttpOnly and SameSite", evidence), nil
}
