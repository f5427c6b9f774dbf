package renderer

import (
	"fmt"

	"github.com/spider-crawler/seoaudit/internal/page"
)

// vitalsObserver runs before any page script so buffered LCP, paint and
// layout-shift entries are all observed. Times are milliseconds.
const vitalsObserver = `(() => {
  const m = window.__seoauditVitals = { lcp: null, fcp: null, cls: 0, load: null };
  const observe = (type, fn) => {
    if (!PerformanceObserver.supportedEntryTypes.includes(type)) return;
    new PerformanceObserver((list) => list.getEntries().forEach(fn)).observe({ type, buffered: true });
  };
  observe('largest-contentful-paint', (e) => { m.lcp = e.startTime; });
  observe('paint', (e) => { if (e.name === 'first-contentful-paint') m.fcp = e.startTime; });
  observe('layout-shift', (e) => { if (!e.hadRecentInput) m.cls += e.value; });
})();`

// readVitals falls back to the performance timeline for FCP when the
// observer missed it.
const readVitals = `(() => {
  const m = Object.assign({ lcp: null, fcp: null, cls: null, load: null }, window.__seoauditVitals || {});
  if (m.fcp === null) {
    const p = performance.getEntriesByName('first-contentful-paint')[0];
    if (p) m.fcp = p.startTime;
  }
  const nav = performance.getEntriesByType('navigation')[0];
  if (nav && nav.loadEventEnd > 0) m.load = nav.loadEventEnd;
  return m;
})()`

// vitals mirrors the object built by readVitals.
type vitals struct {
	LCP  *float64 `json:"lcp"`
	FCP  *float64 `json:"fcp"`
	CLS  *float64 `json:"cls"`
	Load *float64 `json:"load"`
}

// toMap keeps only the measurements the browser reported.
func (v vitals) toMap() map[string]float64 {
	m := make(map[string]float64, 3)
	if v.LCP != nil {
		m[page.VitalLCP] = *v.LCP
	}
	if v.FCP != nil {
		m[page.VitalFCP] = *v.FCP
	}
	if v.CLS != nil {
		m[page.VitalCLS] = *v.CLS
	}
	return m
}

func injectScript(src string) string {
	return fmt.Sprintf(`new Promise((resolve, reject) => {
  if (window.axe) return resolve(true);
  const s = document.createElement('script');
  s.src = %q;
  s.onload = () => resolve(true);
  s.onerror = () => reject(new Error('failed to load axe-core'));
  document.head.appendChild(s);
})`, src)
}

// runAxe condenses axe.run results to the shape of page.AxeReport.
const runAxe = `axe.run(document).then((r) => ({
  violations: r.violations.map((v) => ({
    id: v.id,
    impact: v.impact || '',
    description: v.description,
    help: v.help,
    helpUrl: v.helpUrl,
    nodes: v.nodes.length,
  })),
  passes: r.passes.length,
  incomplete: r.incomplete.length,
  inapplicable: r.inapplicable.length,
}))`
