package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/storage"
)

// ExportFormat defines the export file format.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatJSON ExportFormat = "json"
)

// Sheet names of the XLSX export.
const (
	SheetSummary = "Summary"
	SheetResults = "Results"
	SheetPages   = "Pages"
)

// ExportOptions defines export configuration.
type ExportOptions struct {
	Format    ExportFormat
	FilePath  string
	MaxRows   int  // 0 = unlimited
	Delimiter rune // For CSV, default is comma
}

// Exporter handles exporting reports to various formats.
type Exporter struct {
	options ExportOptions
}

// NewExporter creates a new exporter.
func NewExporter(options ExportOptions) *Exporter {
	if options.Format == "" {
		options.Format = FormatXLSX
	}
	return &Exporter{options: options}
}

// Export writes r to the configured file.
func (e *Exporter) Export(r *Report) error {
	file, err := os.Create(e.options.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := e.Write(file, r); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Write encodes r to w in the configured format.
func (e *Exporter) Write(w io.Writer, r *Report) error {
	switch e.options.Format {
	case FormatCSV:
		return e.writeCSV(w, r)
	case FormatXLSX:
		return e.writeXLSX(w, r)
	case FormatJSON:
		return e.writeJSON(w, r)
	default:
		return fmt.Errorf("unsupported export format: %s", e.options.Format)
	}
}

func (e *Exporter) results(r *Report) []check.Result {
	if e.options.MaxRows > 0 && len(r.Results) > e.options.MaxRows {
		return r.Results[:e.options.MaxRows]
	}
	return r.Results
}

// writeCSV writes the flat result records.
func (e *Exporter) writeCSV(w io.Writer, r *Report) error {
	// UTF-8 BOM for Excel compatibility
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if e.options.Delimiter != 0 {
		writer.Comma = e.options.Delimiter
	}

	if err := writer.Write(check.Columns()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, res := range e.results(r) {
		if err := writer.Write(res.Row()); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// JSONReport represents the JSON export structure.
type JSONReport struct {
	Metadata   JSONMetadata           `json:"metadata"`
	Stats      check.Stats            `json:"stats"`
	Issues     []Issue                `json:"issues"`
	Graph      *crawlctx.GraphStats   `json:"graph,omitempty"`
	Depths     []crawlctx.DepthBucket `json:"depths,omitempty"`
	Duplicates map[string][]string    `json:"duplicate_clusters,omitempty"`
	Results    []check.Result         `json:"results"`
	Pages      []storage.Page         `json:"pages,omitempty"`
}

// JSONMetadata represents report metadata.
type JSONMetadata struct {
	AuditID   string `json:"audit_id,omitempty"`
	RootURL   string `json:"root_url"`
	Generated string `json:"generated"`
	Tool      string `json:"tool"`
}

func (e *Exporter) writeJSON(w io.Writer, r *Report) error {
	data := &JSONReport{
		Metadata: JSONMetadata{
			AuditID:   r.AuditID,
			RootURL:   r.RootURL,
			Generated: r.Generated.Format(time.RFC3339),
			Tool:      Tool,
		},
		Stats:      r.Stats,
		Issues:     r.Issues(),
		Graph:      r.Graph,
		Depths:     r.Depths,
		Duplicates: r.Duplicates,
		Results:    e.results(r),
		Pages:      r.Pages,
	}
	if data.Results == nil {
		data.Results = []check.Result{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(data)
}

var statusFills = map[check.Status]string{
	check.StatusPass:    "C6EFCE",
	check.StatusFail:    "FFC7CE",
	check.StatusWarning: "FFEB9C",
	check.StatusInfo:    "DDEBF7",
	check.StatusError:   "D9D9D9",
}

// xlsxWriter carries the workbook and its shared styles.
type xlsxWriter struct {
	f           *excelize.File
	headerStyle int
	boldStyle   int
	statusStyle map[check.Status]int
}

func newXLSXWriter() (*xlsxWriter, error) {
	x := &xlsxWriter{f: excelize.NewFile(), statusStyle: make(map[check.Status]int)}

	var err error
	x.headerStyle, err = x.f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"00C853"}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, err
	}
	x.boldStyle, err = x.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	for status, color := range statusFills {
		id, err := x.f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
		if err != nil {
			return nil, err
		}
		x.statusStyle[status] = id
	}
	return x, nil
}

func (e *Exporter) writeXLSX(w io.Writer, r *Report) error {
	x, err := newXLSXWriter()
	if err != nil {
		return fmt.Errorf("failed to create workbook: %w", err)
	}
	defer x.f.Close()

	// The default sheet becomes the summary so it opens first.
	if err := x.f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	if err := x.summary(r); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	if err := x.resultsSheet(e.results(r)); err != nil {
		return fmt.Errorf("results sheet: %w", err)
	}
	if err := x.pagesSheet(r.Pages); err != nil {
		return fmt.Errorf("pages sheet: %w", err)
	}
	x.f.SetActiveSheet(0)

	return x.f.Write(w)
}

// table writes header and rows starting at row start and returns the next
// free row.
func (x *xlsxWriter) table(sheet string, start int, header []string, rows [][]any) (int, error) {
	cell, _ := excelize.CoordinatesToCellName(1, start)
	if err := x.f.SetSheetRow(sheet, cell, &header); err != nil {
		return 0, err
	}
	last, _ := excelize.CoordinatesToCellName(len(header), start)
	if err := x.f.SetCellStyle(sheet, cell, last, x.headerStyle); err != nil {
		return 0, err
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, start+1+i)
		if err := x.f.SetSheetRow(sheet, cell, &row); err != nil {
			return 0, err
		}
	}
	return start + len(rows) + 2, nil
}

// finish adds a filter over the table and freezes its header row.
func (x *xlsxWriter) finish(sheet string, columns, rows int, widths map[string]float64) error {
	lastCol, _ := excelize.ColumnNumberToName(columns)
	if err := x.f.AutoFilter(sheet, fmt.Sprintf("A1:%s%d", lastCol, rows+1), nil); err != nil {
		return err
	}
	if err := x.f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	for col, width := range widths {
		if err := x.f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

func (x *xlsxWriter) summary(r *Report) error {
	sheet := SheetSummary
	meta := [][]any{
		{"Root URL", r.RootURL},
		{"Audit ID", r.AuditID},
		{"Generated", r.Generated.Format(time.RFC3339)},
		{"Tool", Tool},
		{"Pages", r.Stats.Pages},
		{"Results", r.Stats.Total},
		{"Pass Rate", fmt.Sprintf("%.1f%%", r.Stats.PassRate)},
	}
	for i, row := range meta {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := x.f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
		if err := x.f.SetCellStyle(sheet, cell, cell, x.boldStyle); err != nil {
			return err
		}
	}
	next := len(meta) + 2

	countHeader := []string{"", "Total", "Pass", "Fail", "Warning", "Info", "Error"}
	countRow := func(label string, c check.StatusCounts) []any {
		return []any{label, c.Total, c.Pass, c.Fail, c.Warning, c.Info, c.Error}
	}

	rows := [][]any{countRow("All", r.Stats.StatusCounts)}
	next, err := x.table(sheet, next, append([]string{"Overall"}, countHeader[1:]...), rows)
	if err != nil {
		return err
	}

	rows = rows[:0]
	for _, cat := range check.AllCategories {
		if c, ok := r.Stats.ByCategory[cat]; ok {
			rows = append(rows, countRow(string(cat), c))
		}
	}
	if next, err = x.table(sheet, next, append([]string{"Category"}, countHeader[1:]...), rows); err != nil {
		return err
	}

	rows = rows[:0]
	for _, sev := range check.Severities {
		if c, ok := r.Stats.BySeverity[sev]; ok {
			rows = append(rows, countRow(string(sev), c))
		}
	}
	if next, err = x.table(sheet, next, append([]string{"Severity"}, countHeader[1:]...), rows); err != nil {
		return err
	}

	if g := r.Graph; g != nil {
		rows = [][]any{
			{"Pages", g.Pages},
			{"Links", g.Edges},
			{"Orphan pages", g.Orphans},
			{"Unreachable pages", g.Unreachable},
			{"Dead ends", g.DeadEnds},
			{"Max depth", g.MaxDepth},
			{"Avg inlinks", fmt.Sprintf("%.2f", g.AvgInLinks)},
			{"Avg outlinks", fmt.Sprintf("%.2f", g.AvgOutLinks)},
			{"Duplicate clusters", g.DupClusters},
		}
		if next, err = x.table(sheet, next, []string{"Link Graph", "Value"}, rows); err != nil {
			return err
		}

		rows = rows[:0]
		for _, b := range r.Depths {
			depth := strconv.Itoa(b.Depth)
			if b.Depth == crawlctx.Unreachable {
				depth = "Unreachable"
			}
			rows = append(rows, []any{depth, b.URLCount, fmt.Sprintf("%.1f%%", b.Percent)})
		}
		if next, err = x.table(sheet, next, []string{"Depth", "URLs", "Share"}, rows); err != nil {
			return err
		}
	}

	rows = rows[:0]
	for _, is := range r.Issues() {
		rows = append(rows, []any{is.CheckName, string(is.Category), string(is.Severity), is.Failures, is.Warnings})
	}
	if _, err = x.table(sheet, next, []string{"Issue", "Category", "Severity", "Failures", "Warnings"}, rows); err != nil {
		return err
	}

	if err := x.f.SetColWidth(sheet, "A", "A", 30); err != nil {
		return err
	}
	return x.f.SetColWidth(sheet, "B", "G", 15)
}

func (x *xlsxWriter) resultsSheet(results []check.Result) error {
	sheet := SheetResults
	if _, err := x.f.NewSheet(sheet); err != nil {
		return err
	}

	rows := make([][]any, len(results))
	for i, res := range results {
		row := res.Row()
		rows[i] = make([]any, len(row))
		for j, v := range row {
			rows[i][j] = v
		}
	}
	if _, err := x.table(sheet, 1, check.Columns(), rows); err != nil {
		return err
	}

	// Status is the fifth column.
	for i, res := range results {
		style, ok := x.statusStyle[res.Status]
		if !ok {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(5, i+2)
		if err := x.f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}

	return x.finish(sheet, len(check.Columns()), len(results), map[string]float64{
		"A": 50, "B": 25, "C": 30, "D": 20, "E": 10, "F": 10, "G": 60, "H": 60, "I": 40,
	})
}

func (x *xlsxWriter) pagesSheet(pages []storage.Page) error {
	sheet := SheetPages
	if _, err := x.f.NewSheet(sheet); err != nil {
		return err
	}

	rows := make([][]any, len(pages))
	for i, p := range pages {
		rows[i] = pageRow(p)
	}
	if _, err := x.table(sheet, 1, PageColumns, rows); err != nil {
		return err
	}
	return x.finish(sheet, len(PageColumns), len(pages), map[string]float64{
		"A": 50, "C": 40, "D": 40,
	})
}

// WriteFiles exports r once per format into dir and returns the paths
// written.
func WriteFiles(r *Report, dir, baseName string, formats []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	stamp := r.Generated.Format("20060102_150405")
	var paths []string
	for _, format := range formats {
		format = strings.ToLower(format)
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.%s", sanitizeFilename(baseName), stamp, format))
		exporter := NewExporter(ExportOptions{Format: ExportFormat(format), FilePath: path})
		if err := exporter.Export(r); err != nil {
			return paths, fmt.Errorf("export %s: %w", format, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// sanitizeFilename ensures filename is valid.
func sanitizeFilename(name string) string {
	invalid := []string{"\\", "/", ":", "*", "?", "\"", "<", ">", "|", " "}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}
	if result == "" {
		result = "report"
	}
	return strings.ToLower(result)
}
