package profile

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/KaramelBytes/dataprofiler/internal/dataset"
)

//go:embed templates/report.html.tmpl
var templatesFS embed.FS

var reportTmpl = template.Must(template.New("report.html.tmpl").Funcs(template.FuncMap{
	"pct":    func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) + "%" },
	"num":    func(v float64) string { return strconv.FormatFloat(v, 'g', 6, 64) },
	"mul100": func(v float64) float64 { return v * 100 },
	"barWidth": func(count, total int) int {
		if total == 0 {
			return 0
		}
		return count * 120 / total
	},
}).ParseFS(templatesFS, "templates/report.html.tmpl"))

// HTMLRenderer produces a self-contained HTML profiling report.
type HTMLRenderer struct {
	Options Options
	// Now stamps the report; defaults to time.Now.
	Now func() time.Time
}

// NewHTMLRenderer returns a renderer with DefaultOptions.
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{Options: DefaultOptions(), Now: time.Now}
}

type reportData struct {
	Title          string
	Generated      time.Time
	Profile        *Profile
	MissingCells   int
	MissingCellPct float64
}

// Render profiles t and executes the report template.
func (r *HTMLRenderer) Render(ctx context.Context, title string, t *dataset.Table) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	p := Build(title, t, r.Options)
	data := reportData{Title: title, Generated: now(), Profile: p}
	for _, c := range p.Cols {
		data.MissingCells += c.Missing
	}
	if cells := p.Rows * len(p.Cols); cells > 0 {
		data.MissingCellPct = float64(data.MissingCells) * 100 / float64(cells)
	}
	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}
