package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/dataprofiler/internal/dataset"
	"github.com/KaramelBytes/dataprofiler/internal/insight"
	"github.com/KaramelBytes/dataprofiler/internal/profile"
	"github.com/KaramelBytes/dataprofiler/internal/recommend"
	"github.com/KaramelBytes/dataprofiler/internal/report"
	"github.com/KaramelBytes/dataprofiler/internal/reporter"
	"github.com/KaramelBytes/dataprofiler/internal/service"
	"github.com/KaramelBytes/dataprofiler/internal/utils"
)

// loadFlags are the dataset parsing flags shared by analyze and analyze-batch.
type loadFlags struct {
	delimiter  string
	decimal    string
	thousands  string
	sheetName  string
	sheetIndex int
	categories []string
	parseDates []string
	sampleRows int
	outlierThr float64
}

func (lf *loadFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&lf.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (auto-detect if omitted)")
	fs.StringVar(&lf.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma'")
	fs.StringVar(&lf.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space'")
	fs.StringVar(&lf.sheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	fs.IntVar(&lf.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	fs.StringSliceVar(&lf.categories, "category", nil, "columns to load as categorical (repeatable)")
	fs.StringSliceVar(&lf.parseDates, "parse-dates", nil, "columns to parse as timestamps (repeatable)")
	fs.IntVar(&lf.sampleRows, "sample-rows", 5, "sample rows in markdown and HTML reports")
	fs.Float64Var(&lf.outlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
}

func (lf *loadFlags) loadOptions() (dataset.LoadOptions, error) {
	opt := dataset.DefaultLoadOptions()
	switch lf.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", lf.delimiter)
	}
	switch strings.ToLower(strings.TrimSpace(lf.decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot", "":
		opt.DecimalSeparator = '.'
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", lf.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(lf.thousands)) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", lf.thousands)
	}
	if opt.DecimalSeparator == opt.ThousandsSeparator {
		return opt, fmt.Errorf("--decimal and --thousands must differ")
	}
	opt.SheetName = lf.sheetName
	opt.SheetIndex = lf.sheetIndex
	opt.Categorical = lf.categories
	opt.ParseDates = lf.parseDates
	opt.MaxRows = maxRowsSetting()
	return opt, nil
}

func (lf *loadFlags) profileOptions() profile.Options {
	opt := profile.DefaultOptions()
	if lf.sampleRows >= 0 {
		opt.SampleRows = lf.sampleRows
	}
	if lf.outlierThr > 0 {
		opt.OutlierThreshold = lf.outlierThr
	}
	return opt
}

// analysisOutput is the machine-readable result of one analysis.
type analysisOutput struct {
	Filename        string                     `json:"filename" yaml:"filename"`
	Insights        insight.Summary            `json:"insights" yaml:"insights"`
	Recommendations []recommend.Recommendation `json:"recommendations" yaml:"recommendations"`
}

// analyzeLocal loads path and runs the service pipeline against an in-memory store.
func analyzeLocal(ctx context.Context, path string, lf *loadFlags, withHTML bool) (*report.Record, *dataset.Table, error) {
	opt, err := lf.loadOptions()
	if err != nil {
		return nil, nil, err
	}
	t, err := dataset.LoadFile(path, opt)
	if err != nil {
		return nil, nil, err
	}
	var renderer service.Renderer
	if withHTML {
		r := profile.NewHTMLRenderer()
		r.Options = lf.profileOptions()
		renderer = r
	}
	svc := service.New(report.NewMemoryStore(), renderer)
	svc.MaxRows = opt.MaxRows
	// Pipeline logs would interleave with the report; only show them with --debug.
	if effectiveConfig().LogLevel == "debug" {
		if logger, err := newLogger(); err == nil {
			svc.Logger = logger
		}
	}
	rec, err := svc.AnalyzeTable(ctx, filepath.Base(path), t)
	if err != nil {
		return nil, nil, err
	}
	return rec, t, nil
}

// formatResult renders rec in one of console|json|yaml|markdown.
func formatResult(format string, rec *report.Record, t *dataset.Table, popt profile.Options) ([]byte, error) {
	out := analysisOutput{Filename: rec.Filename, Insights: rec.Summary, Recommendations: rec.Recommendations}
	switch strings.ToLower(format) {
	case "", "console":
		var buf bytes.Buffer
		if err := reporter.NewConsoleReporterTo(&buf).Report(rec.Filename, rec.Summary, rec.Recommendations); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "json":
		b, err := utils.PrettyJSON(out)
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case "yaml":
		b, err := yaml.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("marshal yaml: %w", err)
		}
		return b, nil
	case "markdown", "md":
		var buf bytes.Buffer
		buf.WriteString(profile.Build(rec.Filename, t, popt).Markdown())
		writeRecommendationsMarkdown(&buf, rec.Recommendations)
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported --format: %s (use console|json|yaml|markdown)", format)
	}
}

func writeRecommendationsMarkdown(w io.Writer, recs []recommend.Recommendation) {
	fmt.Fprintln(w, "[RECOMMENDATIONS]")
	if len(recs) == 0 {
		fmt.Fprintln(w, "- none")
		return
	}
	for _, r := range recs {
		fmt.Fprintf(w, "- [%s] %s: %s Action: %s\n", r.Severity, r.Title, r.Description, r.Action)
	}
}

var (
	anaLoad     loadFlags
	anaFormat   string
	anaOutput   string
	anaHTMLPath string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a CSV/TSV/XLSX file and print data-quality recommendations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		rec, t, err := analyzeLocal(cmd.Context(), path, &anaLoad, anaHTMLPath != "")
		if err != nil {
			return err
		}
		if anaHTMLPath != "" {
			if err := utils.SafeWriteFile(anaHTMLPath, rec.HTML); err != nil {
				return fmt.Errorf("write html: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote HTML report to %s\n", anaHTMLPath)
		}
		body, err := formatResult(anaFormat, rec, t, anaLoad.profileOptions())
		if err != nil {
			return err
		}
		if anaOutput != "" {
			if err := utils.SafeWriteFile(anaOutput, body); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote analysis to %s\n", anaOutput)
			return nil
		}
		_, err = cmd.OutOrStdout().Write(body)
		return err
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	anaLoad.register(analyzeCmd.Flags())
	analyzeCmd.Flags().StringVarP(&anaFormat, "format", "f", "console", "output format: console|json|yaml|markdown")
	analyzeCmd.Flags().StringVarP(&anaOutput, "output", "o", "", "optional path to write the result instead of stdout")
	analyzeCmd.Flags().StringVar(&anaHTMLPath, "html", "", "optional path to write the HTML profiling report")
}
