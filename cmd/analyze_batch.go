package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataprofiler/internal/utils"
)

var (
	abLoad      loadFlags
	abOutDir    string
	abHTML      bool
	abKeepGoing bool
	abQuiet     bool
)

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze multiple CSV/TSV/XLSX files with progress and optional per-file reports",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandInputs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}
		if abOutDir != "" {
			if err := os.MkdirAll(abOutDir, 0o755); err != nil {
				return err
			}
		}
		out := cmd.OutOrStdout()

		total, failed := len(files), 0
		for i, path := range files {
			if !abQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			rec, t, err := analyzeLocal(cmd.Context(), path, &abLoad, abHTML && abOutDir != "")
			if err != nil {
				if !abKeepGoing {
					return fmt.Errorf("%s: %w", filepath.Base(path), err)
				}
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Skipping %s: %v\n", filepath.Base(path), err)
				continue
			}

			if abOutDir == "" {
				if abQuiet {
					continue
				}
				body, err := formatResult("console", rec, t, abLoad.profileOptions())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(body))
				continue
			}

			base := outputBase(path, abLoad.sheetName)
			body, err := formatResult("json", rec, t, abLoad.profileOptions())
			if err != nil {
				return err
			}
			jsonPath := utils.UniquePath(abOutDir, base, ".report.json")
			if !abQuiet && filepath.Base(jsonPath) != base+".report.json" {
				fmt.Fprintf(out, "⚠ Detected existing report, writing to %s to avoid overwrite.\n", filepath.Base(jsonPath))
			}
			if err := utils.SafeWriteFile(jsonPath, body); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if abHTML {
				htmlPath := strings.TrimSuffix(jsonPath, ".report.json") + ".html"
				if err := utils.SafeWriteFile(htmlPath, rec.HTML); err != nil {
					return fmt.Errorf("write html: %w", err)
				}
			}
			if !abQuiet {
				fmt.Fprintf(out, "✓ Wrote %s (%d recommendations)\n", filepath.Base(jsonPath), len(rec.Recommendations))
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, total)
		}
		return nil
	},
}

// expandInputs resolves glob patterns and literal paths, dropping duplicates.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

// outputBase is the file stem for per-file reports, tagged with the sheet
// name when one was selected.
func outputBase(path, sheetName string) string {
	base := filepath.Base(path)
	safe := strings.TrimSuffix(base, filepath.Ext(base))
	if sheetName == "" {
		return safe
	}
	s := strings.ToLower(strings.TrimSpace(sheetName))
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else if r == ' ' || r == '-' || r == '_' {
			b.WriteRune('-')
		}
	}
	ss := strings.Trim(b.String(), "-")
	if ss == "" {
		ss = "sheet"
	}
	return safe + "__sheet-" + ss
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	abLoad.register(analyzeBatchCmd.Flags())
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", "", "directory for per-file <name>.report.json (prints console reports if omitted)")
	analyzeBatchCmd.Flags().BoolVar(&abHTML, "html", false, "with --out-dir, also write <name>.html profiling reports")
	analyzeBatchCmd.Flags().BoolVar(&abKeepGoing, "keep-going", false, "continue with remaining files when one fails")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
}
