package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"goattrib/domain/core"
	"goattrib/domain/model"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Format selects the rendering of a model report
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
)

// ParseFormat accepts md, markdown and html; empty means markdown
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("%w: unknown report format %q", core.ErrInvalidParameter, s)
}

// ContentType returns the HTTP content type of the rendered report
func (f Format) ContentType() string {
	if f == FormatHTML {
		return "text/html; charset=utf-8"
	}
	return "text/markdown; charset=utf-8"
}

// Render renders result in format
func Render(result *model.FitResult, format Format) ([]byte, error) {
	if result == nil || result.FittedModel == nil {
		return nil, core.ErrModelNotFitted
	}
	md := Markdown(result)
	switch format {
	case FormatMarkdown:
		return []byte(md), nil
	case FormatHTML:
		return ToHTML(md), nil
	}
	return nil, fmt.Errorf("%w: unknown report format %q", core.ErrInvalidParameter, format)
}

// ToHTML converts a markdown document into a standalone HTML page
func ToHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.NoEmptyLineBeforeBlock)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: "Attribution model summary",
	})
	return markdown.ToHTML([]byte(md), p, renderer)
}

// Markdown builds the model summary document
func Markdown(result *model.FitResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Attribution model summary\n\n")
	fmt.Fprintf(&b, "- Method: %s", strings.ToUpper(string(result.Method)))
	if result.Method == model.MethodRidge {
		fmt.Fprintf(&b, " (alpha = %s)", num(result.Alpha))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "- Observations: %d\n", result.NObs)
	fmt.Fprintf(&b, "- R²: %s\n", num(result.RSquared))
	fmt.Fprintf(&b, "- Adjusted R²: %s\n", stat(result.AdjRSquared))
	fmt.Fprintf(&b, "- AIC: %s\n", stat(result.AIC))
	fmt.Fprintf(&b, "- BIC: %s\n", stat(result.BIC))
	fmt.Fprintf(&b, "- F-statistic: %s (p = %s)\n", stat(result.FStatistic), stat(result.FPValue))
	fmt.Fprintf(&b, "- Residuals: mean %s, std %s\n", num(result.ResidualsMean), num(result.ResidualsStd))
	if result.DatasetFingerprint != "" {
		fmt.Fprintf(&b, "- Dataset: `%s` (generation %d)\n", result.DatasetFingerprint, result.Generation)
	}
	if result.InferenceNote != "" {
		fmt.Fprintf(&b, "\n> %s\n", result.InferenceNote)
	}

	b.WriteString("\n## Coefficients\n\n")
	b.WriteString("| Name | Coefficient | Std. error | p-value | 95% CI |\n")
	b.WriteString("|---|---:|---:|---:|---|\n")
	for _, name := range result.Names {
		se := "n/a"
		if v, ok := result.StdErrors[name]; ok {
			se = stat(v)
		}
		p := "n/a"
		if v := result.PValues[name]; v != nil {
			p = stat(*v)
		}
		ci := "n/a"
		if iv, ok := result.BootstrapCI[name]; ok {
			ci = fmt.Sprintf("[%s, %s]", num(iv.Lower), num(iv.Upper))
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", name, num(result.Coefficients[name]), se, p, ci)
	}

	if len(result.VIF) > 0 {
		b.WriteString("\n## Variance inflation\n\n")
		b.WriteString("| Feature | VIF | |\n|---|---:|---|\n")
		for _, name := range sortedKeys(result.VIF) {
			flag := ""
			if _, high := result.HighVIFAlert[name]; high {
				flag = "high"
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n", name, stat(result.VIF[name]), flag)
		}
	}

	bs := result.Bootstrap
	if bs.Requested > 0 {
		fmt.Fprintf(&b, "\nBootstrap: %d of %d resamples succeeded (seed %d)", bs.Succeeded, bs.Used, bs.Seed)
		if bs.Clamped {
			fmt.Fprintf(&b, ", clamped from %d", bs.Requested)
		}
		b.WriteString(".\n")
	}

	if len(result.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(&b, "- %s\n", w.String())
		}
	}

	return b.String()
}

func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.4g", v)
}

func stat(s model.Stat) string {
	return num(float64(s))
}

func sortedKeys(m model.VIFReport) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
