package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/iho/kasa/internal/domain"
)

// cellEscaper keeps a "|" inside a name from splitting the table cell.
var cellEscaper = strings.NewReplacer("|", `\|`)

// Markdown renders result as a GitHub-flavored markdown document.
func Markdown(result *domain.DistributionResult, currency string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Distribution %s\n\n", result.Month)
	if currency != "" {
		fmt.Fprintf(&b, "Amounts in %s. ", currency)
	}
	fmt.Fprintf(&b, "Shortfall policy: %s.\n\n", result.Policy)

	fmt.Fprintf(&b, "| %s |\n", strings.Join(Headers, " | "))
	fmt.Fprintln(&b, "|:---|---:|---:|---:|---:|---:|---:|")
	for _, row := range Rows(result) {
		for i := range row {
			row[i] = cellEscaper.Replace(row[i])
		}
		fmt.Fprintf(&b, "| %s |\n", strings.Join(row, " | "))
	}

	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "- Total entitlement: %s\n", Money(result.TotalEntitlement, currency))
	fmt.Fprintf(&b, "- Total paid: %s\n", Money(result.TotalPaid, currency))
	fmt.Fprintf(&b, "- Distributable: %s\n", Money(result.Distributable, currency))
	if result.Shortfall {
		fmt.Fprintf(&b, "- Claims of %s exceeded the pool and were scaled down.\n", Money(result.TotalClaims, currency))
	}

	return b.String()
}

// HTML renders the markdown report to an HTML fragment.
func HTML(result *domain.DistributionResult, currency string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var b strings.Builder
	if err := md.Convert([]byte(Markdown(result, currency)), &b); err != nil {
		return "", fmt.Errorf("failed to render html: %w", err)
	}
	return b.String(), nil
}

// Terminal renders the markdown report with ANSI styling for a terminal of
// the given width.
func Terminal(result *domain.DistributionResult, currency string, width int) (string, error) {
	if width <= 0 {
		width = 100
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create terminal renderer: %w", err)
	}

	return r.Render(Markdown(result, currency))
}
