package report

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/iho/kasa/internal/domain"
)

// Headers are the column titles of a distribution table.
var Headers = []string{"Name", "Percent", "Entitlement", "Advance", "Prior carry", "Paid", "New carry"}

// Rows returns the table cells of result, one row per shareholder.
func Rows(result *domain.DistributionResult) [][]string {
	rows := make([][]string, 0, len(result.Rows))
	for _, r := range result.Rows {
		rows = append(rows, []string{
			r.Name,
			Percent(r.Percent),
			Amount(r.Entitlement),
			Amount(r.Advance),
			Amount(r.PrevCarry),
			Amount(r.Paid),
			Amount(r.NewCarry),
		})
	}
	return rows
}

// Totals returns the summary line printed under a table.
func Totals(result *domain.DistributionResult) string {
	return fmt.Sprintf("Total entitlement: %s | Total paid: %s | Distributable: %s",
		Amount(result.TotalEntitlement), Amount(result.TotalPaid), Amount(result.Distributable))
}

// WriteTable writes result as a left-aligned text table followed by the
// totals line.
func WriteTable(w io.Writer, result *domain.DistributionResult) error {
	rows := Rows(result)

	widths := make([]int, len(Headers))
	for i, h := range Headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	header := joinPadded(Headers, widths)
	rule := strings.Repeat("-", utf8.RuneCountInString(header))

	var b strings.Builder
	b.WriteString(header + "\n")
	b.WriteString(rule + "\n")
	for _, row := range rows {
		b.WriteString(joinPadded(row, widths) + "\n")
	}
	b.WriteString(rule + "\n")
	b.WriteString(Totals(result) + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func joinPadded(cells []string, widths []int) string {
	padded := make([]string, len(cells))
	for i, c := range cells {
		padded[i] = c + strings.Repeat(" ", widths[i]-utf8.RuneCountInString(c))
	}
	return strings.Join(padded, " | ")
}
