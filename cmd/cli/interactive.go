package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/kasa/internal/app"
	"github.com/iho/kasa/internal/report"
	"github.com/iho/kasa/internal/usecase"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// prompter reads answers line by line.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// ask prints label and returns the trimmed answer, or def when it is empty.
func (p *prompter) ask(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", promptStyle.Render(label), def)
	} else {
		fmt.Fprintf(p.out, "%s: ", promptStyle.Render(label))
	}

	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	if answer := strings.TrimSpace(line); answer != "" {
		return answer, nil
	}
	return def, nil
}

func (p *prompter) amount(label, def string) (decimal.Decimal, error) {
	for {
		answer, err := p.ask(label, def)
		if err != nil {
			return decimal.Zero, err
		}
		d, err := decimal.NewFromString(answer)
		if err == nil {
			return d, nil
		}
		fmt.Fprintf(p.out, "not a number: %q\n", answer)
	}
}

func (c *cli) interactiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Enter a month's figures at the prompt, review and close it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				p := &prompter{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout()}
				return runInteractive(cmd, a, p)
			})
		},
	}
}

func runInteractive(cmd *cobra.Command, a *app.App, p *prompter) error {
	ctx := cmd.Context()
	out := p.out

	fmt.Fprintln(out, titleStyle.Render("kasa: monthly distribution"))

	holders, err := a.Shareholders.List(ctx, false)
	if err != nil {
		return err
	}

	month, err := p.ask("Month (YYYY-MM)", time.Now().Format("2006-01"))
	if err != nil {
		return err
	}
	total, err := p.amount("Total cash", "")
	if err != nil {
		return err
	}
	keep, err := p.amount("Keep cash", "0")
	if err != nil {
		return err
	}

	advances := make(map[string]decimal.Decimal, len(holders))
	for _, h := range holders {
		advance, err := p.amount("Advance for "+h.Name, "0")
		if err != nil {
			return err
		}
		if !advance.IsZero() {
			advances[h.Name] = advance
		}
	}

	if _, err := a.Periods.Record(ctx, usecase.RecordPeriodInput{
		Month:     month,
		TotalCash: total,
		KeepCash:  keep,
		Advances:  advances,
		Actor:     cliActor,
	}); err != nil {
		return err
	}

	preview, err := a.Settlements.Preview(ctx, month)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	if err := report.WriteTable(out, preview); err != nil {
		return err
	}
	fmt.Fprintln(out)

	confirm, err := p.ask("Close "+month+"? (y/N)", "n")
	if err != nil {
		return err
	}
	if !strings.EqualFold(confirm, "y") && !strings.EqualFold(confirm, "yes") {
		fmt.Fprintf(out, "%s recorded, not closed\n", month)
		return nil
	}

	if _, err := a.Settlements.Close(ctx, usecase.ClosePeriodInput{Month: month, Actor: cliActor}); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s closed, carry updated\n", month)
	return nil
}
