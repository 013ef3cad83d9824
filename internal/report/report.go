// Package report renders run output for the console and for notifications.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guregu/null/v6"

	"StockETL/internal/model"
)

// SampleRows is how many trailing rows a dry run prints.
const SampleRows = 10

// Summary describes one finished run.
type Summary struct {
	RunID          string
	Provider       string
	Sink           string // empty for a dry run
	Frequency      model.Frequency
	Tickers        int
	Quality        model.QualityReport
	DailyRows      int
	AggregatedRows int
	Outliers       int
	Duration       time.Duration
	LoadErr        error
}

// DryRun reports whether the run had no sink.
func (s Summary) DryRun() bool { return s.Sink == "" }

// WriteSample prints the last n enriched rows as an aligned table.
func WriteSample(w io.Writer, rows []model.EnrichedBar, n int) error {
	if n > len(rows) {
		n = len(rows)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "date\tticker\tclose\tsma_50\tvolatility_20d\tis_outlier\t")
	for _, r := range rows[len(rows)-n:] {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%s\t%s\t%t\t\n",
			r.Date.Format(time.DateOnly), r.Ticker, r.Close,
			formatNull(r.SMA50), formatNull(r.Volatility20d), r.IsOutlier)
	}
	return tw.Flush()
}

// WriteDryRun prints the sample followed by the aggregated row count.
func WriteDryRun(w io.Writer, rows []model.EnrichedBar, aggregated int) error {
	fmt.Fprintln(w, "Dry run: no database sink, showing sample output")
	if err := WriteSample(w, rows, SampleRows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nAggregated rows: %d\n", aggregated)
	return err
}

// WriteSummary prints a plain-text run summary.
func WriteSummary(w io.Writer, s Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s finished in %s\n", s.RunID, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "  provider:    %s (%d tickers)\n", s.Provider, s.Tickers)
	fmt.Fprintf(&b, "  raw rows:    %d\n", s.Quality.InitialRows)
	fmt.Fprintf(&b, "  missing:     %d cells\n", s.Quality.MissingValues)
	fmt.Fprintf(&b, "  negative:    %d rows\n", s.Quality.NegativePrices)
	fmt.Fprintf(&b, "  dropped:     %d rows\n", s.Quality.DroppedRows)
	fmt.Fprintf(&b, "  daily rows:  %d (%d outliers)\n", s.DailyRows, s.Outliers)
	fmt.Fprintf(&b, "  aggregated:  %d rows (%s)\n", s.AggregatedRows, s.Frequency)
	switch {
	case s.DryRun():
		b.WriteString("  sink:        none (dry run)\n")
	case s.LoadErr != nil:
		fmt.Fprintf(&b, "  sink:        %s FAILED: %v\n", s.Sink, s.LoadErr)
	default:
		fmt.Fprintf(&b, "  sink:        %s\n", s.Sink)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// FormatMessage formats the summary as a Telegram HTML message.
func FormatMessage(s Summary) string {
	var b strings.Builder

	status := "✅"
	if s.LoadErr != nil {
		status = "⚠️"
	}
	fmt.Fprintf(&b, "%s <b>StockETL run</b> | %s\n\n", status, time.Now().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Run: <code>%s</code>\n", s.RunID)
	fmt.Fprintf(&b, "Tickers: %d via %s\n", s.Tickers, s.Provider)
	fmt.Fprintf(&b, "Rows: %d raw, %d clean, %d dropped\n", s.Quality.InitialRows, s.DailyRows, s.Quality.DroppedRows)
	fmt.Fprintf(&b, "Outliers: %d\n", s.Outliers)
	fmt.Fprintf(&b, "Aggregated (%s): %d\n", s.Frequency, s.AggregatedRows)

	switch {
	case s.DryRun():
		b.WriteString("\nDry run, nothing persisted")
	case s.LoadErr != nil:
		fmt.Fprintf(&b, "\n<b>Load failed</b> (%s): %s", s.Sink, escapeHTML(s.LoadErr.Error()))
	default:
		fmt.Fprintf(&b, "\nLoaded into %s in %s", s.Sink, s.Duration.Round(time.Second))
	}
	return b.String()
}

func formatNull(f null.Float) string {
	if !f.Valid {
		return "NaN"
	}
	return fmt.Sprintf("%.4f", f.Float64)
}

func escapeHTML(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
