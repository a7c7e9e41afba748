package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nihalnihalani/EnrichedMMCP/internal/ingest"
	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

const dateLayout = "2006-01-02"

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func price(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}

func signedPct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

func writeLatestText(w io.Writer, latest domain.LatestPrices) error {
	fmt.Fprintf(w, "Prices on %s\n", latest.Date.Format(dateLayout))

	symbols := make([]string, 0, len(latest.Prices))
	for symbol := range latest.Prices {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, symbol := range symbols {
		value := "n/a"
		if p := latest.Prices[symbol]; p != nil {
			value = price(*p)
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", symbol, value)
	}
	return tw.Flush()
}

func writeAnalysisText(w io.Writer, r domain.AnalysisResult) error {
	_, err := fmt.Fprintf(w,
		"%s %s -> %s (%s, %s) over %d days\nvolatility %s, %s data points, %s to %s\n",
		r.Symbol,
		price(r.StartPrice),
		price(r.CurrentPrice),
		price(r.PriceChange),
		signedPct(r.PriceChangePct),
		r.PeriodDays,
		humanize.FormatFloat("#,###.####", r.Volatility),
		humanize.Comma(int64(r.DataPoints)),
		r.StartDate.Format(dateLayout),
		r.EndDate.Format(dateLayout),
	)
	return err
}

func writeComparisonText(w io.Writer, c domain.ComparisonResult) error {
	fmt.Fprintf(w, "Comparison over %d days: %s, %s\n", c.PeriodDays, c.Sentiment, c.Momentum)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tPRICE\tCHANGE\tVOLATILITY\t")
	for _, r := range c.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", r.Symbol, price(r.CurrentPrice), signedPct(r.PriceChangePct), humanize.FormatFloat("#,###.##", r.Volatility))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "average %s, up %d, down %d, flat %d\n",
		signedPct(c.AverageChangePct), c.Movements.Up, c.Movements.Down, c.Movements.Flat)
	fmt.Fprintf(w, "best %s (%s), worst %s (%s)\n",
		c.BestPerformer.Symbol, signedPct(c.BestPerformer.PriceChangePct),
		c.WorstPerformer.Symbol, signedPct(c.WorstPerformer.PriceChangePct))

	if len(c.Failures) > 0 {
		failed := make([]string, len(c.Failures))
		for i, f := range c.Failures {
			failed[i] = fmt.Sprintf("%s (%s)", f.Symbol, f.Reason)
		}
		fmt.Fprintf(w, "skipped %s\n", strings.Join(failed, ", "))
	}
	return nil
}

func writeIngestText(w io.Writer, path string, res ingest.Result) error {
	_, err := fmt.Fprintf(w, "loaded %s rows from %s in %s (%s dropped)\n",
		humanize.Comma(int64(res.Rows)), path, res.Duration.Round(time.Millisecond), humanize.Comma(int64(res.Dropped)))
	return err
}

type exportResult struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

func writeExportText(w io.Writer, res exportResult) error {
	_, err := fmt.Fprintf(w, "exported %s rows to %s\n", humanize.Comma(int64(res.Rows)), res.Path)
	return err
}
