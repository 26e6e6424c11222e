package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/pricelens/backend/internal/domain"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(w io.Writer, result *domain.PriceResult) error {
	p := result.Product
	fmt.Fprintf(w, "%s", p.CanonicalName)
	if p.Brand != "" {
		fmt.Fprintf(w, " (%s)", p.Brand)
	}
	fmt.Fprintf(w, "  [%s, %s confidence]\n\n", p.Source, p.Confidence)

	if len(result.Offers) == 0 {
		fmt.Fprintln(w, "No offers found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STORE\tPRICE\tSHIPPING\tTOTAL\tNAME")
	for _, o := range result.Offers {
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\t%s\n",
			o.Platform,
			o.Currency, o.Price.StringFixed(2),
			o.Shipping.StringFixed(2),
			o.Total().StringFixed(2),
			truncate(o.Name, 60),
		)
	}
	return tw.Flush()
}

func printHistory(w io.Writer, entries []domain.HistoryEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No searches recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tPRODUCT\tSOURCE\tOFFERS\tBEST")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			e.SearchedAt.Local().Format(time.DateTime),
			truncate(e.ProductName, 50),
			e.Source,
			e.OfferCount,
			e.BestPrice.StringFixed(2),
		)
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
