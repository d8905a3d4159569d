package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/simaogato/navfolio-backend/internal/domain"
	"github.com/simaogato/navfolio-backend/internal/usecase/capitalgains"
	"github.com/simaogato/navfolio-backend/internal/usecase/portfolio"
	"github.com/simaogato/navfolio-backend/internal/usecase/pricesync"
	"github.com/simaogato/navfolio-backend/internal/usecase/simulator"
)

// nullStr renders a missing value as "-"
func nullStr(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.StringFixed(2)
}

func pctStr(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.StringFixed(2) + "%"
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	return table
}

func renderSummary(w io.Writer, s *portfolio.Summary) {
	table := newTable(w, "Fund", "Units", "Invested", "Value", "Profit", "Lifetime", "Abs %", "XIRR %", "NAV date", "")
	for _, f := range s.Funds {
		navDate := "-"
		if f.LatestNAVDate != nil {
			navDate = f.LatestNAVDate.Format(domain.DateFormat)
		}
		flag := ""
		switch {
		case f.Stale:
			flag = "stale"
		case f.Oversold:
			flag = "oversold"
		}
		table.Append([]string{
			f.FundID,
			f.UnitsHeld.StringFixed(3),
			money(f.Invested),
			money(f.CurrentValue),
			money(f.Profit),
			money(f.LifetimeProfit),
			pctStr(f.AbsoluteReturn),
			pctStr(f.XIRR),
			navDate,
			flag,
		})
	}
	table.SetFooter([]string{
		"Total", "",
		money(s.TotalInvested),
		money(s.CurrentValue),
		money(s.Profit),
		money(s.LifetimeProfit),
		pctStr(s.AbsoluteReturn),
		pctStr(s.XIRR),
		s.AsOf.Format(domain.DateFormat), "",
	})
	table.Render()
}

func renderFundSummary(w io.Writer, f *portfolio.FundSummary) {
	fmt.Fprintf(w, "%s  %s (%s)\n", f.FundID, f.FundName, f.FundType)
	if f.Stale {
		fmt.Fprintln(w, "warning: latest NAV is stale")
	}

	table := newTable(w, "Acquired", "Units", "Price", "Cost")
	for _, lot := range f.OpenLots {
		table.Append([]string{
			lot.AcquisitionDate.Format(domain.DateFormat),
			lot.UnitsRemaining.StringFixed(3),
			lot.AcquisitionPrice.StringFixed(4),
			money(lot.Cost()),
		})
	}
	table.SetFooter([]string{"Total", f.UnitsHeld.StringFixed(3), "", money(f.Invested)})
	table.Render()

	fmt.Fprintf(w, "Value %s  Profit %s  Lifetime %s  Abs %s  XIRR %s\n",
		money(f.CurrentValue), money(f.Profit), money(f.LifetimeProfit), pctStr(f.AbsoluteReturn), pctStr(f.XIRR))
}

func renderReturns(w io.Writer, fundID string, r domain.Returns) {
	header := make([]string, 0, len(r)+1)
	row := make([]string, 0, len(r)+1)
	header = append(header, "Fund")
	row = append(row, fundID)
	for _, wr := range r {
		header = append(header, wr.Key)
		row = append(row, pctStr(wr.Value))
	}
	table := newTable(w, header...)
	table.Append(row)
	table.Render()
}

func renderCapitalGains(w io.Writer, r *capitalgains.Result) {
	if !r.Applicable {
		fmt.Fprintf(w, "Capital gains not applicable: %s\n", r.Reason)
		return
	}

	fmt.Fprintf(w, "Sell on %s at %s\n", r.SellDate.Format(domain.DateFormat), r.SellPrice.String())
	table := newTable(w, "", "Gross gain", "Gross loss", "Net gain", "Exemption", "Taxable", "Rate %", "Tax")
	for _, b := range []struct {
		name string
		b    capitalgains.Bucket
	}{
		{"Short term", r.ShortTerm},
		{"Long term", r.LongTerm},
	} {
		table.Append([]string{
			b.name,
			money(b.b.GrossGain),
			money(b.b.GrossLoss),
			money(b.b.Gain),
			money(b.b.ExemptionLimit),
			money(b.b.TaxableGain),
			b.b.RatePercent.String(),
			money(b.b.Tax),
		})
	}
	table.SetFooter([]string{"Total", "", "", "", "", "", "", money(r.ShortTerm.Tax.Add(r.LongTerm.Tax))})
	table.Render()
}

func renderSimulation(w io.Writer, r *simulator.Result) {
	if len(r.MonthlyGrowth) > 0 {
		table := newTable(w, "Date", "Instalment", "Invested", "Units", "Corpus", "Profit", "Abs %")
		for _, g := range r.MonthlyGrowth {
			table.Append([]string{
				g.Date.Format(domain.DateFormat),
				nullStr(g.SIPAmount),
				money(g.Invested),
				g.Units.StringFixed(3),
				money(g.Corpus),
				money(g.Profit),
				pctStr(g.AbsoluteReturn),
			})
		}
		table.Render()
	}

	fmt.Fprintf(w, "%s %s: invested %s, corpus %s on %s, profit %s (%s), XIRR %s\n",
		r.Mode, r.FundID,
		money(r.AmountInvested), money(r.CorpusNow), r.ValuationDate.Format(domain.DateFormat),
		money(r.ExpectedProfit), pctStr(r.AbsoluteReturn), pctStr(r.XIRR))

	renderCapitalGains(w, &r.CapitalGains)
}

func renderTransactions(w io.Writer, txs []*domain.Transaction) {
	table := newTable(w, "Date", "Fund", "Type", "Units", "Price", "Amount", "Account")
	for _, tx := range txs {
		table.Append([]string{
			tx.TransactedAt.Format(domain.DateFormat),
			tx.FundID,
			string(tx.Type),
			tx.Units.StringFixed(3),
			tx.Price.StringFixed(4),
			money(tx.Amount()),
			tx.AccountID.String(),
		})
	}
	table.Render()
}

func renderSyncReport(w io.Writer, r pricesync.Report) {
	fmt.Fprintf(w, "updated %d, skipped %d, failed %d\n", r.Processed, r.Skipped, r.Failed)
	if len(r.Failures) == 0 {
		return
	}

	ids := make([]string, 0, len(r.Failures))
	for id := range r.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	table := newTable(w, "Fund", "Error")
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, id := range ids {
		table.Append([]string{id, r.Failures[id]})
	}
	table.Render()
}
