package validator

import "StockETL/internal/model"

// CheckQuality drops rows without a full set of prices, then rows carrying a negative
// price, and reports what it saw. Surviving rows keep their input order.
func CheckQuality(table model.RawTable) ([]model.Bar, model.QualityReport) {
	report := model.QualityReport{
		InitialRows:   len(table.Rows),
		MissingValues: countMissing(table.Rows),
	}

	clean := make([]model.Bar, 0, len(table.Rows))
	for _, r := range table.Rows {
		if !r.Open.Valid || !r.High.Valid || !r.Low.Valid || !r.Close.Valid {
			continue
		}
		if r.Open.Float64 < 0 || r.High.Float64 < 0 || r.Low.Float64 < 0 || r.Close.Float64 < 0 {
			report.NegativePrices++
			continue
		}
		clean = append(clean, toBar(r))
	}

	report.DroppedRows = report.InitialRows - len(clean)
	return clean, report
}

// countMissing counts null cells across the required fields. Diagnostic only.
func countMissing(rows []model.RawBar) int {
	n := 0
	for _, r := range rows {
		if !r.Date.Valid {
			n++
		}
		if !r.Ticker.Valid || r.Ticker.String == "" {
			n++
		}
		for _, f := range []bool{r.Open.Valid, r.High.Valid, r.Low.Valid, r.Close.Valid, r.Volume.Valid} {
			if !f {
				n++
			}
		}
	}
	return n
}

func toBar(r model.RawBar) model.Bar {
	b := model.Bar{
		Ticker: r.Ticker.ValueOrZero(),
		Open:   r.Open.Float64,
		High:   r.High.Float64,
		Low:    r.Low.Float64,
		Close:  r.Close.Float64,
		Volume: r.Volume.ValueOrZero(),
	}
	if r.Date.Valid {
		b.Date = model.TradingDate(r.Date.Time)
	}
	return b
}
