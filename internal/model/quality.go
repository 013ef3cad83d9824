package model

// QualityReport summarises what the quality screen found.
type QualityReport struct {
	InitialRows    int `json:"initial_rows"`
	MissingValues  int `json:"missing_values"`
	NegativePrices int `json:"negative_prices"`
	DroppedRows    int `json:"dropped_rows"`
}
