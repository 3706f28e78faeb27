package models

// Requests for prediction HTTP endpoints. Defined in domain for consistency and reuse.

type PredictRequest struct {
	Symbol  string `query:"symbol" json:"symbol" validate:"required,ticker"`
	Horizon int    `query:"horizon" json:"horizon" default:"1" validate:"gte=1,lte=30"`
	N       int    `query:"n" json:"n" default:"250" validate:"gte=1,lte=5000"`
	TF      string `query:"tf" json:"tf" default:"1d" validate:"oneof=1m 1h 1d"`
}

type TrainRequest struct {
	Symbol  string `query:"symbol" json:"symbol" validate:"required,ticker"`
	Horizon int    `query:"horizon" json:"horizon" default:"1" validate:"gte=1,lte=30"`
	N       int    `query:"n" json:"n" default:"250" validate:"gte=1,lte=5000"`
	TF      string `query:"tf" json:"tf" default:"1d" validate:"oneof=1m 1h 1d"`
}

type ImportanceRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,ticker"`
	TF     string `query:"tf" json:"tf" default:"1d" validate:"oneof=1m 1h 1d"`
}

type WatchlistRequest struct {
	Symbols string `query:"symbols" json:"symbols" default:"AAPL,TSLA,NVDA" validate:"required"`
	Horizon int    `query:"horizon" json:"horizon" default:"1" validate:"gte=1,lte=30"`
	N       int    `query:"n" json:"n" default:"250" validate:"gte=1,lte=5000"`
	TF      string `query:"tf" json:"tf" default:"1d" validate:"oneof=1m 1h 1d"`
}

type FeaturesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,ticker"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	TF     string `query:"tf" json:"tf" default:"1d" validate:"oneof=1m 1h 1d"`
}
