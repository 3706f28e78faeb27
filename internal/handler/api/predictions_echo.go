package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"LutherTerminal/internal/domain/models"
	domrepo "LutherTerminal/internal/domain/repository"
	svcmetrics "LutherTerminal/internal/service/metrics"
	"LutherTerminal/internal/service/ratelimit"
	"LutherTerminal/internal/usecase"
	xhttp "LutherTerminal/pkg/http"
	xlogger "LutherTerminal/pkg/logger"
	xutil "LutherTerminal/pkg/util"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// TrainLimit is the per-client token bucket applied to POST /api/train.
type TrainLimit struct {
	Burst     float64
	PerSecond float64
}

// PredictionsEchoHandler exposes the prediction use cases over Echo.
type PredictionsEchoHandler struct {
	logger    *xlogger.Logger
	preds     *usecase.PredictionUseCase
	watchlist *usecase.WatchlistUseCase
	features  *usecase.FeaturesUseCase
	limiter   *ratelimit.Limiter
	limit     TrainLimit
}

func NewPredictionsEchoHandler(
	logger *xlogger.Logger,
	preds *usecase.PredictionUseCase,
	watchlist *usecase.WatchlistUseCase,
	features *usecase.FeaturesUseCase,
	limiter *ratelimit.Limiter,
	limit TrainLimit,
) *PredictionsEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	svcmetrics.Register()
	return &PredictionsEchoHandler{
		logger:    logger,
		preds:     preds,
		watchlist: watchlist,
		features:  features,
		limiter:   limiter,
		limit:     limit,
	}
}

func (h *PredictionsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/predict", h.Predict)
	if h.limiter != nil && h.limit.Burst > 0 {
		g.POST("/train", h.Train, h.limiter.Middleware(h.limit.Burst, h.limit.PerSecond))
	} else {
		g.POST("/train", h.Train)
	}
	g.GET("/importance", h.Importance)
	g.GET("/watchlist", h.Watchlist)
	g.GET("/features", h.Features)
	g.DELETE("/model", h.Forget)
	g.GET("/models", h.Models)
}

type predictionDTO struct {
	Symbol             string    `json:"symbol"`
	AsOf               time.Time `json:"as_of"`
	PredictedPrice     float64   `json:"predicted_price"`
	CurrentPrice       float64   `json:"current_price"`
	PredictedChange    float64   `json:"predicted_change"`
	PredictedChangePct float64   `json:"predicted_change_pct"`
	Confidence         float64   `json:"confidence"`
	DaysAhead          int       `json:"days_ahead"`
}

func toPredictionDTO(p models.PredictionResult) predictionDTO {
	return predictionDTO{
		Symbol:             p.Symbol,
		AsOf:               p.AsOf,
		PredictedPrice:     round(p.PredictedPrice, 4),
		CurrentPrice:       round(p.CurrentPrice, 4),
		PredictedChange:    round(p.PredictedChange, 4),
		PredictedChangePct: round(p.PredictedChangePct, 4),
		Confidence:         round(p.Confidence, 4),
		DaysAhead:          p.HorizonDays,
	}
}

type trainingDTO struct {
	Symbol          string  `json:"symbol"`
	Horizon         int     `json:"horizon"`
	Success         bool    `json:"success"`
	MSE             float64 `json:"mse"`
	R2Score         float64 `json:"r2_score"`
	TrainingSamples int     `json:"training_samples"`
	TestSamples     int     `json:"test_samples"`
	Error           string  `json:"error,omitempty"`
}

func toTrainingDTO(out models.TrainingOutcome) trainingDTO {
	return trainingDTO{
		Symbol:          out.Symbol,
		Horizon:         out.Horizon,
		Success:         out.Success,
		MSE:             round(out.MSE, 6),
		R2Score:         round(out.R2Score, 6),
		TrainingSamples: out.TrainingSamples,
		TestSamples:     out.TestSamples,
		Error:           out.Error,
	}
}

type modelDTO struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"tf"`
	Horizon   int    `json:"horizon"`
}

type importanceDTO struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

type watchlistDTO struct {
	Timestamp   time.Time                `json:"timestamp"`
	Horizon     int                      `json:"horizon"`
	Predictions map[string]predictionDTO `json:"predictions"`
	Errors      map[string]string        `json:"errors,omitempty"`
}

type featuresDTO struct {
	Symbol    string      `json:"symbol"`
	Timeframe string      `json:"tf"`
	From      time.Time   `json:"from"`
	To        time.Time   `json:"to"`
	Bars      int         `json:"bars"`
	Columns   []string    `json:"columns"`
	Times     []time.Time `json:"times"`
	Rows      [][]float64 `json:"rows"`
}

func (h *PredictionsEchoHandler) Predict(c echo.Context) error {
	start := time.Now()
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		svcmetrics.Observe("predict", start, "ERR_VALIDATION")
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.preds.Predict(c.Request().Context(), usecase.PredictParams{
		Symbol:    req.Symbol,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Horizon:   req.Horizon,
		N:         req.N,
	})
	if err != nil {
		return h.fail(c, "predict", start, err)
	}
	svcmetrics.Observe("predict", start, "")
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, toPredictionDTO(res))
}

func (h *PredictionsEchoHandler) Train(c echo.Context) error {
	start := time.Now()
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		svcmetrics.Observe("train", start, "ERR_VALIDATION")
		return xhttp.BadRequestResponse(c, verr)
	}

	out, err := h.preds.Train(c.Request().Context(), usecase.TrainParams{
		Symbol:    req.Symbol,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Horizon:   req.Horizon,
		N:         req.N,
	})
	if err != nil {
		if out.Error == "" {
			return h.fail(c, "train", start, err)
		}
		// a rejected run still answers with its outcome, under the mapped status
		appErr := toAppError(err)
		svcmetrics.Observe("train", start, appErr.Code)
		h.logger.Debug("train rejected", xlogger.Error(err))
		return xhttp.DataResponse(c, appErr.Status, toTrainingDTO(out))
	}
	svcmetrics.Observe("train", start, "")
	return xhttp.SuccessResponse(c, toTrainingDTO(out))
}

// Models lists the (symbol, timeframe) pairs holding a trained model.
func (h *PredictionsEchoHandler) Models(c echo.Context) error {
	start := time.Now()
	infos := h.preds.Models()
	out := make([]modelDTO, len(infos))
	for i, m := range infos {
		out[i] = modelDTO{Symbol: m.Symbol, Timeframe: string(m.Timeframe), Horizon: m.Horizon}
	}
	svcmetrics.Observe("models", start, "")
	return xhttp.ListResponse(c, out, int64(len(out)))
}

func (h *PredictionsEchoHandler) Importance(c echo.Context) error {
	start := time.Now()
	req := &models.ImportanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		svcmetrics.Observe("importance", start, "ERR_VALIDATION")
		return xhttp.BadRequestResponse(c, verr)
	}

	imp, err := h.preds.FeatureImportance(c.Request().Context(), req.Symbol, domrepo.NormalizeTimeframe(req.TF))
	if err != nil {
		return h.fail(c, "importance", start, err)
	}
	out := make([]importanceDTO, len(imp))
	for i, fi := range imp {
		out[i] = importanceDTO{Feature: fi.Feature, Importance: round(fi.Importance, 6)}
	}
	svcmetrics.Observe("importance", start, "")
	return xhttp.ListResponse(c, out, int64(len(out)))
}

func (h *PredictionsEchoHandler) Watchlist(c echo.Context) error {
	start := time.Now()
	req := &models.WatchlistRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		svcmetrics.Observe("watchlist", start, "ERR_VALIDATION")
		return xhttp.BadRequestResponse(c, verr)
	}
	symbols := xutil.SplitSymbols(req.Symbols)
	if len(symbols) == 0 {
		svcmetrics.Observe("watchlist", start, "ERR_VALIDATION")
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("symbols must name at least one ticker"))
	}

	res, err := h.watchlist.PredictMany(c.Request().Context(), usecase.PredictManyParams{
		Symbols:   symbols,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Horizon:   req.Horizon,
		N:         req.N,
	})
	if err != nil {
		return h.fail(c, "watchlist", start, err)
	}
	dto := watchlistDTO{
		Timestamp:   res.Timestamp,
		Horizon:     res.Horizon,
		Predictions: make(map[string]predictionDTO, len(res.Predictions)),
		Errors:      res.Errors,
	}
	for sym, p := range res.Predictions {
		dto.Predictions[sym] = toPredictionDTO(p)
	}
	svcmetrics.Observe("watchlist", start, "")
	return xhttp.SuccessResponse(c, dto)
}

func (h *PredictionsEchoHandler) Features(c echo.Context) error {
	start := time.Now()
	req := &models.FeaturesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		svcmetrics.Observe("features", start, "ERR_VALIDATION")
		return xhttp.BadRequestResponse(c, verr)
	}
	to := xhttp.ParseTimeDefault(req.To, time.Now().UTC())
	from := xhttp.ParseTimeDefault(req.From, to.AddDate(-1, 0, 0))
	if from.After(to) {
		svcmetrics.Observe("features", start, "ERR_BAD_REQUEST")
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must be <= to"))
	}

	res, err := h.features.GetFeatures(c.Request().Context(), usecase.GetFeaturesParams{
		Symbol:    req.Symbol,
		From:      from,
		To:        to,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
	})
	if err != nil {
		return h.fail(c, "features", start, err)
	}
	svcmetrics.Observe("features", start, "")
	return xhttp.SuccessResponse(c, featuresDTO{
		Symbol:    res.Symbol,
		Timeframe: res.Timeframe,
		From:      res.From,
		To:        res.To,
		Bars:      res.Bars,
		Columns:   res.Columns,
		Times:     res.Times,
		Rows:      res.Rows,
	})
}

func (h *PredictionsEchoHandler) Forget(c echo.Context) error {
	start := time.Now()
	req := &models.ImportanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		svcmetrics.Observe("forget", start, "ERR_VALIDATION")
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.preds.Forget(req.Symbol, domrepo.NormalizeTimeframe(req.TF)) {
		return h.fail(c, "forget", start, models.ErrModelNotTrained)
	}
	svcmetrics.Observe("forget", start, "")
	return xhttp.NoContentResponse(c)
}

// fail maps domain errors onto transport errors and writes the response.
func (h *PredictionsEchoHandler) fail(c echo.Context, endpoint string, start time.Time, err error) error {
	appErr := toAppError(err)
	svcmetrics.Observe(endpoint, start, appErr.Code)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
	} else {
		h.logger.Debug(endpoint+" rejected", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, models.ErrInsufficientData):
		return xhttp.UnprocessableError("ERR_INSUFFICIENT_DATA", models.ErrInsufficientData.Error()).WithError(err)
	case errors.Is(err, models.ErrFeatureUnavailable):
		return xhttp.UnprocessableError("ERR_FEATURE_UNAVAILABLE", models.ErrFeatureUnavailable.Error()).WithError(err)
	case errors.Is(err, models.ErrUpstreamData):
		return xhttp.BadGatewayError(models.ErrUpstreamData.Error()).WithError(err)
	case errors.Is(err, models.ErrModelNotTrained):
		return xhttp.NotFoundError(models.ErrModelNotTrained.Error()).WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.NewAppError("ERR_TIMEOUT", "", "request timed out", http.StatusGatewayTimeout).WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}

// round rounds half away from zero to the given decimal places.
func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
