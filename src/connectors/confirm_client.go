package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"tradeanalyst/src/model"
	"tradeanalyst/src/watch"
)

type confirmRequest struct {
	TradeID      string  `json:"trade_id"`
	Symbol       string  `json:"symbol"`
	Bias         string  `json:"bias"`
	EntryMin     float64 `json:"entry_min"`
	EntryMax     float64 `json:"entry_max"`
	StopLoss     float64 `json:"stop_loss"`
	TP1          float64 `json:"tp1"`
	TP2          float64 `json:"tp2"`
	CurrentPrice float64 `json:"current_price"`
	Attempt      int     `json:"attempt"`
}

type confirmResponse struct {
	Confirmed bool   `json:"confirmed"`
	Reasoning string `json:"reasoning"`
}

// AnalysisClient asks the external analysis service for an entry verdict.
// Implements the coordinator's Checker; an unreachable service surfaces as
// an error so the attempt is not counted.
type AnalysisClient struct {
	http *resty.Client
}

func NewAnalysisClient(baseURL string, timeout time.Duration) *AnalysisClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "http://localhost:8100"
		logger.Warnf("No analysis base URL provided, using default: %s", baseURL)
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout)

	return &AnalysisClient{http: client}
}

func NewDefaultAnalysisClient() *AnalysisClient {
	cfg := GetConfig()
	return NewAnalysisClient(cfg.AnalysisBaseURL, cfg.RequestTimeout)
}

// ConfirmEntry runs one confirmation attempt against the analysis service.
func (c *AnalysisClient) ConfirmEntry(ctx context.Context, w *model.Watch, currentPrice float64) (watch.Verdict, error) {
	req := confirmRequest{
		TradeID:      w.TradeID,
		Symbol:       w.Symbol,
		Bias:         w.Setup.Bias,
		EntryMin:     w.Setup.EntryMin,
		EntryMax:     w.Setup.EntryMax,
		StopLoss:     w.Setup.StopLoss,
		TP1:          w.Setup.TP1,
		TP2:          w.Setup.TP2,
		CurrentPrice: currentPrice,
		Attempt:      w.AttemptsUsed + 1,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/confirm")
	if err != nil {
		return watch.Verdict{}, fmt.Errorf("POST /confirm: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return watch.Verdict{}, fmt.Errorf("POST /confirm: unexpected status %d. body: %s",
			resp.StatusCode(), resp.String())
	}

	var decoded confirmResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return watch.Verdict{}, fmt.Errorf("decode confirm response: %w", err)
	}

	return watch.Verdict{Confirmed: decoded.Confirmed, Reasoning: decoded.Reasoning}, nil
}
