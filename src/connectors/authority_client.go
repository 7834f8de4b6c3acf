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

	"tradeanalyst/src/auth"
	"tradeanalyst/src/model"
)

// AuthorityClient is the agent's side of the polling contract. Every call
// is stateless; a lost response is recovered by the next poll.
type AuthorityClient struct {
	http *resty.Client
}

func NewAuthorityClient(baseURL, agentKey string, timeout time.Duration, retryCount int) *AuthorityClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "http://localhost:8000"
		logger.Warnf("No authority base URL provided, using default: %s", baseURL)
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(8 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	if agentKey != "" {
		client.SetHeader(auth.HeaderAgentKey, agentKey)
	}

	return &AuthorityClient{http: client}
}

func NewDefaultAuthorityClient() *AuthorityClient {
	cfg := GetConfig()
	return NewAuthorityClient(cfg.AuthorityBaseURL, cfg.AgentKey, cfg.RequestTimeout, cfg.RetryCount)
}

func (c *AuthorityClient) getJSON(ctx context.Context, path string, query map[string]string, out interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("GET %s: unexpected status %d. body: %s",
			path, resp.StatusCode(), resp.String())
	}
	return json.Unmarshal(resp.Body(), out)
}

func (c *AuthorityClient) postJSON(ctx context.Context, path string, body, out interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("POST %s: unexpected status %d. body: %s",
			path, resp.StatusCode(), resp.String())
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(resp.Body(), out)
}

// PollWatch asks whether a watch is active for the instrument.
func (c *AuthorityClient) PollWatch(ctx context.Context, symbol string) (*model.WatchPollResponse, error) {
	var out model.WatchPollResponse
	err := c.getJSON(ctx, "/watch_trade", map[string]string{"symbol": symbol}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmEntry reports a zone touch and returns the attempt's verdict.
func (c *AuthorityClient) ConfirmEntry(ctx context.Context, req *model.ConfirmEntryRequest) (*model.ConfirmEntryResponse, error) {
	var out model.ConfirmEntryResponse
	if err := c.postJSON(ctx, "/confirm_entry", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PollPending asks for a confirmed trade awaiting execution.
func (c *AuthorityClient) PollPending(ctx context.Context, symbol string) (*model.PendingPollResponse, error) {
	var out model.PendingPollResponse
	err := c.getJSON(ctx, "/pending_trade", map[string]string{"symbol": symbol}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ReportExecution delivers the execution report. Safe to repeat.
func (c *AuthorityClient) ReportExecution(ctx context.Context, report *model.ExecutionReport) (*model.Ack, error) {
	var out model.Ack
	if err := c.postJSON(ctx, "/trade_executed", report, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReportClose delivers one leg's close report. Safe to repeat.
func (c *AuthorityClient) ReportClose(ctx context.Context, report *model.CloseReport) (*model.Ack, error) {
	var out model.Ack
	if err := c.postJSON(ctx, "/trade_closed", report, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReportStopMove mirrors a local stop modification to the authority.
func (c *AuthorityClient) ReportStopMove(ctx context.Context, report *model.StopMoveReport) (*model.Ack, error) {
	var out model.Ack
	if err := c.postJSON(ctx, "/update_stop", report, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OpenTrades lists positions the authority still believes are live.
func (c *AuthorityClient) OpenTrades(ctx context.Context, symbol string) (*model.OpenTradesResponse, error) {
	query := map[string]string{}
	if symbol != "" {
		query["symbol"] = symbol
	}

	var out model.OpenTradesResponse
	if err := c.getJSON(ctx, "/open_trades", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
