package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"tradeanalyst/src/model"
)

type mockWatchPoller struct {
	resp       *model.WatchPollResponse
	lastSymbol string
}

func (m *mockWatchPoller) PollWatch(symbol string) *model.WatchPollResponse {
	m.lastSymbol = symbol
	return m.resp
}

func TestWatchPollHandler_RequiresSymbol(t *testing.T) {
	handler := WatchPollHandler(&mockWatchPoller{})

	req := httptest.NewRequest(http.MethodGet, "/watch_trade", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestWatchPollHandler_Success(t *testing.T) {
	mock := &mockWatchPoller{resp: &model.WatchPollResponse{
		Status: model.PollStatusWatch, TradeID: "ab12cd34", ZoneLow: 195.0, ZoneHigh: 195.2,
	}}
	handler := WatchPollHandler(mock)

	req := httptest.NewRequest(http.MethodGet, "/watch_trade?symbol=GBPJPY", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if mock.lastSymbol != "GBPJPY" {
		t.Fatalf("expected symbol GBPJPY, got %s", mock.lastSymbol)
	}
	assert.Contains(t, rr.Body.String(), "ab12cd34")
}

type mockEntryConfirmer struct {
	resp    *model.ConfirmEntryResponse
	lastReq *model.ConfirmEntryRequest
}

func (m *mockEntryConfirmer) ConfirmEntry(ctx context.Context, req *model.ConfirmEntryRequest) *model.ConfirmEntryResponse {
	m.lastReq = req
	return m.resp
}

func TestConfirmEntryHandler_RejectsInvalidPayload(t *testing.T) {
	handler := ConfirmEntryHandler(&mockEntryConfirmer{})

	// Missing current_price fails validation.
	body := `{"trade_id":"ab12cd34","symbol":"GBPJPY","bias":"long"}`
	req := httptest.NewRequest(http.MethodPost, "/confirm_entry", strings.NewReader(body))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestConfirmEntryHandler_Success(t *testing.T) {
	mock := &mockEntryConfirmer{resp: &model.ConfirmEntryResponse{
		Confirmed: true, Reasoning: "structure aligned", RemainingAttempts: 1,
	}}
	handler := ConfirmEntryHandler(mock)

	body := `{"trade_id":"ab12cd34","symbol":"GBPJPY","bias":"long","current_price":195.1}`
	req := httptest.NewRequest(http.MethodPost, "/confirm_entry", strings.NewReader(body))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if mock.lastReq.CurrentPrice != 195.1 {
		t.Fatalf("expected price 195.1, got %v", mock.lastReq.CurrentPrice)
	}
	assert.Contains(t, rr.Body.String(), "structure aligned")
}
