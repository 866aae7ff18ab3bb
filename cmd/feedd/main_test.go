package main

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tradedeck/marketfeed/internal/feed"
)

func testHandler() http.Handler {
	sess := feed.NewSession(feed.DefaultConfig(), nil)
	return createHandler(sess, nil, nil, slog.Default())
}

func TestTicksHandler_BadLimit(t *testing.T) {
	h := testHandler()

	req := httptest.NewRequest(http.MethodGet, "/ticks?symbol=NIFTY&limit=abc", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestTicksHandler_ValidLimit(t *testing.T) {
	h := testHandler()

	req := httptest.NewRequest(http.MethodGet, "/ticks?symbol=NIFTY&limit=5", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestSubscribeHandler_MissingSymbol(t *testing.T) {
	h := testHandler()

	req := httptest.NewRequest(http.MethodPost, "/subscribe", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
