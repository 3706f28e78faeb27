package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type sampleRequest struct {
	Symbol  string `query:"symbol" validate:"required,ticker"`
	Horizon int    `query:"horizon" default:"1" validate:"gte=1,lte=30"`
}

func bindQuery(t *testing.T, query string) (sampleRequest, []ValidationError) {
	t.Helper()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?"+query, nil), httptest.NewRecorder())
	var req sampleRequest
	return req, ReadAndValidateRequest(c, &req)
}

func TestReadAndValidateRequestDefaults(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?symbol=BRK.B", nil), httptest.NewRecorder())
	var req sampleRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if req.Symbol != "BRK.B" || req.Horizon != 1 {
		t.Fatalf("req=%+v", req)
	}
}

func TestReadAndValidateRequestErrors(t *testing.T) {
	cases := map[string]struct {
		code, field string
	}{
		"":                        {"ERR_REQUIRED", "symbol"},
		"symbol=AA%20PL":          {"ERR_TICKER", "symbol"},
		"symbol=AAPL&horizon=31":  {"ERR_LTE", "horizon"},
		"symbol=AAPL&horizon=abc": {"ERR_BIND", ""},
	}
	for q, want := range cases {
		_, errs := bindQuery(t, q)
		if len(errs) != 1 {
			t.Errorf("%q: errors=%+v", q, errs)
			continue
		}
		if errs[0].Code != want.code || errs[0].Field != want.field {
			t.Errorf("%q: got %s/%s want %s/%s", q, errs[0].Code, errs[0].Field, want.code, want.field)
		}
	}
}
