package oracle_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/predix/prediction-engine/internal/oracle"
)

func TestHTTPSource_ReferenceData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reference_data" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("base_symbol") != "BTC" || r.URL.Query().Get("quote_symbol") != "USD" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rate":"50123.45","last_updated":1700000000}`))
	}))
	defer srv.Close()

	src := oracle.NewHTTPSource(srv.URL)
	data, err := src.ReferenceData(context.Background(), "BTC", "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !data.Rate.Equal(decimal.NewFromFloat(50123.45)) {
		t.Errorf("expected rate=50123.45, got %s", data.Rate)
	}
	if data.LastUpdated != 1700000000 {
		t.Errorf("expected last_updated=1700000000, got %d", data.LastUpdated)
	}
}

func TestHTTPSource_RejectsNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	src := oracle.NewHTTPSource(srv.URL)
	if _, err := src.ReferenceData(context.Background(), "BTC", "USD"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestHTTPSource_RejectsNegativeRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rate":"-1","last_updated":1700000000}`))
	}))
	defer srv.Close()

	src := oracle.NewHTTPSource(srv.URL)
	if _, err := src.ReferenceData(context.Background(), "BTC", "USD"); err == nil {
		t.Fatal("expected error for negative rate")
	}
}

func TestHTTPSource_RejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	src := oracle.NewHTTPSource(srv.URL)
	if _, err := src.ReferenceData(context.Background(), "BTC", "USD"); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestStatic(t *testing.T) {
	src := &oracle.Static{Rate: decimal.NewFromInt(42), LastUpdated: 99}
	data, err := src.ReferenceData(context.Background(), "BTC", "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !data.Rate.Equal(decimal.NewFromInt(42)) || data.LastUpdated != 99 {
		t.Errorf("unexpected data: %+v", data)
	}
}
