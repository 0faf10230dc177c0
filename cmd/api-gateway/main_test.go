package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func upstream(t *testing.T, name string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, name+" "+r.URL.Path+" "+r.Header.Get("Authorization"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGatewayRoutes(t *testing.T) {
	round, wallet, feed := upstream(t, "round"), upstream(t, "wallet"), upstream(t, "feed")
	mux, err := newMux(round.URL, wallet.URL, feed.URL)
	if err != nil {
		t.Fatal(err)
	}
	gw := httptest.NewServer(withCORS(mux))
	defer gw.Close()

	tests := []struct {
		path string
		want string
	}{
		{"/api/rounds", "round /rounds Bearer x"},
		{"/api/rounds/r1/bets", "round /rounds/r1/bets Bearer x"},
		{"/api/users/u1/bets", "round /users/u1/bets Bearer x"},
		{"/api/admin/rounds/r1/result", "round /admin/rounds/r1/result Bearer x"},
		{"/api/wallet/wallet", "wallet /wallet Bearer x"},
		{"/ws", "feed /ws Bearer x"},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(http.MethodGet, gw.URL+tt.path, nil)
		req.Header.Set("Authorization", "Bearer x")
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		b, _ := io.ReadAll(res.Body)
		res.Body.Close()
		if string(b) != tt.want {
			t.Errorf("%s -> %q, want %q", tt.path, b, tt.want)
		}
	}
}

func TestGatewayPreflight(t *testing.T) {
	mux, _ := newMux("http://round", "http://wallet", "http://feed")
	rec := httptest.NewRecorder()
	withCORS(mux).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/rounds", nil))
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", rec.Code, rec.Header())
	}
}
