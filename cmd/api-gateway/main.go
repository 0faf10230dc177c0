package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.uber.org/zap"

	"github.com/radieske/round-settlement-platform/internal/shared/config"
	"github.com/radieske/round-settlement-platform/internal/shared/logger"
)

func rp(to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil {
		return nil, err
	}
	return httputil.NewSingleHostReverseProxy(u), nil
}

// newMux monta as rotas do gateway. O proxy repassa o Authorization
// intacto: a validação do token de admin acontece no round-service.
func newMux(roundURL, walletURL, feedURL string) (*http.ServeMux, error) {
	round, err := rp(roundURL)
	if err != nil {
		return nil, err
	}
	wallet, err := rp(walletURL)
	if err != nil {
		return nil, err
	}
	feed, err := rp(feedURL)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	// rodadas e apostas (ex.: /api/rounds/* -> round-service /rounds/*)
	mux.Handle("/api/rounds", http.StripPrefix("/api", round))
	mux.Handle("/api/rounds/", http.StripPrefix("/api", round))
	mux.Handle("/api/users/", http.StripPrefix("/api", round))
	mux.Handle("/api/admin/", http.StripPrefix("/api", round))

	// wallet (ex.: /api/wallet/* -> wallet-service)
	mux.Handle("/api/wallet/", http.StripPrefix("/api/wallet", wallet))

	// feed websocket; ReverseProxy trata o upgrade
	mux.Handle("/ws", feed)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux, nil
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	mux, err := newMux(cfg.RoundURL, cfg.WalletURL, cfg.FeedURL)
	if err != nil {
		log.Fatal("invalid upstream url", zap.Error(err))
	}

	addr := ":" + cfg.HTTPPort
	log.Info("api-gateway listening",
		zap.String("addr", addr),
		zap.String("round", cfg.RoundURL),
		zap.String("wallet", cfg.WalletURL),
		zap.String("feed", cfg.FeedURL),
	)
	if err := http.ListenAndServe(addr, withCORS(mux)); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
