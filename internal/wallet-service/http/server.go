package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/radieske/round-settlement-platform/internal/wallet-service/dto"
	"github.com/radieske/round-settlement-platform/internal/wallet-service/repo"
)

// Repo define a interface de operações de carteira usadas pelo handler HTTP.
// Créditos de prêmio e estorno não passam por aqui: acontecem dentro da
// transação do round-service via repo.TxLedger.
type Repo interface {
	GetOrCreateWallet(ctx context.Context, userID string) (walletID string, balance int64, err error)
	Deposit(ctx context.Context, userID string, amount int64, externalRef string) (walletID string, newBalance int64, err error)
	Ledger(ctx context.Context, userID string, limit int) ([]repo.Entry, error)
}

// Server expõe endpoints HTTP para operações de carteira (wallet)
type Server struct {
	log  *zap.Logger
	repo Repo
}

// NewServer instancia o servidor HTTP de wallet
func NewServer(log *zap.Logger, repo Repo) *Server { return &Server{log: log, repo: repo} }

// Router retorna o mux HTTP com as rotas da API de wallet
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/wallet", s.getWallet)       // GET ?userId=...
	mux.HandleFunc("/wallet/deposit", s.deposit) // POST
	mux.HandleFunc("/wallet/ledger", s.ledger)   // GET ?userId=...&limit=...
	return mux
}

// getWallet retorna (ou cria) a carteira e saldo do usuário
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	walletID, bal, err := s.repo.GetOrCreateWallet(r.Context(), userID)
	if err != nil {
		s.log.Error("get wallet", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.WalletResponse{UserID: userID, WalletID: walletID, BalanceCents: bal})
}

// deposit adiciona saldo à carteira do usuário
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.AmountCents <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	walletID, bal, err := s.repo.Deposit(r.Context(), req.UserID, req.AmountCents, req.ExternalRef)
	if err != nil {
		if errors.Is(err, repo.ErrInvalidAmount) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.log.Error("deposit", zap.String("user_id", req.UserID), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.log.Info("deposit applied",
		zap.String("user_id", req.UserID),
		zap.Int64("amount_cents", req.AmountCents),
		zap.String("external_ref", req.ExternalRef))
	writeJSON(w, dto.WalletResponse{UserID: req.UserID, WalletID: walletID, BalanceCents: bal})
}

// ledger lista os lançamentos da carteira (apostas, prêmios, estornos, depósitos)
func (s *Server) ledger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := s.repo.Ledger(r.Context(), userID, limit)
	if err != nil {
		s.log.Error("ledger", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := dto.LedgerResponse{UserID: userID, Entries: make([]dto.LedgerEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, dto.LedgerEntry{
			ID:            e.ID,
			OperationType: e.OperationType,
			AmountCents:   e.AmountCents,
			ExternalRef:   e.ExternalRef,
			CreatedAt:     e.CreatedAt,
		})
	}
	writeJSON(w, resp)
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
