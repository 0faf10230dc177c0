package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/round-settlement-platform/internal/round-service/domain"
	"github.com/radieske/round-settlement-platform/internal/round-service/dto"
	"github.com/radieske/round-settlement-platform/internal/round-service/engine"
	"github.com/radieske/round-settlement-platform/internal/round-service/report"
)

// Engine é o que a API usa do motor de rodadas
type Engine interface {
	Now() time.Time
	CreateRound(ctx context.Context, start, end time.Time, multiplier *decimal.Decimal) (domain.Round, error)
	Activate(ctx context.Context, roundID string) (domain.Round, error)
	Cancel(ctx context.Context, roundID string) (domain.Round, error)
	SubmitResult(ctx context.Context, roundID, result string) (domain.Round, domain.Summary, error)
	PlaceBet(ctx context.Context, req engine.PlaceBetRequest) (domain.Bet, error)
	GetRound(ctx context.Context, roundID string) (domain.Round, error)
	ListRounds(ctx context.Context, f engine.RoundFilter) ([]domain.Round, error)
	Overdue(ctx context.Context) ([]domain.Round, error)
	RoundBets(ctx context.Context, roundID string) ([]domain.Bet, error)
	OwnerBets(ctx context.Context, ownerID string, limit int) ([]domain.Bet, error)
}

// RoundCache é opcional; só acelera GET /rounds/{id}.
// Leitura preenche a entrada e toda mutação a remove.
type RoundCache interface {
	GetRound(ctx context.Context, id string) (domain.Round, bool, error)
	SetRound(ctx context.Context, r domain.Round) error
	Invalidate(ctx context.Context, id string) error
}

// API expõe a superfície de administração e o caminho de apostas
type API struct {
	Log         *zap.Logger
	Engine      Engine
	Cache       RoundCache // pode ser nil
	AdminSecret []byte
}

// Router monta as rotas públicas e o grupo /admin protegido por JWT
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/rounds", a.listActive)                // Rodadas abertas para aposta
	r.Get("/rounds/{id}", a.getRound)             // Visão da rodada (com countdown)
	r.Post("/rounds/{id}/bets", a.placeBet)       // Registra aposta
	r.Get("/users/{userId}/bets", a.listUserBets) // Apostas de um usuário

	r.Route("/admin", func(ar chi.Router) {
		ar.Use(RequireAdmin(a.AdminSecret, a.Log))
		ar.Post("/rounds", a.createRound)
		ar.Get("/rounds", a.listRounds)
		ar.Get("/rounds/overdue", a.listOverdue)
		ar.Post("/rounds/{id}/activate", a.activate)
		ar.Post("/rounds/{id}/cancel", a.cancel)
		ar.Post("/rounds/{id}/result", a.submitResult)
		ar.Get("/rounds/{id}/bets", a.roundBets)
		ar.Get("/rounds/{id}/stats", a.roundStats)
		ar.Get("/rounds/{id}/winners", a.roundWinners)
	})
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(msg, code string) dto.ErrorResponse {
	return dto.ErrorResponse{Error: msg, Code: code}
}

// writeError traduz o erro tipado do motor em status HTTP
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, domain.ErrRoundNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrBettingClosed):
		status, code = http.StatusConflict, "betting_closed"
	case errors.Is(err, domain.ErrMissingResult):
		status, code = http.StatusBadRequest, "missing_result"
	case errors.Is(err, domain.ErrInvalidWindow),
		errors.Is(err, domain.ErrInvalidStake),
		errors.Is(err, domain.ErrInvalidMultiplier),
		errors.Is(err, domain.ErrInvalidBet):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrInsufficientFunds):
		status, code = http.StatusPaymentRequired, "insufficient_funds"
	case errors.Is(err, domain.ErrPersistence):
		// unidade atômica não efetivada; cliente pode repetir
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorBody("temporarily unavailable, retry", "persistence"))
		return
	}
	if status == http.StatusInternalServerError {
		a.Log.Error("unexpected error", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, errorBody(err.Error(), code))
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("bad json", "invalid_request"))
		return false
	}
	return true
}

func queryLimit(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 || n > 500 {
		return def
	}
	return n
}

func (a *API) view(round domain.Round) dto.RoundView {
	return dto.NewRoundView(round, a.Engine.Now())
}

// invalidate remove a visão em cache após uma mutação confirmada
func (a *API) invalidate(ctx context.Context, id string) {
	if a.Cache == nil {
		return
	}
	if err := a.Cache.Invalidate(ctx, id); err != nil {
		a.Log.Warn("round cache invalidate failed", zap.String("round_id", id), zap.Error(err))
	}
}

// getRound retorna a rodada, preferencialmente do cache
func (a *API) getRound(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if a.Cache != nil {
		if round, ok, _ := a.Cache.GetRound(r.Context(), id); ok {
			writeJSON(w, http.StatusOK, dto.NewRoundView(round, a.Engine.Now()))
			return
		}
	}
	round, err := a.Engine.GetRound(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if a.Cache != nil {
		if err := a.Cache.SetRound(r.Context(), round); err != nil {
			a.Log.Warn("round cache set failed", zap.String("round_id", id), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, a.view(round))
}

func (a *API) listActive(w http.ResponseWriter, r *http.Request) {
	st := domain.StatusActive
	rs, err := a.Engine.ListRounds(r.Context(), engine.RoundFilter{Status: &st, Limit: queryLimit(r, 50)})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewRoundViews(rs, a.Engine.Now()))
}

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if !decode(w, r, &req) {
		return
	}
	bet, err := a.Engine.PlaceBet(r.Context(), engine.PlaceBetRequest{
		RoundID:     chi.URLParam(r, "id"),
		OwnerID:     req.UserID,
		ChosenValue: req.ChosenValue,
		StakeCents:  req.StakeCents,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

func (a *API) listUserBets(w http.ResponseWriter, r *http.Request) {
	bets, err := a.Engine.OwnerBets(r.Context(), chi.URLParam(r, "userId"), queryLimit(r, 100))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if bets == nil {
		bets = []domain.Bet{}
	}
	writeJSON(w, http.StatusOK, bets)
}

func (a *API) createRound(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRoundRequest
	if !decode(w, r, &req) {
		return
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		writeJSON(w, http.StatusBadRequest, errorBody("start_time and end_time are required", "invalid_request"))
		return
	}
	round, err := a.Engine.CreateRound(r.Context(), req.StartTime, req.EndTime, req.PayoutMultiplier)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.audit(r, "create", round.ID)
	writeJSON(w, http.StatusCreated, a.view(round))
}

func (a *API) listRounds(w http.ResponseWriter, r *http.Request) {
	f := engine.RoundFilter{Limit: queryLimit(r, 100)}
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := domain.ParseStatus(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error(), "invalid_request"))
			return
		}
		f.Status = &st
	}
	rs, err := a.Engine.ListRounds(r.Context(), f)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewRoundViews(rs, a.Engine.Now()))
}

func (a *API) listOverdue(w http.ResponseWriter, r *http.Request) {
	rs, err := a.Engine.Overdue(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewRoundViews(rs, a.Engine.Now()))
}

func (a *API) activate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	round, err := a.Engine.Activate(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.invalidate(r.Context(), id)
	a.audit(r, "activate", id)
	writeJSON(w, http.StatusOK, a.view(round))
}

func (a *API) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	round, err := a.Engine.Cancel(r.Context(), id)
	if errors.Is(err, domain.ErrAlreadyCancelled) {
		a.noop(w, r, id, func(v dto.RoundView) any { return dto.CancelResponse{Round: v, Noop: true} })
		return
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.invalidate(r.Context(), id)
	a.audit(r, "cancel", id)
	writeJSON(w, http.StatusOK, dto.CancelResponse{Round: a.view(round)})
}

func (a *API) submitResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req dto.SubmitResultRequest
	if !decode(w, r, &req) {
		return
	}
	round, sum, err := a.Engine.SubmitResult(r.Context(), id, req.Result)
	if errors.Is(err, domain.ErrAlreadySettled) {
		a.noop(w, r, id, func(v dto.RoundView) any { return dto.SettlementResponse{Round: v, Noop: true} })
		return
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.invalidate(r.Context(), id)
	a.audit(r, "settle", id, zap.String("result", *round.Result))
	writeJSON(w, http.StatusOK, dto.SettlementResponse{Round: a.view(round), Summary: &sum})
}

// noop responde 200 com o estado atual: pedido duplicado não é erro para o operador
func (a *API) noop(w http.ResponseWriter, r *http.Request, id string, body func(dto.RoundView) any) {
	round, err := a.Engine.GetRound(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, body(a.view(round)))
}

func (a *API) roundBets(w http.ResponseWriter, r *http.Request) {
	bets, err := a.Engine.RoundBets(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if bets == nil {
		bets = []domain.Bet{}
	}
	writeJSON(w, http.StatusOK, bets)
}

func (a *API) roundStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	round, err := a.Engine.GetRound(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	bets, err := a.Engine.RoundBets(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Stats(round, bets))
}

func (a *API) roundWinners(w http.ResponseWriter, r *http.Request) {
	bets, err := a.Engine.RoundBets(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Winners(bets))
}

func (a *API) audit(r *http.Request, op, roundID string, extra ...zap.Field) {
	fields := append([]zap.Field{
		zap.String("op", op),
		zap.String("round_id", roundID),
		zap.String("admin", AdminFrom(r.Context())),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	}, extra...)
	a.Log.Info("admin action", fields...)
}
