// Package simulator dirige rodadas de ponta a ponta contra os serviços em
// execução (gateway, wallet, feed). Serve para ambiente local e carga.
package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	rdto "github.com/radieske/round-settlement-platform/internal/round-service/dto"
	wdto "github.com/radieske/round-settlement-platform/internal/wallet-service/dto"
)

// Client fala com round-service e wallet-service via HTTP
type Client struct {
	RoundURL  string
	WalletURL string
	Token     string // bearer de admin
	HTTP      *http.Client
}

func New(roundURL, walletURL, token string) *Client {
	return &Client{
		RoundURL:  roundURL,
		WalletURL: walletURL,
		Token:     token,
		HTTP:      &http.Client{Timeout: 5 * time.Second},
	}
}

// StatusError carrega a resposta de erro do serviço
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string { return fmt.Sprintf("http %d: %s", e.Status, e.Body) }

func (c *Client) do(ctx context.Context, method, url string, admin bool, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return &StatusError{Status: res.StatusCode, Body: string(bytes.TrimSpace(b))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func (c *Client) Deposit(ctx context.Context, userID string, cents int64, ref string) (wdto.WalletResponse, error) {
	var out wdto.WalletResponse
	err := c.do(ctx, http.MethodPost, c.WalletURL+"/wallet/deposit", false,
		wdto.DepositRequest{UserID: userID, AmountCents: cents, ExternalRef: ref}, &out)
	return out, err
}

func (c *Client) CreateRound(ctx context.Context, start, end time.Time) (rdto.RoundView, error) {
	var out rdto.RoundView
	err := c.do(ctx, http.MethodPost, c.RoundURL+"/admin/rounds", true,
		rdto.CreateRoundRequest{StartTime: start, EndTime: end}, &out)
	return out, err
}

func (c *Client) Activate(ctx context.Context, roundID string) (rdto.RoundView, error) {
	var out rdto.RoundView
	err := c.do(ctx, http.MethodPost, c.RoundURL+"/admin/rounds/"+roundID+"/activate", true, nil, &out)
	return out, err
}

func (c *Client) PlaceBet(ctx context.Context, roundID, userID, value string, stake int64) error {
	return c.do(ctx, http.MethodPost, c.RoundURL+"/rounds/"+roundID+"/bets", false,
		rdto.PlaceBetRequest{UserID: userID, ChosenValue: value, StakeCents: stake}, nil)
}

func (c *Client) SubmitResult(ctx context.Context, roundID, result string) (rdto.SettlementResponse, error) {
	var out rdto.SettlementResponse
	err := c.do(ctx, http.MethodPost, c.RoundURL+"/admin/rounds/"+roundID+"/result", true,
		rdto.SubmitResultRequest{Result: result}, &out)
	return out, err
}

func (c *Client) Cancel(ctx context.Context, roundID string) (rdto.CancelResponse, error) {
	var out rdto.CancelResponse
	err := c.do(ctx, http.MethodPost, c.RoundURL+"/admin/rounds/"+roundID+"/cancel", true, nil, &out)
	return out, err
}
