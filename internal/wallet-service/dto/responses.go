package dto

import "time"

type WalletResponse struct {
	UserID       string `json:"userId"`
	WalletID     string `json:"walletId"`
	BalanceCents int64  `json:"balance_cents"`
}

type LedgerEntry struct {
	ID            int64     `json:"id"`
	OperationType string    `json:"operation_type"`
	AmountCents   int64     `json:"amount_cents"`
	ExternalRef   string    `json:"external_ref"`
	CreatedAt     time.Time `json:"created_at"`
}

type LedgerResponse struct {
	UserID  string        `json:"userId"`
	Entries []LedgerEntry `json:"entries"`
}
