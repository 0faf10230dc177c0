package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrAlreadySettled    = errors.New("round already settled")
	ErrAlreadyCancelled  = errors.New("round already cancelled")
	ErrMissingResult     = errors.New("missing result")
	ErrPersistence       = errors.New("persistence failure")

	ErrRoundNotFound     = errors.New("round not found")
	ErrInvalidWindow     = errors.New("end_time must be after start_time")
	ErrInvalidStake      = errors.New("invalid stake")
	ErrInvalidMultiplier = errors.New("invalid payout multiplier")
	ErrInvalidBet        = errors.New("invalid bet")
	ErrBettingClosed     = errors.New("betting closed")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// TransitionError descreve uma transição recusada pela máquina de estados,
// inclusive as recusas por janela de tempo.
type TransitionError struct {
	RoundID string
	From    Status
	To      Status
	Reason  string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("invalid transition %s -> %s for round %s", e.From, e.To, e.RoundID)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// PersistenceError indica que a unidade atômica não foi efetivada.
// Nenhum estado parcial fica visível; o chamador pode repetir com backoff.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func (e *PersistenceError) Unwrap() error { return e.Err }

var rejections = []error{
	ErrInvalidTransition,
	ErrAlreadySettled,
	ErrAlreadyCancelled,
	ErrMissingResult,
	ErrRoundNotFound,
	ErrInvalidWindow,
	ErrInvalidStake,
	ErrInvalidMultiplier,
	ErrInvalidBet,
	ErrBettingClosed,
	ErrInsufficientFunds,
}

// IsRejection diz se err é uma recusa de negócio (entrada inválida, corrida
// perdida) e não uma falha de infraestrutura.
func IsRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}

// IsNoop identifica as corridas de idempotência que o chamador trata como sucesso
func IsNoop(err error) bool {
	return errors.Is(err, ErrAlreadySettled) || errors.Is(err, ErrAlreadyCancelled)
}
