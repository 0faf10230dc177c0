package domain

import "fmt"

// Status é o estado de uma rodada. O zero value é inválido de propósito:
// uma rodada sempre nasce como StatusScheduled.
type Status int

const (
	StatusScheduled Status = iota + 1
	StatusActive
	StatusCompleted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusScheduled:
		return "scheduled"
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Terminal indica que nenhuma transição é permitida a partir de s
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) Valid() bool {
	return s >= StatusScheduled && s <= StatusCancelled
}

// ParseStatus converte a representação textual (banco, JSON, query string)
func ParseStatus(v string) (Status, error) {
	switch v {
	case "scheduled":
		return StatusScheduled, nil
	case "active":
		return StatusActive, nil
	case "completed":
		return StatusCompleted, nil
	case "cancelled":
		return StatusCancelled, nil
	}
	return 0, fmt.Errorf("unknown round status %q", v)
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid round status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// CanTransition é a tabela de transições da rodada.
//
//	scheduled -> active | cancelled
//	active    -> completed | cancelled
//
// Estados terminais não saem de lugar nenhum.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusScheduled:
		return to == StatusActive || to == StatusCancelled
	case StatusActive:
		return to == StatusCompleted || to == StatusCancelled
	case StatusCompleted, StatusCancelled:
		return false
	}
	return false
}

// Outcome é o resultado de uma aposta individual
type Outcome int

const (
	OutcomePending Outcome = iota + 1
	OutcomeWon
	OutcomeLost
	OutcomeRefunded
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeWon:
		return "won"
	case OutcomeLost:
		return "lost"
	case OutcomeRefunded:
		return "refunded"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

func ParseOutcome(v string) (Outcome, error) {
	switch v {
	case "pending":
		return OutcomePending, nil
	case "won":
		return OutcomeWon, nil
	case "lost":
		return OutcomeLost, nil
	case "refunded":
		return OutcomeRefunded, nil
	}
	return 0, fmt.Errorf("unknown bet outcome %q", v)
}

func (o Outcome) MarshalText() ([]byte, error) {
	if o < OutcomePending || o > OutcomeRefunded {
		return nil, fmt.Errorf("invalid bet outcome %d", int(o))
	}
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(b []byte) error {
	v, err := ParseOutcome(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}
