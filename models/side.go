package models

import (
	"encoding/json"

	"exchange-core-service/staticerr"
)

// Side is which half of a cryptopair an order trades: a buy acquires base
// currency by disposing quote, a sell disposes base for quote.
type Side int

const (
	SideBuy Side = iota + 1
	SideSell
)

func ParseSide(value string) (Side, error) {
	switch value {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	default:
		return 0, staticerr.ErrorInvalidSide
	}
}

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

func (s Side) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, staticerr.ErrorInvalidSide
	}
	return json.Marshal(s.String())
}

func (s *Side) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}

	parsed, err := ParseSide(value)
	if err != nil {
		return err
	}

	*s = parsed
	return nil
}
