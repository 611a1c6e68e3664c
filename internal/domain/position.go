package domain

import (
	"errors"
	"fmt"
	"time"
)

// PositionStatus is the lifecycle state of a trading position.
type PositionStatus string

const (
	StatusBuying     PositionStatus = "buying"
	StatusMonitoring PositionStatus = "monitoring"
	StatusSelling    PositionStatus = "selling"
	StatusSold       PositionStatus = "sold"
	StatusAbandoned  PositionStatus = "abandoned"
)

// ErrInvalidTransition is returned when a status change would move a
// position backwards or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid position transition")

// rank orders statuses. Sold and abandoned share the terminal rank.
func (s PositionStatus) rank() int {
	switch s {
	case StatusBuying:
		return 0
	case StatusMonitoring:
		return 1
	case StatusSelling:
		return 2
	case StatusSold, StatusAbandoned:
		return 3
	}
	return -1
}

// String returns the string representation of PositionStatus.
func (s PositionStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is allowed.
func (s PositionStatus) IsTerminal() bool {
	return s == StatusSold || s == StatusAbandoned
}

// IsValid checks if the status is a known value.
func (s PositionStatus) IsValid() bool {
	return s.rank() >= 0
}

// Allows reports whether a stored position may be overwritten with status
// next. Repeating the current status is allowed so amounts can be filled in.
func (s PositionStatus) Allows(next PositionStatus) bool {
	if !next.IsValid() {
		return false
	}
	if s.IsTerminal() {
		return next == s
	}
	return next.rank() >= s.rank()
}

// TradingPosition tracks one bought token from confirmation to exit.
// Amounts are smallest units: lamports for quote, raw units for the token.
type TradingPosition struct {
	ID          string
	Pool        DetectedPool
	BuyTxID     string
	BuyPrice    uint64 // lamports paid per whole token, 0 when unknown
	QuoteAmount uint64 // lamports spent
	TokenAmount uint64 // raw token units received
	OpenedAt    time.Time

	SellTxID  string
	SellPrice uint64 // lamports received
	ClosedAt  time.Time

	Status PositionStatus
}

// Advance moves the position to next. Transitions only go forward and never
// leave a terminal status.
func (p *TradingPosition) Advance(next PositionStatus) error {
	if !next.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}
	if p.Status.IsTerminal() || next.rank() <= p.Status.rank() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, next)
	}
	p.Status = next
	if next.IsTerminal() {
		p.ClosedAt = time.Now()
	}
	return nil
}
