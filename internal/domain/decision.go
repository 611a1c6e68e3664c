package domain

import "time"

// DecisionEvent is one entry of the decision trail.
type DecisionEvent struct {
	ID            string
	Code          string
	Time          time.Time
	Dex           string
	PoolID        string
	Mint          string
	Signature     string
	Filter        string
	Reason        string
	TokenName     string
	TokenSymbol   string
	FailedFilters []string
	Duration      time.Duration
}
