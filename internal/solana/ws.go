package solana

import "context"

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeLogs subscribes to program logs matching the filter.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)

	// SubscribeProgram subscribes to account changes of accounts owned by a program.
	SubscribeProgram(ctx context.Context, filter ProgramFilter) (<-chan AccountNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// LogsFilter defines subscription filter for logs.
type LogsFilter struct {
	// Mentions filters logs that mention any of these program IDs.
	Mentions []string
}

// LogNotification represents a logs subscription message.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{}
}

// ProgramFilter defines a programSubscribe subscription.
type ProgramFilter struct {
	ProgramID string
	// DataSize restricts notifications to accounts of this data length. 0 disables it.
	DataSize uint64
}

// AccountNotification represents a program account change.
type AccountNotification struct {
	Pubkey  string
	Slot    int64
	Account AccountInfo
}
