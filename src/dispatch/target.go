package dispatch

import (
	"context"

	"eabridge/src/externalmodel"
	"eabridge/src/model"
)

// Inbox receives raw frames from the execution target. It must not block.
type Inbox func(raw []byte)

// Target opens automation sessions on the broker web terminal.
type Target interface {
	Open(ctx context.Context, req externalmodel.SessionRequest, inbox Inbox) (Session, error)
}

// Session is one open automation surface, owned by a single execution request.
// Release tears it down (storage, cache, cookies) and must be safe to call twice.
type Session interface {
	Send(ctx context.Context, cmd externalmodel.TerminalCommand) error
	Release(ctx context.Context) error
}

// SymbolResolver is the read side of the symbol store.
type SymbolResolver interface {
	Resolve(symbol string) (model.SymbolConfig, bool)
}

// AccountStore is the account persistence the coordinator reads and, for the
// connected flag only, writes.
type AccountStore interface {
	FindByPlatform(ctx context.Context, platform model.Platform) (*model.Account, error)
	SetConnected(ctx context.Context, platform model.Platform, connected bool) error
}

// CredentialOpener unseals stored secrets.
type CredentialOpener interface {
	Open(sealed string) (string, error)
}

// OutcomeRecorder persists how requests ended.
type OutcomeRecorder interface {
	Create(ctx context.Context, entry *model.ExecutionLog) error
}
