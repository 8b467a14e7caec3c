package ports

import (
	"context"

	"github.com/stanfordssi/sats-inventory/internal/domain/repository"
)

// Repos bundles the repositories bound to one database transaction.
type Repos struct {
	Parts        repository.PartRepository
	Boards       repository.BoardRepository
	Transactions repository.TransactionRepository
	Builds       repository.BuildRepository
	Users        repository.UserRepository
}

// TxRunner runs fn inside a database transaction with repositories bound to it.
// A nil return commits; any error rolls back, so fn's writes are all-or-nothing.
type TxRunner interface {
	Run(ctx context.Context, fn func(r Repos) error) error
	// RunSerializable is Run at SERIALIZABLE isolation. Serialization failures and
	// deadlocks come back wrapped in domain.ErrConcurrentConflict.
	RunSerializable(ctx context.Context, fn func(r Repos) error) error
}
