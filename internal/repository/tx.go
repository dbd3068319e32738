package repository

import (
	"context"

	"gorm.io/gorm"
)

// TxManager runs a unit of work atomically. Repositories called with the
// context handed to fn join the transaction.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	// AfterCommit runs fn once the surrounding transaction commits, or
	// immediately when ctx carries no transaction.
	AfterCommit(ctx context.Context, fn func())
}

type txKey struct{}

type txState struct {
	tx    *gorm.DB
	hooks []func()
}

// gormTxManager implements TxManager on top of gorm transactions
type gormTxManager struct {
	db *gorm.DB
}

// NewTxManager creates a new TxManager instance
func NewTxManager(db *gorm.DB) TxManager {
	return &gormTxManager{db: db}
}

func (m *gormTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}

	state := &txState{}
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state.tx = tx
		return fn(context.WithValue(ctx, txKey{}, state))
	})
	if err != nil {
		return err
	}

	for _, hook := range state.hooks {
		hook()
	}
	return nil
}

func (m *gormTxManager) AfterCommit(ctx context.Context, fn func()) {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		state.hooks = append(state.hooks, fn)
		return
	}
	fn()
}

// conn returns the transaction carried by ctx, or db
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if state, ok := ctx.Value(txKey{}).(*txState); ok && state.tx != nil {
		return state.tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}
