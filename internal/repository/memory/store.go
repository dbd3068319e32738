// Package memory is an in-process implementation of the repository interfaces,
// selected with database.driver=memory and used by the service tests.
package memory

import (
	"context"
	"math/big"
	"sync"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/models"
)

// Store holds every table in maps. Transactions work on a private copy of
// the committed state which replaces it on commit.
type Store struct {
	txMu sync.Mutex   // one writer at a time: a transaction or a single write
	mu   sync.RWMutex // guards data
	data *state
}

type state struct {
	policy        *models.LevelPolicy
	levels        map[string]uint64
	gates         map[uint64]models.VersionGate
	notifications []models.Notification
	nextSeq       uint64

	senders   map[string]models.SenderConfig
	receivers map[string]models.ReceiverConfig
	remotes   map[remoteKey]models.TrustedRemote
	outbound  []models.OutboundMessage
	inbound   []models.InboundMessage

	balances   map[string]*big.Int
	allowances map[string]*big.Int
	trusted    map[string]bool
	paused     map[string]bool
	holdings   map[string]*big.Int
}

type remoteKey struct {
	receiver string
	srcChain uint16
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{data: newState()}
}

func newState() *state {
	return &state{
		levels:     make(map[string]uint64),
		gates:      make(map[uint64]models.VersionGate),
		senders:    make(map[string]models.SenderConfig),
		receivers:  make(map[string]models.ReceiverConfig),
		remotes:    make(map[remoteKey]models.TrustedRemote),
		balances:   make(map[string]*big.Int),
		allowances: make(map[string]*big.Int),
		trusted:    make(map[string]bool),
		paused:     make(map[string]bool),
		holdings:   make(map[string]*big.Int),
	}
}

func (s *state) clone() *state {
	c := newState()
	if s.policy != nil {
		p := *s.policy
		c.policy = &p
	}
	for k, v := range s.levels {
		c.levels[k] = v
	}
	for k, v := range s.gates {
		c.gates[k] = v
	}
	c.notifications = append([]models.Notification(nil), s.notifications...)
	c.nextSeq = s.nextSeq

	for k, v := range s.senders {
		c.senders[k] = v
	}
	for k, v := range s.receivers {
		c.receivers[k] = v
	}
	for k, v := range s.remotes {
		c.remotes[k] = v
	}
	c.outbound = append([]models.OutboundMessage(nil), s.outbound...)
	c.inbound = append([]models.InboundMessage(nil), s.inbound...)

	copyAmounts(c.balances, s.balances)
	copyAmounts(c.allowances, s.allowances)
	copyAmounts(c.holdings, s.holdings)
	for k, v := range s.trusted {
		c.trusted[k] = v
	}
	for k, v := range s.paused {
		c.paused[k] = v
	}
	return c
}

func copyAmounts(dst, src map[string]*big.Int) {
	for k, v := range src {
		dst[k] = new(big.Int).Set(v)
	}
}

type txKey struct{}

type memTx struct {
	store   *Store
	working *state
	hooks   []func()
}

func (s *Store) txFrom(ctx context.Context) *memTx {
	if tx, ok := ctx.Value(txKey{}).(*memTx); ok && tx.store == s {
		return tx
	}
	return nil
}

// WithTransaction implements repository.TxManager
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txFrom(ctx) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	s.mu.RLock()
	tx := &memTx{store: s, working: s.data.clone()}
	s.mu.RUnlock()

	committed := false
	defer func() {
		if !committed {
			s.txMu.Unlock()
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = tx.working
	s.mu.Unlock()
	committed = true
	s.txMu.Unlock()

	for _, hook := range tx.hooks {
		hook()
	}
	return nil
}

// AfterCommit implements repository.TxManager
func (s *Store) AfterCommit(ctx context.Context, fn func()) {
	if tx := s.txFrom(ctx); tx != nil {
		tx.hooks = append(tx.hooks, fn)
		return
	}
	fn()
}

func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if tx := s.txFrom(ctx); tx != nil {
		return fn(tx.working)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.data)
}

func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if tx := s.txFrom(ctx); tx != nil {
		return fn(tx.working)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}
