package memory

import (
	"context"
	"math/big"
	"strings"
)

func key(parts ...string) string {
	return strings.Join(parts, "|")
}

func amountOf(m map[string]*big.Int, k string) *big.Int {
	if v, ok := m[k]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (s *Store) GetBalance(ctx context.Context, asset, holder string, _ bool) (*big.Int, error) {
	var out *big.Int
	err := s.read(ctx, func(st *state) error {
		out = amountOf(st.balances, key(asset, holder))
		return nil
	})
	return out, err
}

func (s *Store) SetBalance(ctx context.Context, asset, holder string, amount *big.Int) error {
	return s.write(ctx, func(st *state) error {
		st.balances[key(asset, holder)] = new(big.Int).Set(amount)
		return nil
	})
}

func (s *Store) GetAllowance(ctx context.Context, asset, owner, spender string, _ bool) (*big.Int, error) {
	var out *big.Int
	err := s.read(ctx, func(st *state) error {
		out = amountOf(st.allowances, key(asset, owner, spender))
		return nil
	})
	return out, err
}

func (s *Store) SetAllowance(ctx context.Context, asset, owner, spender string, amount *big.Int) error {
	return s.write(ctx, func(st *state) error {
		st.allowances[key(asset, owner, spender)] = new(big.Int).Set(amount)
		return nil
	})
}

func (s *Store) IsTrustedSpender(ctx context.Context, asset, spender string) (bool, error) {
	var trusted bool
	err := s.read(ctx, func(st *state) error {
		trusted = st.trusted[key(asset, spender)]
		return nil
	})
	return trusted, err
}

func (s *Store) SetTrustedSpender(ctx context.Context, asset, spender string, trusted bool) error {
	return s.write(ctx, func(st *state) error {
		if trusted {
			st.trusted[key(asset, spender)] = true
		} else {
			delete(st.trusted, key(asset, spender))
		}
		return nil
	})
}

func (s *Store) IsPaused(ctx context.Context, asset string) (bool, error) {
	var paused bool
	err := s.read(ctx, func(st *state) error {
		paused = st.paused[asset]
		return nil
	})
	return paused, err
}

func (s *Store) SetPaused(ctx context.Context, asset string, paused bool) error {
	return s.write(ctx, func(st *state) error {
		st.paused[asset] = paused
		return nil
	})
}

func (s *Store) GetHolding(ctx context.Context, collection, itemID, holder string, _ bool) (*big.Int, error) {
	var out *big.Int
	err := s.read(ctx, func(st *state) error {
		out = amountOf(st.holdings, key(collection, itemID, holder))
		return nil
	})
	return out, err
}

func (s *Store) SetHolding(ctx context.Context, collection, itemID, holder string, amount *big.Int) error {
	return s.write(ctx, func(st *state) error {
		st.holdings[key(collection, itemID, holder)] = new(big.Int).Set(amount)
		return nil
	})
}
