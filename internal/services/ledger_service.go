package services

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/repository"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/types"
)

// LedgerService local fungible-asset and multi-token ledger. It is the payment
// and ownership collaborator when the service runs without an external chain.
type LedgerService struct {
	repo   repository.LedgerRepository
	tx     repository.TxManager
	logger *logrus.Logger
}

// NewLedgerService creates a LedgerService
func NewLedgerService(repo repository.LedgerRepository, tx repository.TxManager, logger *logrus.Logger) *LedgerService {
	return &LedgerService{repo: repo, tx: tx, logger: logger}
}

// BalanceOf fungible balance of holder
func (s *LedgerService) BalanceOf(ctx context.Context, asset, holder common.Address) (*big.Int, error) {
	return s.repo.GetBalance(ctx, asset.Hex(), holder.Hex(), false)
}

// Allowance remaining amount spender may move on behalf of owner
func (s *LedgerService) Allowance(ctx context.Context, asset, owner, spender common.Address) (*big.Int, error) {
	return s.repo.GetAllowance(ctx, asset.Hex(), owner.Hex(), spender.Hex(), false)
}

// Approve sets spender's allowance over owner's balance
func (s *LedgerService) Approve(ctx context.Context, asset, owner, spender common.Address, amount *big.Int) error {
	if spender == (common.Address{}) {
		return newError(KindInvalidConfig, "ERC20: approve to the zero address")
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	return s.repo.SetAllowance(ctx, asset.Hex(), owner.Hex(), spender.Hex(), amount)
}

// Mint credits new value to a holder
func (s *LedgerService) Mint(ctx context.Context, asset, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		return s.credit(ctx, asset, to, amount)
	})
}

// Transfer implements interfaces.PaymentLedger
func (s *LedgerService) Transfer(ctx context.Context, asset, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		return s.move(ctx, asset, from, to, amount)
	})
}

// TransferFrom implements interfaces.PaymentLedger
func (s *LedgerService) TransferFrom(ctx context.Context, asset, spender, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.spendAllowance(ctx, asset, from, spender, amount); err != nil {
			return err
		}
		return s.move(ctx, asset, from, to, amount)
	})
}

// BurnFrom implements interfaces.PaymentLedger. Trusted spenders of the asset
// burn without an allowance.
func (s *LedgerService) BurnFrom(ctx context.Context, asset, spender, from common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		trusted, err := s.repo.IsTrustedSpender(ctx, asset.Hex(), spender.Hex())
		if err != nil {
			return err
		}
		if !trusted && spender != from {
			if err := s.spendAllowance(ctx, asset, from, spender, amount); err != nil {
				return err
			}
		}
		return s.debit(ctx, asset, from, amount)
	})
}

// SetTrustedSpender grants or revokes allowance-free burning
func (s *LedgerService) SetTrustedSpender(ctx context.Context, asset, spender common.Address, trusted bool) error {
	if spender == (common.Address{}) {
		return newError(KindInvalidConfig, reasonZeroAddress)
	}
	return s.repo.SetTrustedSpender(ctx, asset.Hex(), spender.Hex(), trusted)
}

// IsTrustedSpender reports whether spender burns without allowance
func (s *LedgerService) IsTrustedSpender(ctx context.Context, asset, spender common.Address) (bool, error) {
	return s.repo.IsTrustedSpender(ctx, asset.Hex(), spender.Hex())
}

// SetPaused freezes or unfreezes every movement of an asset
func (s *LedgerService) SetPaused(ctx context.Context, asset common.Address, paused bool) error {
	return s.repo.SetPaused(ctx, asset.Hex(), paused)
}

// MintItem credits amount copies of itemID in a collection
func (s *LedgerService) MintItem(ctx context.Context, collection, to common.Address, itemID, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		key := types.ItemKey(itemID)
		held, err := s.repo.GetHolding(ctx, collection.Hex(), key, to.Hex(), true)
		if err != nil {
			return err
		}
		return s.repo.SetHolding(ctx, collection.Hex(), key, to.Hex(), held.Add(held, amount))
	})
}

// TransferItem moves copies of itemID between holders
func (s *LedgerService) TransferItem(ctx context.Context, collection, from, to common.Address, itemID, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return newError(KindInvalidConfig, "ERC1155: transfer to the zero address")
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		key := types.ItemKey(itemID)
		held, err := s.repo.GetHolding(ctx, collection.Hex(), key, from.Hex(), true)
		if err != nil {
			return err
		}
		if held.Cmp(amount) < 0 {
			return newError(KindInsufficientFunds, "ERC1155: insufficient balance for transfer")
		}
		if err := s.repo.SetHolding(ctx, collection.Hex(), key, from.Hex(), held.Sub(held, amount)); err != nil {
			return err
		}
		dst, err := s.repo.GetHolding(ctx, collection.Hex(), key, to.Hex(), true)
		if err != nil {
			return err
		}
		return s.repo.SetHolding(ctx, collection.Hex(), key, to.Hex(), dst.Add(dst, amount))
	})
}

// ItemBalance number of copies of itemID held
func (s *LedgerService) ItemBalance(ctx context.Context, collection, holder common.Address, itemID *big.Int) (*big.Int, error) {
	return s.repo.GetHolding(ctx, collection.Hex(), types.ItemKey(itemID), holder.Hex(), false)
}

// OwnsItem implements interfaces.OwnershipReader
func (s *LedgerService) OwnsItem(ctx context.Context, collection, holder common.Address, itemID *big.Int) (bool, error) {
	held, err := s.ItemBalance(ctx, collection, holder, itemID)
	if err != nil {
		return false, err
	}
	return held.Sign() > 0, nil
}

func (s *LedgerService) spendAllowance(ctx context.Context, asset, owner, spender common.Address, amount *big.Int) error {
	allowance, err := s.repo.GetAllowance(ctx, asset.Hex(), owner.Hex(), spender.Hex(), true)
	if err != nil {
		return err
	}
	if allowance.Cmp(types.MaxUint256) == 0 {
		return nil
	}
	if allowance.Cmp(amount) < 0 {
		return newError(KindInsufficientFunds, "ERC20: insufficient allowance")
	}
	return s.repo.SetAllowance(ctx, asset.Hex(), owner.Hex(), spender.Hex(), allowance.Sub(allowance, amount))
}

func (s *LedgerService) move(ctx context.Context, asset, from, to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return newError(KindInvalidConfig, "ERC20: transfer to the zero address")
	}
	if err := s.debit(ctx, asset, from, amount); err != nil {
		return err
	}
	return s.credit(ctx, asset, to, amount)
}

func (s *LedgerService) debit(ctx context.Context, asset, from common.Address, amount *big.Int) error {
	if err := s.checkPaused(ctx, asset); err != nil {
		return err
	}
	balance, err := s.repo.GetBalance(ctx, asset.Hex(), from.Hex(), true)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return newError(KindInsufficientFunds, "ERC20: transfer amount exceeds balance")
	}
	return s.repo.SetBalance(ctx, asset.Hex(), from.Hex(), balance.Sub(balance, amount))
}

func (s *LedgerService) credit(ctx context.Context, asset, to common.Address, amount *big.Int) error {
	if err := s.checkPaused(ctx, asset); err != nil {
		return err
	}
	balance, err := s.repo.GetBalance(ctx, asset.Hex(), to.Hex(), true)
	if err != nil {
		return err
	}
	balance.Add(balance, amount)
	if balance.Cmp(types.MaxUint256) > 0 {
		return newError(KindInvalidConfig, "balance overflow")
	}
	return s.repo.SetBalance(ctx, asset.Hex(), to.Hex(), balance)
}

func (s *LedgerService) checkPaused(ctx context.Context, asset common.Address) error {
	paused, err := s.repo.IsPaused(ctx, asset.Hex())
	if err != nil {
		return err
	}
	if paused {
		return newError(KindAssetPaused, "Pausable: paused")
	}
	return nil
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 || amount.Cmp(types.MaxUint256) > 0 {
		return newError(KindInvalidConfig, "amount out of uint256 range")
	}
	return nil
}
