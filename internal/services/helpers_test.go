package services

import (
	"context"
	"io"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/repository/memory"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/types"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/utils"
)

var (
	ownerAddr      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	authorizedAddr = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	collectionAddr = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	paymentAddr    = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	levelerAddr    = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	userAddr       = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	otherUserAddr  = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type levelFixture struct {
	ctx      context.Context
	store    *memory.Store
	ledger   *LedgerService
	notifier *NotificationService
	levels   *LevelService
}

func newLevelFixture(t *testing.T) *levelFixture {
	t.Helper()
	store := memory.NewStore()
	logger := testLogger()
	notifier := NewNotificationService(store, store, nil, logger)
	ledger := NewLedgerService(store, store, logger)
	levels := NewLevelService(levelerAddr, store, store, ledger, ledger, notifier, utils.NewKeyedMutex(), logger)
	return &levelFixture{
		ctx:      context.Background(),
		store:    store,
		ledger:   ledger,
		notifier: notifier,
		levels:   levels,
	}
}

// initialize runs genesis with the shared fixture addresses
func (f *levelFixture) initialize(t *testing.T, baseCost int64, payment common.Address) {
	t.Helper()
	require.NoError(t, f.levels.Initialize(f.ctx, GenesisParams{
		Owner:        ownerAddr,
		Collection:   collectionAddr,
		PaymentAsset: payment,
		BaseCost:     big.NewInt(baseCost),
		Authorized:   authorizedAddr,
	}))
}

// giveItem mints one copy of itemID to holder
func (f *levelFixture) giveItem(t *testing.T, holder common.Address, itemID int64) {
	t.Helper()
	require.NoError(t, f.ledger.MintItem(f.ctx, collectionAddr, holder, big.NewInt(itemID), big.NewInt(1)))
}

// fund mints amount of the payment asset to holder and approves the leveler without limit
func (f *levelFixture) fund(t *testing.T, holder common.Address, amount int64) {
	t.Helper()
	require.NoError(t, f.ledger.Mint(f.ctx, paymentAddr, holder, big.NewInt(amount)))
	require.NoError(t, f.ledger.Approve(f.ctx, paymentAddr, holder, levelerAddr, types.MaxUint256))
}

func (f *levelFixture) level(t *testing.T, itemID int64) uint64 {
	t.Helper()
	level, err := f.levels.GetLevel(f.ctx, big.NewInt(itemID))
	require.NoError(t, err)
	return level
}

func (f *levelFixture) balance(t *testing.T, asset, holder common.Address) int64 {
	t.Helper()
	b, err := f.ledger.BalanceOf(f.ctx, asset, holder)
	require.NoError(t, err)
	return b.Int64()
}
