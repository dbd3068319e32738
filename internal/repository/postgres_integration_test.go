//go:build integration

package repository_test

import (
	"context"
	"errors"
	"io"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/config"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/db"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/models"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/repository"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/services"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/utils"
)

var (
	ownerAddr      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	authorizedAddr = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	collectionAddr = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	levelerAddr    = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	receiverAddr   = common.HexToAddress("0x00000000000000000000000000000000000000d6")
	userAddr       = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// testDB connects to TEST_DB_URL when set, otherwise starts a disposable
// PostgreSQL container. The schema is migrated and emptied before returning.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	dsn := os.Getenv("TEST_DB_URL")
	if dsn == "" {
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("leveler_test"),
			tcpostgres.WithUsername("test"),
			tcpostgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		require.NoError(t, err)
		t.Cleanup(func() {
			require.NoError(t, container.Terminate(context.Background()))
		})

		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	database, err := db.InitDB(config.DatabaseConfig{DSN: dsn, Driver: "postgres"}, testLogger())
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, m := range db.Models() {
		stmt := &gorm.Statement{DB: database}
		require.NoError(t, stmt.Parse(m))
		require.NoError(t, database.Exec("TRUNCATE TABLE "+stmt.Schema.Table).Error)
	}
	return database
}

func TestTxManagerCommitRollbackAndHooks(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	tx := repository.NewTxManager(database)
	levels := repository.NewLevelRepository(database)

	var ran []string
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, levels.SetLevel(ctx, "1", 2))
		tx.AfterCommit(ctx, func() { ran = append(ran, "outer") })

		// Nested calls join the outer transaction.
		return tx.WithTransaction(ctx, func(ctx context.Context) error {
			tx.AfterCommit(ctx, func() { ran = append(ran, "inner") })
			assert.Empty(t, ran)
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, ran)

	level, err := levels.GetLevel(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), level)

	ran = nil
	boom := errors.New("boom")
	err = tx.WithTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, levels.SetLevel(ctx, "1", 9))
		tx.AfterCommit(ctx, func() { ran = append(ran, "rolled back") })
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, ran)

	level, err = levels.GetLevel(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), level)

	tx.AfterCommit(ctx, func() { ran = append(ran, "immediate") })
	assert.Equal(t, []string{"immediate"}, ran)
}

func TestLevelRepositoryOnPostgres(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	tx := repository.NewTxManager(database)
	repo := repository.NewLevelRepository(database)

	_, err := repo.GetPolicy(ctx)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, repo.CreatePolicy(ctx, &models.LevelPolicy{
		Owner:        ownerAddr.Hex(),
		Authorized:   authorizedAddr.Hex(),
		Collection:   collectionAddr.Hex(),
		PaymentAsset: common.Address{}.Hex(),
		BridgeAgent:  common.Address{}.Hex(),
		BaseCost:     "10",
		Version:      1,
	}))

	require.NoError(t, tx.WithTransaction(ctx, func(ctx context.Context) error {
		shared, err := repo.GetPolicyForShare(ctx)
		require.NoError(t, err)
		assert.Equal(t, "10", shared.BaseCost)

		row, err := repo.GetPolicyForUpdate(ctx)
		require.NoError(t, err)
		row.Capped, row.MaxLevel = true, 4
		return repo.SavePolicy(ctx, row)
	}))
	policy, err := repo.GetPolicy(ctx)
	require.NoError(t, err)
	assert.True(t, policy.Capped)
	assert.Equal(t, uint64(4), policy.MaxLevel)

	// LockLevel materializes a missing record at level 0.
	require.NoError(t, tx.WithTransaction(ctx, func(ctx context.Context) error {
		level, err := repo.LockLevel(ctx, "7")
		require.NoError(t, err)
		assert.Equal(t, uint64(0), level)
		return repo.SetLevel(ctx, "7", level+1)
	}))
	require.NoError(t, repo.SetLevel(ctx, "7", 3))
	require.NoError(t, repo.SetLevel(ctx, "8", 1))

	levels, err := repo.GetLevels(ctx, []string{"7", "8", "9"})
	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{"7": 3, "8": 1}, levels)

	highest, err := repo.HighestLevel(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), highest)

	require.NoError(t, repo.CreateGate(ctx, &models.VersionGate{Version: 2, Name: "rarity", InitializedBy: ownerAddr.Hex(), InitializedAt: time.Now()}))
	require.NoError(t, repo.CreateGate(ctx, &models.VersionGate{Version: 1, Name: "genesis", InitializedBy: ownerAddr.Hex(), InitializedAt: time.Now()}))
	gates, err := repo.ListGates(ctx)
	require.NoError(t, err)
	require.Len(t, gates, 2)
	assert.Equal(t, uint64(1), gates[0].Version)
	assert.Error(t, repo.CreateGate(ctx, &models.VersionGate{Version: 1, Name: "genesis", InitializedBy: ownerAddr.Hex(), InitializedAt: time.Now()}))
}

func TestTrustedRemoteUpsertOnPostgres(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	repo := repository.NewBridgeRepository(database)

	require.NoError(t, repo.SaveTrustedRemote(ctx, &models.TrustedRemote{Receiver: receiverAddr.Hex(), SrcChain: 2, Path: "0x01", UpdatedBy: ownerAddr.Hex()}))
	require.NoError(t, repo.SaveTrustedRemote(ctx, &models.TrustedRemote{Receiver: receiverAddr.Hex(), SrcChain: 2, Path: "0x02", UpdatedBy: ownerAddr.Hex()}))
	require.NoError(t, repo.SaveTrustedRemote(ctx, &models.TrustedRemote{Receiver: receiverAddr.Hex(), SrcChain: 3, Path: "0x03", UpdatedBy: ownerAddr.Hex()}))

	remote, err := repo.GetTrustedRemote(ctx, receiverAddr.Hex(), 2)
	require.NoError(t, err)
	assert.Equal(t, "0x02", remote.Path)

	remotes, err := repo.ListTrustedRemotes(ctx, receiverAddr.Hex())
	require.NoError(t, err)
	assert.Len(t, remotes, 2)

	_, err = repo.GetTrustedRemote(ctx, receiverAddr.Hex(), 4)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestLedgerRepositoryOnPostgres(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	tx := repository.NewTxManager(database)
	repo := repository.NewLedgerRepository(database)
	asset, holder := collectionAddr.Hex(), userAddr.Hex()

	balance, err := repo.GetBalance(ctx, asset, holder, false)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Sign())

	require.NoError(t, tx.WithTransaction(ctx, func(ctx context.Context) error {
		balance, err := repo.GetBalance(ctx, asset, holder, true)
		require.NoError(t, err)
		return repo.SetBalance(ctx, asset, holder, balance.Add(balance, big.NewInt(25)))
	}))
	require.NoError(t, repo.SetBalance(ctx, asset, holder, big.NewInt(40)))

	balance, err = repo.GetBalance(ctx, asset, holder, false)
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance.Int64())

	require.NoError(t, repo.SetHolding(ctx, asset, "7", holder, big.NewInt(1)))
	held, err := repo.GetHolding(ctx, asset, "7", holder, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), held.Int64())
}

func TestNotificationSequenceFollowsCommitOrder(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	tx := repository.NewTxManager(database)
	repo := repository.NewNotificationRepository(database)

	appended := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- tx.WithTransaction(ctx, func(ctx context.Context) error {
			if err := repo.Append(ctx, &models.Notification{Name: models.NotificationCostChanged, Emitter: levelerAddr.Hex(), Args: "{}"}); err != nil {
				return err
			}
			close(appended)
			<-release
			return nil
		})
	}()
	<-appended

	second := &models.Notification{Name: models.NotificationMaxLevelChanged, Emitter: levelerAddr.Hex(), Args: "{}"}
	secondDone := make(chan error, 1)
	go func() { secondDone <- repo.Append(ctx, second) }()

	select {
	case err := <-secondDone:
		t.Fatalf("append did not wait for the open transaction: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)
	assert.Equal(t, uint64(2), second.Seq)

	list, err := repo.ListAfter(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.NotificationCostChanged, list[0].Name)
	assert.Equal(t, uint64(1), list[0].Seq)

	// A rolled back append leaves no gap.
	boom := errors.New("boom")
	err = tx.WithTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, repo.Append(ctx, &models.Notification{Name: models.NotificationCostChanged, Emitter: levelerAddr.Hex(), Args: "{}"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	third := &models.Notification{Name: models.NotificationCostChanged, Emitter: levelerAddr.Hex(), Args: "{}"}
	require.NoError(t, repo.Append(ctx, third))
	assert.Equal(t, uint64(3), third.Seq)
}

// levelStack wires the level service on the gorm repositories
func levelStack(t *testing.T, database *gorm.DB) (*services.LevelService, repository.LevelRepository) {
	t.Helper()
	logger := testLogger()
	tx := repository.NewTxManager(database)
	levelRepo := repository.NewLevelRepository(database)
	notifier := services.NewNotificationService(repository.NewNotificationRepository(database), tx, nil, logger)
	ledger := services.NewLedgerService(repository.NewLedgerRepository(database), tx, logger)
	levels := services.NewLevelService(levelerAddr, tx, levelRepo, ledger, ledger, notifier, utils.NewKeyedMutex(), logger)

	ctx := context.Background()
	require.NoError(t, levels.Initialize(ctx, services.GenesisParams{
		Owner:      ownerAddr,
		Collection: collectionAddr,
		BaseCost:   big.NewInt(0),
		Authorized: authorizedAddr,
	}))
	require.NoError(t, ledger.MintItem(ctx, collectionAddr, userAddr, big.NewInt(1), big.NewInt(1)))
	return levels, levelRepo
}

func TestLevelUpHoldsOffConcurrentCapChange(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	levels, levelRepo := levelStack(t, database)

	require.NoError(t, levels.MigrateToCapped(ctx, ownerAddr, 5))
	require.NoError(t, levelRepo.SetLevel(ctx, "1", 3))

	written := make(chan struct{})
	release := make(chan struct{})
	levelDone := make(chan error, 1)
	go func() {
		_, err := levels.LevelUpWith(ctx, authorizedAddr, userAddr, big.NewInt(1), 1, func(ctx context.Context, newLevel uint64) error {
			close(written)
			<-release
			return nil
		})
		levelDone <- err
	}()
	<-written

	capDone := make(chan error, 1)
	go func() { capDone <- levels.SetMaxLevel(ctx, ownerAddr, 3) }()

	select {
	case err := <-capDone:
		t.Fatalf("cap change did not wait for the level-up: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-levelDone)
	assert.ErrorIs(t, <-capDone, services.ErrInvalidConfig)

	level, err := levels.GetLevel(ctx, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), level)

	policy, err := levels.Policy(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), policy.MaxLevel)
}

func TestConcurrentLevelUpsOnPostgres(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()
	levels, _ := levelStack(t, database)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := levels.LevelUp(ctx, authorizedAddr, userAddr, big.NewInt(1), 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	level, err := levels.GetLevel(ctx, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(8), level)
}
