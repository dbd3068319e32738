package services

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/interfaces"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/models"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/repository"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/types"
)

var endpointAddr = common.HexToAddress("0x00000000000000000000000000000000000000e9")

type receiverFixture struct {
	*levelFixture
	receiver *BridgeReceiverService
	path     []byte
}

// newReceiverFixture runs the receiver as the leveler's authorized principal
func newReceiverFixture(t *testing.T) *receiverFixture {
	t.Helper()
	f := newLevelFixture(t)
	f.initialize(t, 0, paymentAddr)
	f.giveItem(t, userAddr, 7)

	receiver := NewBridgeReceiverService(authorizedAddr, f.store, f.levels, f.notifier, testLogger())
	require.NoError(t, receiver.Configure(f.ctx, ownerAddr, endpointAddr))

	path := types.EncodePath(senderAddr, authorizedAddr)
	require.NoError(t, receiver.SetTrustedRemote(f.ctx, ownerAddr, 2, path))

	return &receiverFixture{levelFixture: f, receiver: receiver, path: path}
}

func levelMessage(t *testing.T, srcChain uint16, path []byte, user common.Address, itemID int64) interfaces.InboundMessage {
	t.Helper()
	payload, err := types.EncodeLevelPayload(types.LevelPayload{User: user, ItemID: big.NewInt(itemID), Rarity: 1})
	require.NoError(t, err)
	return interfaces.InboundMessage{SrcChain: srcChain, SrcPath: path, Nonce: 1, Payload: payload}
}

func TestReceiverAppliesTrustedMessage(t *testing.T) {
	f := newReceiverFixture(t)

	err := f.receiver.Receive(f.ctx, endpointAddr, levelMessage(t, 2, f.path, userAddr, 7))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.level(t, 7))

	inbound, err := f.receiver.Inbound(f.ctx, 10)
	require.NoError(t, err)
	require.Len(t, inbound, 1)
	assert.Equal(t, models.InboundStatusApplied, inbound[0].Status)
	assert.Equal(t, types.EncodeHex(f.path), inbound[0].SrcPath)

	logged, err := f.notifier.List(f.ctx, 0, 50)
	require.NoError(t, err)
	names := make([]models.NotificationName, 0, len(logged))
	for _, n := range logged {
		names = append(names, n.Name)
	}
	assert.Contains(t, names, models.NotificationLeveledUp)
	assert.Contains(t, names, models.NotificationReceivedCall)
}

func TestReceiverRejectsCallerOtherThanEndpoint(t *testing.T) {
	f := newReceiverFixture(t)

	err := f.receiver.Receive(f.ctx, userAddr, levelMessage(t, 2, f.path, userAddr, 7))
	assert.ErrorIs(t, err, ErrAuthorization)
	assert.Equal(t, uint64(0), f.level(t, 7))

	inbound, err := f.receiver.Inbound(f.ctx, 10)
	require.NoError(t, err)
	require.Len(t, inbound, 1)
	assert.Equal(t, models.InboundStatusRejected, inbound[0].Status)
	assert.NotEmpty(t, inbound[0].Reason)
}

func TestReceiverRejectsUntrustedPath(t *testing.T) {
	f := newReceiverFixture(t)
	forged := types.EncodePath(otherUserAddr, authorizedAddr)

	err := f.receiver.Receive(f.ctx, endpointAddr, levelMessage(t, 2, forged, userAddr, 7))
	assert.ErrorIs(t, err, ErrUntrustedRemote)

	err = f.receiver.Receive(f.ctx, endpointAddr, levelMessage(t, 5, f.path, userAddr, 7))
	assert.ErrorIs(t, err, ErrUntrustedRemote)

	assert.Equal(t, uint64(0), f.level(t, 7))
}

func TestReceiverRejectsBadPayload(t *testing.T) {
	f := newReceiverFixture(t)
	msg := interfaces.InboundMessage{SrcChain: 2, SrcPath: f.path, Nonce: 1, Payload: []byte{0x01, 0x02}}

	err := f.receiver.Receive(f.ctx, endpointAddr, msg)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestReceiverPropagatesLevelRejection(t *testing.T) {
	f := newReceiverFixture(t)

	err := f.receiver.Receive(f.ctx, endpointAddr, levelMessage(t, 2, f.path, otherUserAddr, 7))
	assert.ErrorIs(t, err, ErrOwnershipMismatch)

	logged, err := f.notifier.List(f.ctx, 0, 50)
	require.NoError(t, err)
	for _, n := range logged {
		assert.NotEqual(t, models.NotificationReceivedCall, n.Name)
	}
}

func TestReceiverAsBridgeAgent(t *testing.T) {
	f := newLevelFixture(t)
	f.initialize(t, 0, paymentAddr)
	f.giveItem(t, userAddr, 7)
	agent := common.HexToAddress("0x00000000000000000000000000000000000000d1")

	receiver := NewBridgeReceiverService(agent, f.store, f.levels, f.notifier, testLogger())
	require.NoError(t, receiver.Configure(f.ctx, ownerAddr, endpointAddr))
	path := types.EncodePath(senderAddr, agent)
	require.NoError(t, receiver.SetTrustedRemote(f.ctx, ownerAddr, 2, path))

	err := receiver.Receive(f.ctx, endpointAddr, levelMessage(t, 2, path, userAddr, 7))
	assert.ErrorIs(t, err, ErrAuthorization)

	require.NoError(t, f.levels.MigrateToCapped(f.ctx, ownerAddr, 100))
	require.NoError(t, f.levels.MigrateToBridged(f.ctx, ownerAddr, agent))

	require.NoError(t, receiver.Receive(f.ctx, endpointAddr, levelMessage(t, 2, path, userAddr, 7)))
	assert.Equal(t, uint64(1), f.level(t, 7))
}

func TestReceiverConfiguration(t *testing.T) {
	f := newLevelFixture(t)
	receiver := NewBridgeReceiverService(authorizedAddr, f.store, f.levels, f.notifier, testLogger())

	err := receiver.Receive(f.ctx, endpointAddr, interfaces.InboundMessage{SrcChain: 2})
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, receiver.SetTrustedRemote(f.ctx, ownerAddr, 2, []byte{0x01}), ErrNotInitialized)

	assert.ErrorIs(t, receiver.Configure(f.ctx, common.Address{}, endpointAddr), ErrInvalidConfig)
	assert.ErrorIs(t, receiver.Configure(f.ctx, ownerAddr, common.Address{}), ErrInvalidConfig)
	require.NoError(t, receiver.Configure(f.ctx, ownerAddr, endpointAddr))

	assert.ErrorIs(t, receiver.SetTrustedRemote(f.ctx, userAddr, 2, []byte{0x01}), ErrAuthorization)
	assert.ErrorIs(t, receiver.SetTrustedRemote(f.ctx, ownerAddr, 2, nil), ErrInvalidConfig)

	first := types.EncodePath(senderAddr, authorizedAddr)
	second := types.EncodePath(otherUserAddr, authorizedAddr)
	require.NoError(t, receiver.SetTrustedRemote(f.ctx, ownerAddr, 2, first))
	require.NoError(t, receiver.SetTrustedRemote(f.ctx, ownerAddr, 2, second))
	require.NoError(t, receiver.SetTrustedRemote(f.ctx, ownerAddr, 3, first))

	remotes, err := receiver.TrustedRemotes(f.ctx)
	require.NoError(t, err)
	require.Len(t, remotes, 2)
	byChain := map[uint16]string{}
	for _, r := range remotes {
		byChain[r.SrcChain] = r.Path
	}
	assert.Equal(t, types.EncodeHex(second), byChain[2])
	assert.Equal(t, types.EncodeHex(first), byChain[3])
}

func TestLocalMessengerSharesReceiverChecks(t *testing.T) {
	f := newLevelFixture(t)
	f.initialize(t, 0, paymentAddr)
	f.giveItem(t, userAddr, 7)

	messenger := NewLocalMessengerService(authorizedAddr, f.store, f.levels, f.notifier, testLogger())
	require.NoError(t, messenger.Configure(f.ctx, ownerAddr, endpointAddr))
	path := types.EncodePath(senderAddr, authorizedAddr)
	require.NoError(t, messenger.SetTrustedRemote(f.ctx, ownerAddr, 1, path))

	assert.ErrorIs(t, messenger.Receive(f.ctx, userAddr, levelMessage(t, 1, path, userAddr, 7)), ErrAuthorization)
	require.NoError(t, messenger.Receive(f.ctx, endpointAddr, levelMessage(t, 1, path, userAddr, 7)))
	assert.Equal(t, uint64(1), f.level(t, 7))

	inbound, err := messenger.Inbound(f.ctx, 10)
	require.NoError(t, err)
	assert.Len(t, inbound, 2)
}

// brokenLog fails every append to the notification log
type brokenLog struct {
	repository.NotificationRepository
}

func (brokenLog) Append(context.Context, *models.Notification) error {
	return errors.New("log unavailable")
}

func TestTrustedRemoteNotSavedWhenNotificationFails(t *testing.T) {
	f := newLevelFixture(t)
	notifier := NewNotificationService(brokenLog{f.store}, f.store, nil, testLogger())
	receiver := NewBridgeReceiverService(authorizedAddr, f.store, f.levels, notifier, testLogger())
	require.NoError(t, receiver.Configure(f.ctx, ownerAddr, endpointAddr))

	err := receiver.SetTrustedRemote(f.ctx, ownerAddr, 2, types.EncodePath(senderAddr, authorizedAddr))
	require.Error(t, err)
	assert.False(t, IsDomainError(err))

	remotes, err := receiver.TrustedRemotes(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, remotes)
}
