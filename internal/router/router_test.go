package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/config"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/dto"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/handlers"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/models"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/repository/memory"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/services"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/transport"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/utils"
)

var (
	ownerAddr      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	authorizedAddr = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	collectionAddr = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	levelerAddr    = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	senderAddr     = common.HexToAddress("0x00000000000000000000000000000000000000d5")
	sentinelAddr   = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	collectorAddr  = common.HexToAddress("0x00000000000000000000000000000000000000e4")
	remoteAddr     = common.HexToAddress("0x00000000000000000000000000000000000000d6")
	userAddr       = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFixture struct {
	engine   *gin.Engine
	tokens   *handlers.TokenIssuer
	ledger   *services.LedgerService
	store    *memory.Store
	notifier *services.NotificationService
}

func newAPIFixture(t *testing.T, withSender bool) *apiFixture {
	t.Helper()
	ctx := context.Background()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := memory.NewStore()
	notifier := services.NewNotificationService(store, store, nil, logger)
	ledger := services.NewLedgerService(store, store, logger)
	levels := services.NewLevelService(levelerAddr, store, store, ledger, ledger, notifier, utils.NewKeyedMutex(), logger)
	require.NoError(t, levels.Initialize(ctx, services.GenesisParams{
		Owner:      ownerAddr,
		Collection: collectionAddr,
		BaseCost:   big.NewInt(10),
		Authorized: authorizedAddr,
	}))
	require.NoError(t, ledger.MintItem(ctx, collectionAddr, userAddr, big.NewInt(7), big.NewInt(1)))

	tokens := handlers.NewTokenIssuer("secret", time.Hour)
	deps := Deps{
		Config:        config.Default(),
		Logger:        logger,
		Tokens:        tokens,
		Levels:        levels,
		Ledger:        ledger,
		Notifications: notifier,
		HealthChecks: []handlers.HealthCheck{
			{Name: "store", Check: func(context.Context) error { return nil }},
		},
	}

	if withSender {
		fees, err := transport.NewFeeModel(config.FeeConfig{BaseFee: "3"})
		require.NoError(t, err)
		endpoint := transport.NewLocalEndpoint(remoteAddr, 2, fees, store, logger)
		sender := services.NewBridgeSenderService(senderAddr, store, store, ledger, endpoint, notifier, logger)
		require.NoError(t, sender.Configure(ctx, services.SenderGenesis{
			Owner:          ownerAddr,
			DstChain:       2,
			RemoteReceiver: remoteAddr.Bytes(),
			Sentinel:       sentinelAddr,
			FeeCollector:   collectorAddr,
			BaseCostMirror: big.NewInt(10),
		}))
		require.NoError(t, ledger.SetTrustedSpender(ctx, sentinelAddr, senderAddr, true))
		deps.Sender = sender
	}

	return &apiFixture{engine: SetupRouter(deps), tokens: tokens, ledger: ledger, store: store, notifier: notifier}
}

func (f *apiFixture) token(t *testing.T, addr common.Address, role string) string {
	t.Helper()
	token, _, err := f.tokens.Issue(addr, role)
	require.NoError(t, err)
	return token
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "127.0.0.1:5000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w.Code, out
}

func data(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", body)
	return d
}

func TestHealthAndReads(t *testing.T) {
	f := newAPIFixture(t, false)

	code, body := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, body = f.do(t, http.MethodGet, "/api/v1/levels/7", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), data(t, body)["level"])

	code, body = f.do(t, http.MethodGet, "/api/v1/levels/7/cost?rarity=3", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "30", data(t, body)["cost"])

	code, _ = f.do(t, http.MethodGet, "/api/v1/levels/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = f.do(t, http.MethodGet, "/api/v1/levels/0b11", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.do(t, http.MethodPost, "/api/v1/levels/batch", "", dto.BatchLevelsRequest{ItemIDs: []string{"7", "0x08", "010"}})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []interface{}{"7", "8", "10"}, data(t, body)["item_ids"])

	code, body = f.do(t, http.MethodGet, "/api/v1/policy", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, ownerAddr.Hex(), data(t, body)["owner"])
	assert.Equal(t, false, data(t, body)["capped"])

	code, _ = f.do(t, http.MethodGet, "/api/v1/bridge/config", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLevelUpEndpoint(t *testing.T) {
	f := newAPIFixture(t, false)
	req := dto.LevelUpRequest{TargetOwner: userAddr.Hex(), ItemID: "7", Rarity: 1}

	code, _ := f.do(t, http.MethodPost, "/api/v1/levels/level-up", "", req)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := f.do(t, http.MethodPost, "/api/v1/levels/level-up", f.token(t, userAddr, dto.RoleUser), req)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, string(services.KindAuthorization), body["code"])

	code, body = f.do(t, http.MethodPost, "/api/v1/levels/level-up", f.token(t, authorizedAddr, dto.RoleUser), req)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), data(t, body)["new_level"])

	code, body = f.do(t, http.MethodGet, "/api/v1/events?after=0", "", nil)
	require.Equal(t, http.StatusOK, code)
	events, ok := body["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, events, 2)
	assert.Equal(t, float64(2), body["next"])
}

func TestOwnerEndpoints(t *testing.T) {
	f := newAPIFixture(t, false)
	path := "/api/v1/admin/leveler/migrations/capped"
	req := dto.MaxLevelRequest{MaxLevel: 5}

	code, _ := f.do(t, http.MethodPost, path, "", req)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = f.do(t, http.MethodPost, path, f.token(t, ownerAddr, dto.RoleUser), req)
	assert.Equal(t, http.StatusForbidden, code)

	// owner role without being the recorded owner
	code, body := f.do(t, http.MethodPost, path, f.token(t, userAddr, dto.RoleOwner), req)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, string(services.KindAuthorization), body["code"])

	ownerToken := f.token(t, ownerAddr, dto.RoleOwner)
	code, body = f.do(t, http.MethodPost, path, ownerToken, req)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, data(t, body)["capped"])

	code, body = f.do(t, http.MethodPost, path, ownerToken, req)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, string(services.KindAlreadyMigrated), body["code"])

	code, body = f.do(t, http.MethodGet, "/api/v1/policy", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "5", data(t, body)["max_level"])
}

func TestBridgeEndpoints(t *testing.T) {
	f := newAPIFixture(t, true)
	ctx := context.Background()
	require.NoError(t, f.ledger.Mint(ctx, sentinelAddr, userAddr, big.NewInt(100)))

	code, body := f.do(t, http.MethodGet, "/api/v1/bridge/config", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), data(t, body)["dst_chain"])

	code, body = f.do(t, http.MethodPost, "/api/v1/bridge/estimate-fees", "", dto.EstimateFeesRequest{User: userAddr.Hex(), ItemID: "7", Rarity: 1})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "3", data(t, body)["native_fee"])

	burn := dto.BurnAndLevelRequest{Amount: "10", User: userAddr.Hex(), ItemID: "7", Rarity: 1, Value: "3"}
	userToken := f.token(t, userAddr, dto.RoleUser)

	// no native balance for the fee yet
	code, _ = f.do(t, http.MethodPost, "/api/v1/bridge/burn-and-level", userToken, burn)
	assert.Equal(t, http.StatusPaymentRequired, code)

	require.NoError(t, f.ledger.Mint(ctx, common.Address{}, userAddr, big.NewInt(3)))
	code, body = f.do(t, http.MethodPost, "/api/v1/bridge/burn-and-level", userToken, burn)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), data(t, body)["nonce"])
	assert.Equal(t, "10", data(t, body)["burned"])

	code, body = f.do(t, http.MethodGet, "/api/v1/admin/sender/outbound", f.token(t, ownerAddr, dto.RoleOwner), nil)
	require.Equal(t, http.StatusOK, code)
	outbound, ok := body["data"].([]interface{})
	require.True(t, ok)
	assert.Len(t, outbound, 1)
}

func TestEventStreamReplaysFromCursor(t *testing.T) {
	f := newAPIFixture(t, false)
	server := httptest.NewServer(f.engine)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events?after=0"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var hello map[string]interface{}
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connected", hello["type"])

	var first struct {
		Type string `json:"type"`
		Data struct {
			Seq  uint64 `json:"seq"`
			Name string `json:"name"`
		} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "notification", first.Type)
	assert.Equal(t, uint64(1), first.Data.Seq)
}

type streamFrame struct {
	Type string `json:"type"`
	Data struct {
		Seq  uint64 `json:"seq"`
		Name string `json:"name"`
	} `json:"data"`
}

func TestEventStreamFillsEntriesCommittedOutOfDispatchOrder(t *testing.T) {
	f := newAPIFixture(t, false)
	server := httptest.NewServer(f.engine)
	defer server.Close()
	ctx := context.Background()

	existing, err := f.notifier.List(ctx, 0, 500)
	require.NoError(t, err)
	require.NotEmpty(t, existing)
	last := existing[len(existing)-1].Seq

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events?after=" + strconv.FormatUint(last, 10)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var hello map[string]interface{}
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connected", hello["type"])

	// Committed to the log but never fanned out to subscribers.
	require.NoError(t, f.store.Append(ctx, &models.Notification{
		Name:    models.NotificationCostChanged,
		Emitter: levelerAddr.Hex(),
		Args:    "{}",
	}))
	require.NoError(t, f.notifier.Emit(ctx, models.NotificationMaxLevelChanged, levelerAddr, nil))

	var got []streamFrame
	for len(got) < 2 {
		var frame streamFrame
		require.NoError(t, conn.ReadJSON(&frame))
		got = append(got, frame)
	}
	assert.Equal(t, last+1, got[0].Data.Seq)
	assert.Equal(t, string(models.NotificationCostChanged), got[0].Data.Name)
	assert.Equal(t, last+2, got[1].Data.Seq)
	assert.Equal(t, string(models.NotificationMaxLevelChanged), got[1].Data.Name)
}
