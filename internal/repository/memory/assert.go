package memory

import "github.com/EternisDeathMatch/EternisNftUpgrade/internal/repository"

var (
	_ repository.TxManager              = (*Store)(nil)
	_ repository.LevelRepository        = (*Store)(nil)
	_ repository.NotificationRepository = (*Store)(nil)
	_ repository.BridgeRepository       = (*Store)(nil)
	_ repository.LedgerRepository       = (*Store)(nil)
)
