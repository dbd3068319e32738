package memory

import (
	"context"
	"sort"
	"time"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/models"

	"gorm.io/gorm"
)

func (s *Store) GetSenderConfig(ctx context.Context, address string) (*models.SenderConfig, error) {
	var out *models.SenderConfig
	err := s.read(ctx, func(st *state) error {
		cfg, ok := st.senders[address]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		out = &cfg
		return nil
	})
	return out, err
}

func (s *Store) SaveSenderConfig(ctx context.Context, cfg *models.SenderConfig) error {
	return s.write(ctx, func(st *state) error {
		now := time.Now()
		if cfg.CreatedAt.IsZero() {
			cfg.CreatedAt = now
		}
		cfg.UpdatedAt = now
		st.senders[cfg.Address] = *cfg
		return nil
	})
}

func (s *Store) GetReceiverConfig(ctx context.Context, address string) (*models.ReceiverConfig, error) {
	var out *models.ReceiverConfig
	err := s.read(ctx, func(st *state) error {
		cfg, ok := st.receivers[address]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		out = &cfg
		return nil
	})
	return out, err
}

func (s *Store) SaveReceiverConfig(ctx context.Context, cfg *models.ReceiverConfig) error {
	return s.write(ctx, func(st *state) error {
		now := time.Now()
		if cfg.CreatedAt.IsZero() {
			cfg.CreatedAt = now
		}
		cfg.UpdatedAt = now
		st.receivers[cfg.Address] = *cfg
		return nil
	})
}

func (s *Store) GetTrustedRemote(ctx context.Context, receiver string, srcChain uint16) (*models.TrustedRemote, error) {
	var out *models.TrustedRemote
	err := s.read(ctx, func(st *state) error {
		remote, ok := st.remotes[remoteKey{receiver: receiver, srcChain: srcChain}]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		out = &remote
		return nil
	})
	return out, err
}

func (s *Store) SaveTrustedRemote(ctx context.Context, remote *models.TrustedRemote) error {
	return s.write(ctx, func(st *state) error {
		key := remoteKey{receiver: remote.Receiver, srcChain: remote.SrcChain}
		now := time.Now()
		if existing, ok := st.remotes[key]; ok {
			remote.CreatedAt = existing.CreatedAt
		} else {
			remote.CreatedAt = now
		}
		remote.UpdatedAt = now
		st.remotes[key] = *remote
		return nil
	})
}

func (s *Store) ListTrustedRemotes(ctx context.Context, receiver string) ([]*models.TrustedRemote, error) {
	var out []*models.TrustedRemote
	err := s.read(ctx, func(st *state) error {
		for key, remote := range st.remotes {
			if key.receiver != receiver {
				continue
			}
			r := remote
			out = append(out, &r)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].SrcChain < out[j].SrcChain })
	return out, err
}

func (s *Store) CreateOutbound(ctx context.Context, msg *models.OutboundMessage) error {
	return s.write(ctx, func(st *state) error {
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now()
		}
		st.outbound = append(st.outbound, *msg)
		return nil
	})
}

func (s *Store) ListOutbound(ctx context.Context, sender string, limit int) ([]*models.OutboundMessage, error) {
	var out []*models.OutboundMessage
	err := s.read(ctx, func(st *state) error {
		for i := len(st.outbound) - 1; i >= 0; i-- {
			if limit > 0 && len(out) >= limit {
				break
			}
			if st.outbound[i].Sender == sender {
				m := st.outbound[i]
				out = append(out, &m)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) CreateInbound(ctx context.Context, msg *models.InboundMessage) error {
	return s.write(ctx, func(st *state) error {
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now()
		}
		st.inbound = append(st.inbound, *msg)
		return nil
	})
}

func (s *Store) ListInbound(ctx context.Context, receiver string, limit int) ([]*models.InboundMessage, error) {
	var out []*models.InboundMessage
	err := s.read(ctx, func(st *state) error {
		for i := len(st.inbound) - 1; i >= 0; i-- {
			if limit > 0 && len(out) >= limit {
				break
			}
			if st.inbound[i].Receiver == receiver {
				m := st.inbound[i]
				out = append(out, &m)
			}
		}
		return nil
	})
	return out, err
}
