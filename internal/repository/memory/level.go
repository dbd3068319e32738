package memory

import (
	"context"
	"sort"
	"time"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/models"

	"gorm.io/gorm"
)

func (s *Store) GetPolicy(ctx context.Context) (*models.LevelPolicy, error) {
	var out *models.LevelPolicy
	err := s.read(ctx, func(st *state) error {
		if st.policy == nil {
			return gorm.ErrRecordNotFound
		}
		p := *st.policy
		out = &p
		return nil
	})
	return out, err
}

func (s *Store) GetPolicyForUpdate(ctx context.Context) (*models.LevelPolicy, error) {
	return s.GetPolicy(ctx)
}

func (s *Store) GetPolicyForShare(ctx context.Context) (*models.LevelPolicy, error) {
	return s.GetPolicy(ctx)
}

func (s *Store) CreatePolicy(ctx context.Context, policy *models.LevelPolicy) error {
	return s.write(ctx, func(st *state) error {
		if st.policy != nil {
			return gorm.ErrDuplicatedKey
		}
		now := time.Now()
		policy.ID = models.LevelPolicyID
		policy.CreatedAt, policy.UpdatedAt = now, now
		p := *policy
		st.policy = &p
		return nil
	})
}

func (s *Store) SavePolicy(ctx context.Context, policy *models.LevelPolicy) error {
	return s.write(ctx, func(st *state) error {
		policy.ID = models.LevelPolicyID
		policy.UpdatedAt = time.Now()
		p := *policy
		st.policy = &p
		return nil
	})
}

func (s *Store) GetLevel(ctx context.Context, itemID string) (uint64, error) {
	var level uint64
	err := s.read(ctx, func(st *state) error {
		level = st.levels[itemID]
		return nil
	})
	return level, err
}

func (s *Store) GetLevels(ctx context.Context, itemIDs []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(itemIDs))
	err := s.read(ctx, func(st *state) error {
		for _, id := range itemIDs {
			if level, ok := st.levels[id]; ok {
				out[id] = level
			}
		}
		return nil
	})
	return out, err
}

// LockLevel relies on the store-wide writer lock held by the transaction.
func (s *Store) LockLevel(ctx context.Context, itemID string) (uint64, error) {
	return s.GetLevel(ctx, itemID)
}

func (s *Store) SetLevel(ctx context.Context, itemID string, level uint64) error {
	return s.write(ctx, func(st *state) error {
		st.levels[itemID] = level
		return nil
	})
}

func (s *Store) HighestLevel(ctx context.Context) (uint64, error) {
	var highest uint64
	err := s.read(ctx, func(st *state) error {
		for _, level := range st.levels {
			if level > highest {
				highest = level
			}
		}
		return nil
	})
	return highest, err
}

func (s *Store) CreateGate(ctx context.Context, gate *models.VersionGate) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.gates[gate.Version]; ok {
			return gorm.ErrDuplicatedKey
		}
		st.gates[gate.Version] = *gate
		return nil
	})
}

func (s *Store) ListGates(ctx context.Context) ([]*models.VersionGate, error) {
	var out []*models.VersionGate
	err := s.read(ctx, func(st *state) error {
		for _, gate := range st.gates {
			g := gate
			out = append(out, &g)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, err
}

func (s *Store) Append(ctx context.Context, notification *models.Notification) error {
	return s.write(ctx, func(st *state) error {
		st.nextSeq++
		notification.Seq = st.nextSeq
		if notification.CreatedAt.IsZero() {
			notification.CreatedAt = time.Now()
		}
		st.notifications = append(st.notifications, *notification)
		return nil
	})
}

func (s *Store) ListAfter(ctx context.Context, afterSeq uint64, limit int) ([]*models.Notification, error) {
	var out []*models.Notification
	err := s.read(ctx, func(st *state) error {
		for _, n := range st.notifications {
			if n.Seq <= afterSeq {
				continue
			}
			if limit > 0 && len(out) >= limit {
				break
			}
			entry := n
			out = append(out, &entry)
		}
		return nil
	})
	return out, err
}
