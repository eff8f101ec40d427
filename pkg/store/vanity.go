package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clawpad/clawpad/pkg/types"
)

// AddVanityAddress inserts a freshly generated address as available.
func (s *Store) AddVanityAddress(ctx context.Context, publicKey, secretKeyEncrypted string, attempts uint64, elapsedSeconds float64) (*VanityAddress, error) {
	addr := &VanityAddress{
		PublicKey:          publicKey,
		SecretKeyEncrypted: secretKeyEncrypted,
		Status:             StatusAvailable,
		Attempts:           attempts,
		ElapsedSeconds:     elapsedSeconds,
	}
	if err := s.db.WithContext(ctx).Create(addr).Error; err != nil {
		return nil, err
	}
	return addr, nil
}

// ReserveVanityAddress atomically claims the oldest available address for a
// session. Concurrent callers never receive the same row: on MySQL the pick
// runs under FOR UPDATE SKIP LOCKED, and in all cases the transition itself
// is a compare-and-swap on status. Returns types.ErrPoolEmpty when no
// address is available.
func (s *Store) ReserveVanityAddress(ctx context.Context, sessionID *uint) (*VanityAddress, error) {
	// A caller that loses the CAS race simply moves on to the next oldest
	// row. Three misses in a row means the pool is effectively drained.
	for attempt := 0; attempt < 3; attempt++ {
		var reserved *VanityAddress
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			q := tx
			if s.skipLocked {
				q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
			}
			var addr VanityAddress
			if err := q.Where("status = ?", StatusAvailable).
				Order("created_at").
				First(&addr).Error; err != nil {
				return err
			}

			now := time.Now()
			res := tx.Model(&VanityAddress{}).
				Where("id = ? AND status = ?", addr.ID, StatusAvailable).
				Updates(map[string]any{
					"status":      StatusReserved,
					"session_id":  sessionID,
					"reserved_at": now,
					"updated_at":  now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errReservationRace
			}

			addr.Status = StatusReserved
			addr.SessionID = sessionID
			addr.ReservedAt = &now
			reserved = &addr
			return nil
		})
		switch {
		case err == nil:
			return reserved, nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, types.ErrPoolEmpty
		case errors.Is(err, errReservationRace):
			continue
		default:
			return nil, err
		}
	}
	return nil, types.ErrPoolEmpty
}

var errReservationRace = errors.New("reservation race lost")

// MarkVanityAddressUsed is the terminal success transition, legal only from
// reserved.
func (s *Store) MarkVanityAddressUsed(ctx context.Context, id, tokenID uint) error {
	now := time.Now()
	return s.transition(ctx, id, StatusReserved, map[string]any{
		"status":     StatusUsed,
		"token_id":   tokenID,
		"used_at":    now,
		"updated_at": now,
	})
}

// MarkVanityAddressBurned retires an address whose mint account turned out
// to be already initialized on-chain. Terminal; legal only from reserved.
func (s *Store) MarkVanityAddressBurned(ctx context.Context, id uint) error {
	return s.transition(ctx, id, StatusReserved, map[string]any{
		"status":     StatusBurned,
		"updated_at": time.Now(),
	})
}

// ReleaseVanityAddress returns a reserved address to the pool after a deploy
// failure unrelated to the address itself.
func (s *Store) ReleaseVanityAddress(ctx context.Context, id uint) error {
	return s.transition(ctx, id, StatusReserved, map[string]any{
		"status":      StatusAvailable,
		"session_id":  nil,
		"reserved_at": nil,
		"updated_at":  time.Now(),
	})
}

func (s *Store) transition(ctx context.Context, id uint, from VanityStatus, updates map[string]any) error {
	res := s.db.WithContext(ctx).Model(&VanityAddress{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&VanityAddress{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return types.ErrAddressNotFound
		}
		return types.ErrInvalidTransition
	}
	return nil
}

// GetVanityAddress loads one address by id.
func (s *Store) GetVanityAddress(ctx context.Context, id uint) (*VanityAddress, error) {
	var addr VanityAddress
	if err := s.db.WithContext(ctx).First(&addr, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrAddressNotFound
		}
		return nil, err
	}
	return &addr, nil
}

// VanityPoolStats counts addresses per state.
func (s *Store) VanityPoolStats(ctx context.Context) (PoolStats, error) {
	var stats PoolStats
	counts := []struct {
		status VanityStatus
		dest   *int64
	}{
		{StatusAvailable, &stats.Available},
		{StatusReserved, &stats.Reserved},
		{StatusUsed, &stats.Used},
		{StatusBurned, &stats.Burned},
	}
	for _, c := range counts {
		if err := s.db.WithContext(ctx).Model(&VanityAddress{}).
			Where("status = ?", c.status).Count(c.dest).Error; err != nil {
			return stats, err
		}
	}
	stats.Total = stats.Available + stats.Reserved + stats.Used + stats.Burned
	return stats, nil
}

// AvailableVanityCount returns the number of available addresses.
func (s *Store) AvailableVanityCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&VanityAddress{}).
		Where("status = ?", StatusAvailable).Count(&count).Error
	return count, err
}
