package store

import (
	"context"
	"time"
)

// CreateSession starts a new launch session in pending state.
func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	if sess.Status == "" {
		sess.Status = "pending"
	}
	return s.db.WithContext(ctx).Create(sess).Error
}

// GetSession loads a session by id.
func (s *Store) GetSession(ctx context.Context, id uint) (*Session, error) {
	var sess Session
	if err := s.db.WithContext(ctx).First(&sess, id).Error; err != nil {
		return nil, err
	}
	return &sess, nil
}

// UpdateSessionStatus moves a session through its lifecycle. The error
// message is preserved unless a new one is supplied.
func (s *Store) UpdateSessionStatus(ctx context.Context, id uint, status string, tokenID *uint, errorMessage string) error {
	updates := map[string]any{"status": status, "updated_at": time.Now()}
	if tokenID != nil {
		updates["token_id"] = *tokenID
	}
	if errorMessage != "" {
		updates["error_message"] = errorMessage
	}
	return s.db.WithContext(ctx).Model(&Session{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateSessionDeposit records an observed deposit and marks the session funded.
func (s *Store) UpdateSessionDeposit(ctx context.Context, id uint, amount float64, fundingWallet string) error {
	updates := map[string]any{
		"deposit_amount": amount,
		"status":         "funded",
		"updated_at":     time.Now(),
	}
	if fundingWallet != "" {
		updates["funding_wallet"] = fundingWallet
	}
	return s.db.WithContext(ctx).Model(&Session{}).Where("id = ?", id).Updates(updates).Error
}
