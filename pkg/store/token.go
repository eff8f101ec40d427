package store

import (
	"context"

	"gorm.io/gorm"
)

// CreateToken inserts a newly deployed token.
func (s *Store) CreateToken(ctx context.Context, token *Token) error {
	return s.db.WithContext(ctx).Create(token).Error
}

// GetToken loads a token by id.
func (s *Store) GetToken(ctx context.Context, id uint) (*Token, error) {
	var t Token
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTokenByMint loads a token by mint/contract address.
func (s *Store) GetTokenByMint(ctx context.Context, mint string) (*Token, error) {
	var t Token
	if err := s.db.WithContext(ctx).Where("mint_address = ?", mint).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// TokensForBuyback lists active and graduated tokens of a venue, oldest first.
// An empty venue matches every venue.
func (s *Store) TokensForBuyback(ctx context.Context, venue string, limit int) ([]Token, error) {
	if limit <= 0 {
		limit = 100
	}
	q := s.db.WithContext(ctx).Where("status IN ?", []string{"active", "graduated"})
	if venue != "" {
		q = q.Where("venue = ?", venue)
	}
	var tokens []Token
	err := q.Order("created_at").Limit(limit).Find(&tokens).Error
	return tokens, err
}

// RecentTokens lists the newest live tokens.
func (s *Store) RecentTokens(ctx context.Context, limit int) ([]Token, error) {
	if limit <= 0 {
		limit = 5
	}
	var tokens []Token
	err := s.db.WithContext(ctx).
		Where("status IN ?", []string{"active", "graduated"}).
		Order("created_at DESC").Limit(limit).Find(&tokens).Error
	return tokens, err
}

// UpdateTokenFees accumulates claimed fees onto a token.
func (s *Store) UpdateTokenFees(ctx context.Context, id uint, claimed float64) error {
	return s.db.WithContext(ctx).Model(&Token{}).Where("id = ?", id).
		UpdateColumn("total_fees_collected", gorm.Expr("total_fees_collected + ?", claimed)).Error
}

// CreateBurn records a burn and bumps the token's running total.
func (s *Store) CreateBurn(ctx context.Context, burn *Burn) error {
	if err := s.db.WithContext(ctx).Create(burn).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&Token{}).Where("id = ?", burn.TokenID).
		UpdateColumn("total_burned", gorm.Expr("total_burned + ?", burn.TokensBurned)).Error
}

// BurnsByToken lists burns for one token, newest first.
func (s *Store) BurnsByToken(ctx context.Context, tokenID uint) ([]Burn, error) {
	var burns []Burn
	err := s.db.WithContext(ctx).Where("token_id = ?", tokenID).
		Order("created_at DESC").Find(&burns).Error
	return burns, err
}

// RecentBurns lists the latest burns across all tokens.
func (s *Store) RecentBurns(ctx context.Context, limit int) ([]Burn, error) {
	if limit <= 0 {
		limit = 10
	}
	var burns []Burn
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&burns).Error
	return burns, err
}

// GetBurnStats aggregates all burns.
func (s *Store) GetBurnStats(ctx context.Context) (BurnStats, error) {
	var stats BurnStats
	row := s.db.WithContext(ctx).Model(&Burn{}).
		Select("COALESCE(SUM(native_spent), 0), COALESCE(SUM(tokens_burned), 0), COUNT(*)").
		Row()
	err := row.Scan(&stats.TotalNativeSpent, &stats.TotalTokensBurned, &stats.TotalBurns)
	return stats, err
}

// CreateFeeDistribution records a Four.meme tax split.
func (s *Store) CreateFeeDistribution(ctx context.Context, dist *FeeDistribution) error {
	return s.db.WithContext(ctx).Create(dist).Error
}
