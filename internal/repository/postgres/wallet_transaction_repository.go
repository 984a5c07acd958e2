package postgres

import (
	"context"
	"fmt"
	"qittMarket/domain"

	"gorm.io/gorm"
)

type WalletTransactionRepository struct {
	DB *gorm.DB
}

func NewWalletTransactionRepository(db *gorm.DB) *WalletTransactionRepository {
	return &WalletTransactionRepository{
		DB: db,
	}
}

// ListByUserID returns the newest transactions first. An empty txType
// returns every type.
func (r *WalletTransactionRepository) ListByUserID(ctx context.Context, userID string, txType string) ([]domain.WalletTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var transactions []domain.WalletTransaction
	query := r.DB.WithContext(ctx).Where("user_id = ?", userID)
	if txType != "" {
		query = query.Where("type = ?", txType)
	}

	if err := query.Order("created_at desc").Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to find wallet transactions: %w", err)
	}

	return transactions, nil
}
