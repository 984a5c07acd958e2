package postgres

import (
	"context"
	"errors"
	"fmt"
	"qittMarket/domain"

	"gorm.io/gorm"
)

type WalletRepository struct {
	DB *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{
		DB: db,
	}
}

func (r *WalletRepository) FindByUserID(ctx context.Context, userID string) (domain.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return domain.Wallet{}, fmt.Errorf("context error: %w", err)
	}

	var wallet domain.Wallet
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Wallet{}, domain.ErrWalletNotFound
		}
		return domain.Wallet{}, fmt.Errorf("failed to find wallet: %w", err)
	}

	return wallet, nil
}

func (r *WalletRepository) Insert(ctx context.Context, wallet *domain.Wallet) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	err := r.DB.WithContext(ctx).Omit("Profile").Create(wallet).Error
	return classifyWriteError("insert wallet", err)
}
