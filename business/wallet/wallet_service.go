package wallet

import (
	"context"
	"errors"
	"fmt"
	"qittMarket/domain"
	"qittMarket/pkg/logger"
)

// WalletRepository contract interface
type WalletRepository interface {
	FindByUserID(ctx context.Context, userID string) (domain.Wallet, error)
	Insert(ctx context.Context, wallet *domain.Wallet) error
}

// ProfileRepository contract interface
type ProfileRepository interface {
	FindByID(ctx context.Context, id string) (domain.Profile, error)
}

// TransactionRepository contract interface
type TransactionRepository interface {
	ListByUserID(ctx context.Context, userID string, txType string) ([]domain.WalletTransaction, error)
}

const (
	FilterAll       = "all"
	FilterPurchases = "purchases"
	FilterSales     = "sales"
)

var ErrInvalidFilter = errors.New("invalid transaction filter")

type walletService struct {
	walletRepo      WalletRepository
	profileRepo     ProfileRepository
	transactionRepo TransactionRepository
}

func NewWalletService(walletRepo WalletRepository, profileRepo ProfileRepository, transactionRepo TransactionRepository) *walletService {
	return &walletService{
		walletRepo:      walletRepo,
		profileRepo:     profileRepo,
		transactionRepo: transactionRepo,
	}
}

// GetWallet loads the user's wallet and heals a missing one. A wallet is only
// created for an existing profile, and a concurrent heal that wins the insert
// is read back rather than duplicated.
func (s *walletService) GetWallet(ctx context.Context, userID string) (domain.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return domain.Wallet{}, fmt.Errorf("context error: %w", err)
	}

	wallet, err := s.walletRepo.FindByUserID(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, domain.ErrWalletNotFound) {
		logger.Error("Failed to load wallet", err)
		return domain.Wallet{}, err
	}

	if _, err := s.profileRepo.FindByID(ctx, userID); err != nil {
		logger.Error("Refusing to create wallet without profile", "user_id", userID, "error", err)
		return domain.Wallet{}, err
	}

	wallet = domain.NewWallet(userID)
	err = s.walletRepo.Insert(ctx, &wallet)
	switch {
	case err == nil:
		logger.Info("Wallet healed", "user_id", userID)
		return wallet, nil
	case errors.Is(err, domain.ErrDuplicateKey):
		return s.walletRepo.FindByUserID(ctx, userID)
	default:
		logger.Error("Failed to heal wallet", "user_id", userID, "error", err)
		return domain.Wallet{}, err
	}
}

// ListTransactions returns the wallet history filtered by all, purchases or
// sales. An empty filter means all.
func (s *walletService) ListTransactions(ctx context.Context, userID string, filter string) ([]domain.WalletTransaction, error) {
	var txType string
	switch filter {
	case "", FilterAll:
	case FilterPurchases:
		txType = domain.TransactionPurchase
	case FilterSales:
		txType = domain.TransactionSale
	default:
		return nil, ErrInvalidFilter
	}

	transactions, err := s.transactionRepo.ListByUserID(ctx, userID, txType)
	if err != nil {
		logger.Error("Failed to list wallet transactions", err)
		return nil, err
	}

	if transactions == nil {
		transactions = []domain.WalletTransaction{}
	}
	return transactions, nil
}
