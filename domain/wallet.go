package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrWalletNotFound = errors.New("wallet not found")

type Wallet struct {
	UserID    string          `gorm:"column:user_id;primaryKey" json:"user_id"`
	Profile   *Profile        `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:RESTRICT" json:"-"`
	Balance   decimal.Decimal `gorm:"column:balance;type:numeric(12,2);not null;default:0;check:chk_wallets_balance,balance >= 0" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// NewWallet returns the initial wallet for a freshly provisioned profile.
func NewWallet(userID string) Wallet {
	return Wallet{
		UserID:  userID,
		Balance: decimal.Zero,
	}
}

const (
	TransactionPurchase = "purchase"
	TransactionSale     = "sale"
	TransactionTopUp    = "topup"
)

type WalletTransaction struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    string          `gorm:"column:user_id;index;not null" json:"user_id"`
	Type      string          `gorm:"column:type;not null" json:"type"`
	Title     string          `gorm:"column:title" json:"title"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Status    string          `gorm:"column:status;not null;default:completed" json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
