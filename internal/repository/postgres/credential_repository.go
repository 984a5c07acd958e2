package postgres

import (
	"context"
	"errors"
	"fmt"
	"qittMarket/domain"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CredentialRepository struct {
	DB *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{
		DB: db,
	}
}

func (r *CredentialRepository) Create(ctx context.Context, credential *domain.Credential) error {
	credential.Email = strings.ToLower(strings.TrimSpace(credential.Email))
	err := r.DB.WithContext(ctx).Create(credential).Error
	return classifyWriteError("insert credential", err)
}

func (r *CredentialRepository) FindByEmail(ctx context.Context, email string) (domain.Credential, error) {
	var credential domain.Credential

	err := r.DB.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&credential).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Credential{}, domain.ErrCredentialNotFound
		}
		return domain.Credential{}, fmt.Errorf("failed to find credential: %w", err)
	}

	return credential, nil
}

func (r *CredentialRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	result := r.DB.WithContext(ctx).Model(&domain.Credential{}).
		Where("user_id = ? AND email_verified = ?", id, false).
		Update("email_verified", true)

	if result.Error != nil {
		return fmt.Errorf("failed to verify email: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.ErrCredentialNotFound
	}

	return nil
}
