package postgres

import (
	"context"
	"errors"
	"fmt"
	"qittMarket/domain"

	"gorm.io/gorm"
)

type ProfileRepository struct {
	DB *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{
		DB: db,
	}
}

// FindByID returns domain.ErrProfileNotFound when no row exists. Every other
// error is a failed lookup and must not be read as "missing".
func (r *ProfileRepository) FindByID(ctx context.Context, id string) (domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return domain.Profile{}, fmt.Errorf("context error: %w", err)
	}

	var profile domain.Profile
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Profile{}, domain.ErrProfileNotFound
		}
		return domain.Profile{}, fmt.Errorf("failed to find profile: %w", err)
	}

	return profile, nil
}

// Insert never upserts; a concurrent writer surfaces as domain.ErrDuplicateKey.
func (r *ProfileRepository) Insert(ctx context.Context, profile *domain.Profile) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	err := r.DB.WithContext(ctx).Create(profile).Error
	return classifyWriteError("insert profile", err)
}
