package postgres

import (
	"errors"
	"fmt"
	"qittMarket/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
	pgInvalidTextRepr     = "22P02"
)

// classifyWriteError maps driver errors onto the store contract so callers
// can tell a duplicate row from a rejected one from a transport failure.
func classifyWriteError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrDuplicateKey, err)
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) || errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrConstraintViolation, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w: %w", op, domain.ErrDuplicateKey, err)
		case pgForeignKeyViolation, pgCheckViolation, pgNotNullViolation, pgInvalidTextRepr:
			return fmt.Errorf("%s: %w: %w", op, domain.ErrConstraintViolation, err)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
