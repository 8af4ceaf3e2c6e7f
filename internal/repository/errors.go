package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"invoice-messaging-backend/internal/apperr"
)

// translate maps driver errors onto the shared taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.ErrNotFound
	case isUniqueViolation(err):
		return errors.Join(apperr.ErrConflict, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return errors.Join(apperr.ErrConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
