package persistence

import (
	"errors"

	"github.com/erp/stockledger/internal/domain/shared"
	"gorm.io/gorm"
)

// translateError maps GORM errors onto domain errors.
// Requires gorm.Config.TranslateError for duplicate keys.
func translateError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.NewDomainError(shared.CodeAlreadyExists, what+" already exists")
	default:
		return err
	}
}

// notArchived restricts a query to live rows of the given table
func notArchived(table string) string {
	return table + ".deleted_at IS NULL"
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
