package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Unique-violation fragments per supported dialect; gorm only translates the
// error when the dialector has TranslateError enabled, so the raw driver
// messages are matched as a fallback.
var duplicateKeyFragments = []string{
	"duplicate key value violates unique constraint", // postgres 23505
	"Error 1062",               // mysql
	"UNIQUE constraint failed", // sqlite 2067
}

// IsDuplicateKeyErr reports whether err is a unique-constraint violation on
// any of the dialects duekeeper supports.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := err.Error()
	for _, fragment := range duplicateKeyFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
