package storage

import (
	"context"
	"errors"
	"testing"

	"smartnagrik/backend/internal/apperr"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil, "complaint", "get"))
	assert.ErrorIs(t, mapErr(gorm.ErrRecordNotFound, "complaint 1", "get"), apperr.ErrNotFound)
	assert.ErrorIs(t, mapErr(gorm.ErrDuplicatedKey, "user", "save"), apperr.ErrConflict)

	err := mapErr(context.DeadlineExceeded, "complaint", "update complaint")
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "cause stays in the chain")
}
