package scheduling

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsExclusionViolation(t *testing.T) {
	assert.True(t, isExclusionViolation(&pgconn.PgError{Code: pgExclusionViolation}))
	assert.True(t, isExclusionViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgExclusionViolation})))

	assert.False(t, isExclusionViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isExclusionViolation(errors.New("connection reset")))
	assert.False(t, isExclusionViolation(nil))
}
