package sqlite

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSQLiteBusy(t *testing.T) {
	assert.False(t, isSQLiteBusy(nil))
	assert.False(t, isSQLiteBusy(errors.New("syntax error")))
	assert.True(t, isSQLiteBusy(errors.New("SQLITE_BUSY (5): database busy")))
	assert.True(t, isSQLiteBusy(errors.New("database is locked")))
}

func TestRetryOnBusyEventuallySucceeds(t *testing.T) {
	calls := 0
	err := retryOnBusy(func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryOnBusyGivesUp(t *testing.T) {
	calls := 0
	busy := errors.New("SQLITE_BUSY")
	err := retryOnBusy(func() error {
		calls++
		return busy
	})
	assert.Equal(t, busy, err)
	assert.Equal(t, busyMaxAttempts, calls)
}

func TestRetryOnBusyPassesThroughOtherErrors(t *testing.T) {
	calls := 0
	boom := errors.New("constraint violation")
	err := retryOnBusy(func() error {
		calls++
		return boom
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, calls)
}
