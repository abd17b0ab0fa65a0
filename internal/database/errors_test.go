package database

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, IsDuplicateKey(&mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.True(t, IsDuplicateKey(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, IsDuplicateKey(errors.New("constraint failed: UNIQUE constraint failed: referral_profiles.user_id")))
	assert.False(t, IsDuplicateKey(&mysqlDriver.MySQLError{Number: 1213}))
	assert.False(t, IsDuplicateKey(nil))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&mysqlDriver.MySQLError{Number: 1213}))
	assert.True(t, IsTransient(&mysqlDriver.MySQLError{Number: 1205}))
	assert.True(t, IsTransient(fmt.Errorf("update: %w", ErrConflict)))
	assert.True(t, IsTransient(driver.ErrBadConn))
	assert.True(t, IsTransient(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, IsTransient(&mysqlDriver.MySQLError{Number: 1062}))
	assert.False(t, IsTransient(errors.New("syntax error")))
	assert.False(t, IsTransient(nil))
}
