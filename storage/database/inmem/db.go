// Package inmemdb provides a map-backed account.Repository for tests and
// local tinkering. It mirrors the SQL repository's semantics (soft delete,
// mirror-set maintenance, paging) without a running database.
package inmemdb

import (
	"sync"

	"github.com/trezcool/darasa/core/account"
)

type DB struct {
	mutex    sync.RWMutex
	accounts map[string]*account.Account
}

func NewDB() *DB {
	return &DB{accounts: make(map[string]*account.Account)}
}

// Reset drops all rows; handy between test cases.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.accounts = make(map[string]*account.Account)
}
