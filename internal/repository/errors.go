package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ロック競合・デッドロック・一意制約違反。リトライ可能。
	ErrConflict = errors.New("conflict")
)
