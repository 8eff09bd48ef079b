package db

import "fmt"

// Common errors
var (
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrDatabaseConnection = fmt.Errorf("database connection error")
	ErrTransactionFailed  = fmt.Errorf("transaction failed")
	ErrUnsupportedDriver  = fmt.Errorf("unsupported database driver")
	ErrCorruptFavorites   = fmt.Errorf("stored favorites are not a valid list")
)
