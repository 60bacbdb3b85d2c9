package db

import "errors"

var (
	ErrParseConfig = errors.New("db: invalid configuration")
	ErrConnect     = errors.New("db: connection failed")
	ErrHealthcheck = errors.New("db: healthcheck failed")
	ErrMigrate     = errors.New("db: migration failed")
)
