package credstore

import "errors"

var (
	// ErrNoSession is returned when a profile has no saved session.
	ErrNoSession = errors.New("no saved session")
	// ErrInvalidMasterKey is returned when the master key file is corrupt.
	ErrInvalidMasterKey = errors.New("invalid master key")
)
