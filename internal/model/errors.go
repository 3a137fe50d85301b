package model

import (
	"errors"
)

var (
	// ErrOptionUnsupported is returned by Device.SetOption when the device
	// rejects an option or its value.
	ErrOptionUnsupported = errors.New("scanner option unsupported")
	// ErrFeederEmpty is returned by AcquirePage when there is no sheet left.
	ErrFeederEmpty = errors.New("feeder empty")
	ErrNoDocument  = errors.New("no such document")
	ErrNoPage      = errors.New("no such page")
)
