package config

import "errors"

// ErrInvalid is wrapped by every validation failure. An invalid configuration is fatal: constructors refuse to build
// anything from it.
var ErrInvalid = errors.New("invalid configuration")
