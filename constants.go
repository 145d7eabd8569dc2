package goaio

import "github.com/goaio/goaio/internal/constants"

// Re-export defaults for public API consumers.
const (
	DefaultMaxOps            = constants.DefaultMaxOps
	DefaultLowWater          = constants.DefaultLowWater
	DefaultDirectIOAlignment = constants.DefaultDirectIOAlignment
	DefaultIOSize            = constants.DefaultIOSize
)
