package letters

import "postroom/internal/types"

// Postage is an alias for types.Postage so the naming and billing
// helpers read without constant package qualification.
type Postage = types.Postage

// Re-exported postage constants used throughout this package.
const (
	PostageFirst       = types.PostageFirst
	PostageSecond      = types.PostageSecond
	PostageEurope      = types.PostageEurope
	PostageRestOfWorld = types.PostageRestOfWorld
)
