package core

import "github.com/google/uuid"

// Identifier tags a long-lived renderer object (target, pipeline, shader)
// for debug output. The value is stable for the object's lifetime.
type Identifier string

func NewIdentifier() Identifier {
	return Identifier(uuid.New().String())
}

func (id Identifier) String() string {
	return string(id)
}

// Short returns the first uuid group, enough to tell objects apart in logs.
func (id Identifier) Short() string {
	if len(id) < 8 {
		return string(id)
	}
	return string(id[:8])
}
