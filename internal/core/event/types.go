package event

import "github.com/s2go/demos/internal/soft2d"

// BodyCreated is raised by the world when a body is created.
type BodyCreated struct {
	Frame     int
	Handle    soft2d.Handle
	Tag       uint32
	Particles int
}

// BodyDestroyed is raised when a destroy request for a body is accepted.
type BodyDestroyed struct {
	Frame  int
	Handle soft2d.Handle
	Tag    uint32
}

// EmptyCause says why a body lost its last particle.
type EmptyCause string

const (
	CauseBoundary EmptyCause = "boundary"
	CauseTrigger  EmptyCause = "trigger"
)

// BodyEmptied is raised once when a body has no particles left. The handle
// stays valid until it is destroyed.
type BodyEmptied struct {
	Frame  int
	Handle soft2d.Handle
	Cause  EmptyCause
}
