package memo

import "github.com/google/uuid"

// Completion is an opaque change token. It carries no payload and
// exists only to be compared: a task that returns a Completion hands
// out the same token for as long as none of its dependencies changed,
// and a fresh one after any recomputation.
type Completion struct {
	id uuid.UUID
}

// NewCompletion returns a token distinct from every other token.
func NewCompletion() Completion {
	return Completion{id: uuid.New()}
}

func (c Completion) String() string { return c.id.String() }
