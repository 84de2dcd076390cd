package scope

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actor identifies who is performing an operation. It is an explicit value
// object built by the HTTP layer from verified claims and passed into every
// lifecycle and query call, so the engine carries no ambient security state.
type Actor struct {
	ID           uuid.UUID
	Role         string
	BranchID     *uuid.UUID
	Capabilities []string
	IsAlumni     bool
}

// Has reports whether the actor holds the given capability code.
func (a Actor) Has(capability string) bool {
	for _, c := range a.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// GlobalView reports whether the actor may see records of every branch.
func (a Actor) GlobalView(globalCap string) bool {
	return a.Has(globalCap)
}

// Guard restricts staff visibility to their assigned branch unless they hold
// the global-view capability.
type Guard struct {
	globalCap string
}

func NewGuard(globalCap string) *Guard {
	return &Guard{globalCap: globalCap}
}

// Scope returns a gorm scope narrowing a request query to what the actor may
// see. An actor without a branch matches nothing rather than erroring; a
// staff account with no branch assignment sees an empty list.
func (g *Guard) Scope(actor Actor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if actor.Has(g.globalCap) {
			return db
		}
		if actor.BranchID == nil {
			return db.Where("1 = 0")
		}
		return db.Where("branch_id = ?", *actor.BranchID)
	}
}

// CanTouch reports whether the actor may read or mutate a single record
// belonging to branchID. Owners pass their own check at the call site.
func (g *Guard) CanTouch(actor Actor, branchID uuid.UUID) bool {
	if actor.Has(g.globalCap) {
		return true
	}
	return actor.BranchID != nil && *actor.BranchID == branchID
}
