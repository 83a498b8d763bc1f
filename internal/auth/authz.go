package auth

// Operation identifies a mutation subject to authorization.
type Operation int

const (
	OperationCreate Operation = iota + 1
	OperationUpdate
	OperationDelete
)

func (o Operation) String() string {
	switch o {
	case OperationCreate:
		return "create"
	case OperationUpdate:
		return "update"
	case OperationDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Decision is the outcome of an authorization check.
type Decision bool

const (
	Deny  Decision = false
	Allow Decision = true
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// OwnershipPolicy grants mutations on a record only to the principal that owns it.
//
// Create is always allowed because the owner of a new record is forced to the acting
// principal. Update and Delete require an exact, case sensitive match between the
// acting principal and the owner recorded before the request is applied. Roles play
// no part in the decision.
type OwnershipPolicy struct{}

// Decide returns Allow or Deny for the operation. It has no side effects.
func (OwnershipPolicy) Decide(op Operation, actingPrincipal, recordOwner string) Decision {
	switch op {
	case OperationCreate:
		return Allow
	case OperationUpdate, OperationDelete:
		if recordOwner == "" || recordOwner != actingPrincipal {
			return Deny
		}
		return Allow
	default:
		return Deny
	}
}
