package order

// State is one node in the order lifecycle graph from spec.md §4.2:
//
//	Initialized -> Submitted -> Accepted -> Working -> { PartiallyFilled -> Filled | Cancelled | Expired | Rejected }
//	Working -> Amended -> Working
//	Accepted -> Rejected
//	Submitted -> Denied
type State string

const (
	StateInitialized     State = "INITIALIZED"
	StateSubmitted       State = "SUBMITTED"
	StateAccepted        State = "ACCEPTED"
	StateWorking         State = "WORKING"
	StatePartiallyFilled State = "PARTIALLY_FILLED"
	StateFilled          State = "FILLED"
	StateCancelled       State = "CANCELLED"
	StateExpired         State = "EXPIRED"
	StateRejected        State = "REJECTED"
	StateDenied          State = "DENIED"
)

// terminal holds the states from which no further transitions are legal.
var terminal = map[State]bool{
	StateFilled:    true,
	StateCancelled: true,
	StateExpired:   true,
	StateRejected:  true,
	StateDenied:    true,
}

// IsTerminal reports whether s is a terminal state (spec.md §4.2).
func (s State) IsTerminal() bool { return terminal[s] }
