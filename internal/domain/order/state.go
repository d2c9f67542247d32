package order

// OrderState implements the state pattern for the kitchen lifecycle:
// pending -> preparing -> ready -> completed, with cancellation from any
// non-terminal state.
type OrderState interface {
	Status() Status
	Advance() (OrderState, error)
	Cancel() (OrderState, error)
}

type pendingState struct{}

func (pendingState) Status() Status               { return StatusPending }
func (pendingState) Advance() (OrderState, error) { return preparingState{}, nil }
func (pendingState) Cancel() (OrderState, error)  { return cancelledState{}, nil }

type preparingState struct{}

func (preparingState) Status() Status               { return StatusPreparing }
func (preparingState) Advance() (OrderState, error) { return readyState{}, nil }
func (preparingState) Cancel() (OrderState, error)  { return cancelledState{}, nil }

type readyState struct{}

func (readyState) Status() Status               { return StatusReady }
func (readyState) Advance() (OrderState, error) { return completedState{}, nil }
func (readyState) Cancel() (OrderState, error)  { return cancelledState{}, nil }

type completedState struct{}

func (completedState) Status() Status               { return StatusCompleted }
func (completedState) Advance() (OrderState, error) { return nil, ErrInvalidTransition }
func (completedState) Cancel() (OrderState, error)  { return nil, ErrInvalidTransition }

type cancelledState struct{}

func (cancelledState) Status() Status               { return StatusCancelled }
func (cancelledState) Advance() (OrderState, error) { return nil, ErrInvalidTransition }
func (cancelledState) Cancel() (OrderState, error)  { return nil, ErrInvalidTransition }

func stateOf(s Status) OrderState {
	switch s {
	case StatusPreparing:
		return preparingState{}
	case StatusReady:
		return readyState{}
	case StatusCompleted:
		return completedState{}
	case StatusCancelled:
		return cancelledState{}
	default:
		return pendingState{}
	}
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
func CanTransition(from, to Status) bool {
	_, err := step(stateOf(from), to)
	return err == nil
}

// Next returns the status that follows s in the happy path, or false when s is terminal.
func Next(s Status) (Status, bool) {
	st, err := stateOf(s).Advance()
	if err != nil {
		return "", false
	}
	return st.Status(), true
}

func step(from OrderState, target Status) (OrderState, error) {
	if target == StatusCancelled {
		return from.Cancel()
	}
	next, err := from.Advance()
	if err != nil {
		return nil, err
	}
	if next.Status() != target {
		return nil, ErrInvalidTransition
	}
	return next, nil
}
