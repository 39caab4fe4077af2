package checkout

import (
	"errors"
	"fmt"
)

type State string

const (
	StateSelecting         State = "selecting"
	StateMembershipChoice  State = "membership_choice"
	StateCollectingContact State = "collecting_contact"
	StateCreating          State = "creating"
	StateAwaitingPayment   State = "awaiting_payment"
	StatePaid              State = "paid"
	StateFailed            State = "failed"
)

var ErrIllegalTransition = errors.New("illegal checkout transition")

// transitions lists every move a flow may make. Paid is terminal.
// Selecting goes to contact details only through skipMembership.
var transitions = map[State][]State{
	StateSelecting:         {StateMembershipChoice},
	StateMembershipChoice:  {StateCollectingContact, StateSelecting},
	StateCollectingContact: {StateCreating, StateMembershipChoice},
	StateCreating:          {StateAwaitingPayment, StateFailed},
	StateAwaitingPayment:   {StatePaid, StateFailed},
	StateFailed:            {StateCollectingContact, StateCreating, StateAwaitingPayment},
}

func (s State) CanMoveTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

func move(from *State, to State) error {
	if !from.CanMoveTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, *from, to)
	}
	*from = to
	return nil
}
