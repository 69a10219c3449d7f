package core

import "fmt"

// The slot lifecycle:
//
//	BUSY -> SWAPPABLE        owner offers the slot
//	SWAPPABLE -> SWAP_PENDING  propose locks both slots of a proposal
//	SWAP_PENDING -> SWAPPABLE  reject releases both slots
//	SWAP_PENDING -> BUSY       accept closes both slots and swaps owners
//
// Only the first transition may be requested directly by an owner; the rest
// belong exclusively to the swap protocol.
func legalSlotTransition(from, to SlotStatus) bool {
	switch from {
	case SlotBusy:
		return to == SlotSwappable
	case SlotSwappable:
		return to == SlotSwapPending
	case SlotSwapPending:
		return to == SlotSwappable || to == SlotBusy
	}

	return false
}

// TransitionSlot applies a status change in memory after checking it is legal
// for the slot's current status. Persistence re-checks the precondition at
// write time, so a stale snapshot loses with a conflict there instead.
func TransitionSlot(event *Event, to SlotStatus) error {
	if !legalSlotTransition(event.Status, to) {
		return fmt.Errorf("%w: slot %s cannot move from %s to %s", ErrInvalidState, event.Id, event.Status, to)
	}

	event.Status = to

	return nil
}

// RequireSwappable gates the propose step: both slots of a proposal must be
// explicitly offered before they can be locked.
func RequireSwappable(event *Event) error {
	if event.Status != SlotSwappable {
		return fmt.Errorf("%w: both slots must be swappable, slot %s is %s", ErrInvalidState, event.Id, event.Status)
	}

	return nil
}
