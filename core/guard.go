package core

import "fmt"

// Authorization checks are pure predicates over records fetched immediately
// before the check. They never touch the store themselves.

// CanModifyEvent passes only for the slot's current owner. Used by update,
// delete and offer.
func CanModifyEvent(event *Event, userId string) error {
	if event.OwnerId != userId {
		return fmt.Errorf("%w: user %s does not own slot %s", ErrForbidden, userId, event.Id)
	}

	return nil
}

// CanPropose distinguishes not-your-slot (forbidden) from self-trade
// (invalid request) so callers see why the proposal was refused.
func CanPropose(mySlot *Event, theirSlot *Event, userId string) error {
	if mySlot.OwnerId != userId {
		return fmt.Errorf("%w: user %s does not own the offered slot %s", ErrForbidden, userId, mySlot.Id)
	}

	if theirSlot.OwnerId == userId {
		return fmt.Errorf("%w: cannot propose a swap against your own slot", ErrInvalidRequest)
	}

	return nil
}

// CanRespond passes only for the recipient of the proposal.
func CanRespond(request *SwapRequest, userId string) error {
	if request.RecipientId != userId {
		return fmt.Errorf("%w: user %s is not the recipient of request %s", ErrForbidden, userId, request.Id)
	}

	return nil
}
