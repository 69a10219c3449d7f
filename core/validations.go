package core

import (
	"fmt"
	"strings"
)

func ValidateEvent(event Event) error {
	event.Title = strings.TrimSpace(event.Title)
	if len(event.Title) == 0 {
		return fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}

	if len(event.Title) > 100 {
		return fmt.Errorf("%w: title is too long (100 characters tops)", ErrInvalidRequest)
	}

	if event.StartTime.IsZero() || event.EndTime.IsZero() {
		return fmt.Errorf("%w: start time and end time are required", ErrInvalidRequest)
	}

	if !event.EndTime.After(event.StartTime) {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidRequest)
	}

	return nil
}

func ValidateProposal(mySlotId string, theirSlotId string) error {
	if len(mySlotId) == 0 || len(theirSlotId) == 0 {
		return fmt.Errorf("%w: my_slot_id and their_slot_id are required", ErrInvalidRequest)
	}

	if mySlotId == theirSlotId {
		return fmt.Errorf("%w: cannot swap a slot with itself", ErrInvalidRequest)
	}

	return nil
}

func ValidateCredentials(email string, password string) error {
	if len(strings.TrimSpace(email)) == 0 || len(password) == 0 {
		return fmt.Errorf("%w: email and password are required", ErrInvalidRequest)
	}

	return nil
}

func ValidateSignup(name string, email string, password string) error {
	if len(strings.TrimSpace(name)) == 0 {
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}

	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidRequest)
	}

	return ValidateCredentials(email, password)
}
