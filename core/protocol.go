package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SwapService is how the API layer drives the engine. Callers arrive with an
// already-resolved user id; every mutating operation re-fetches current state,
// runs the guard and the state machine against that snapshot, and commits
// through the repository's conditional writes.
type SwapService interface {
	CreateEvent(ctx context.Context, ownerId string, event *Event) (*Event, error)
	GetEvent(ctx context.Context, eventId string) (*Event, error)
	UpdateEvent(ctx context.Context, ownerId string, eventId string, patch EventPatch) (*Event, error)
	DeleteEvent(ctx context.Context, ownerId string, eventId string) error
	ListEvents(ctx context.Context, ownerId string) ([]Event, error)
	ListSwappableSlots(ctx context.Context, excludingUserId string) ([]Event, error)
	OfferEvent(ctx context.Context, ownerId string, eventId string) (*Event, error)
	Propose(ctx context.Context, requesterId string, mySlotId string, theirSlotId string) (*SwapRequest, error)
	Respond(ctx context.Context, recipientId string, requestId string, accepted bool) (*SwapRequest, error)
	ListRequests(ctx context.Context, userId string, direction Direction) ([]SwapRequestDetail, error)
}

type swapService struct {
	repository Repository
}

func NewSwapService(repository Repository) SwapService {
	return &swapService{repository: repository}
}

func (s *swapService) CreateEvent(ctx context.Context, ownerId string, event *Event) (*Event, error) {
	err := ValidateEvent(*event)
	if err != nil {
		return nil, err
	}

	status := event.Status
	if status == "" {
		status = SlotBusy
	}

	// A freshly created slot is never SWAP_PENDING; only the protocol sets that.
	if status != SlotBusy && status != SlotSwappable {
		return nil, fmt.Errorf("%w: a new slot must be %s or %s", ErrInvalidRequest, SlotBusy, SlotSwappable)
	}

	created := &Event{
		Id:        uuid.NewString(),
		OwnerId:   ownerId,
		Title:     event.Title,
		StartTime: event.StartTime,
		EndTime:   event.EndTime,
		Status:    status,
	}

	return s.repository.SaveEvent(ctx, created)
}

func (s *swapService) GetEvent(ctx context.Context, eventId string) (*Event, error) {
	return s.repository.GetEventById(ctx, eventId)
}

func (s *swapService) UpdateEvent(ctx context.Context, ownerId string, eventId string, patch EventPatch) (*Event, error) {
	event, err := s.repository.GetEventById(ctx, eventId)
	if err != nil {
		return nil, err
	}

	err = CanModifyEvent(event, ownerId)
	if err != nil {
		return nil, err
	}

	observedStatus := event.Status

	if patch.Title != nil {
		event.Title = *patch.Title
	}

	if patch.StartTime != nil {
		event.StartTime = *patch.StartTime
	}

	if patch.EndTime != nil {
		event.EndTime = *patch.EndTime
	}

	// The only status an owner may write directly is the offer transition;
	// everything else belongs to the swap protocol.
	if patch.Status != nil && *patch.Status != event.Status {
		if event.Status != SlotBusy || *patch.Status != SlotSwappable {
			return nil, fmt.Errorf("%w: status can only be changed from %s to %s here", ErrInvalidState, SlotBusy, SlotSwappable)
		}

		event.Status = SlotSwappable
	}

	err = ValidateEvent(*event)
	if err != nil {
		return nil, err
	}

	return s.repository.UpdateEvent(ctx, event, observedStatus)
}

func (s *swapService) DeleteEvent(ctx context.Context, ownerId string, eventId string) error {
	event, err := s.repository.GetEventById(ctx, eventId)
	if err != nil {
		return err
	}

	err = CanModifyEvent(event, ownerId)
	if err != nil {
		return err
	}

	if event.Status == SlotSwapPending {
		return fmt.Errorf("%w: slot %s is locked by a pending swap request", ErrInvalidState, eventId)
	}

	return s.repository.DeleteEvent(ctx, eventId)
}

func (s *swapService) ListEvents(ctx context.Context, ownerId string) ([]Event, error) {
	return s.repository.ListEventsByOwner(ctx, ownerId)
}

func (s *swapService) ListSwappableSlots(ctx context.Context, excludingUserId string) ([]Event, error) {
	return s.repository.ListSwappableEvents(ctx, excludingUserId)
}

func (s *swapService) OfferEvent(ctx context.Context, ownerId string, eventId string) (*Event, error) {
	event, err := s.repository.GetEventById(ctx, eventId)
	if err != nil {
		return nil, err
	}

	err = CanModifyEvent(event, ownerId)
	if err != nil {
		return nil, err
	}

	err = TransitionSlot(event, SlotSwappable)
	if err != nil {
		return nil, err
	}

	return s.repository.OfferEvent(ctx, eventId)
}

// Propose creates the PENDING request and locks both slots. The snapshot
// checks give precise errors; the repository re-checks SWAPPABLE at write
// time so a racing proposal loses with a conflict instead of double-locking.
func (s *swapService) Propose(ctx context.Context, requesterId string, mySlotId string, theirSlotId string) (*SwapRequest, error) {
	err := ValidateProposal(mySlotId, theirSlotId)
	if err != nil {
		return nil, err
	}

	mySlot, err := s.repository.GetEventById(ctx, mySlotId)
	if err != nil {
		return nil, err
	}

	theirSlot, err := s.repository.GetEventById(ctx, theirSlotId)
	if err != nil {
		return nil, err
	}

	err = CanPropose(mySlot, theirSlot, requesterId)
	if err != nil {
		return nil, err
	}

	for _, slot := range []*Event{mySlot, theirSlot} {
		err = RequireSwappable(slot)
		if err != nil {
			return nil, err
		}
	}

	request := &SwapRequest{
		Id:          uuid.NewString(),
		RequesterId: requesterId,
		RecipientId: theirSlot.OwnerId,
		MySlotId:    mySlotId,
		TheirSlotId: theirSlotId,
		Status:      SwapPending,
	}

	created, err := s.repository.CreateSwapRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("request_id", created.Id).
		Str("requester_id", created.RequesterId).
		Str("recipient_id", created.RecipientId).
		Msg("swap proposed")

	return created, nil
}

// Respond settles a PENDING request. A request that already left PENDING is
// reported as not found, never re-applied.
func (s *swapService) Respond(ctx context.Context, recipientId string, requestId string, accepted bool) (*SwapRequest, error) {
	request, err := s.repository.GetSwapRequestById(ctx, requestId)
	if err != nil {
		return nil, err
	}

	if request.Status != SwapPending {
		return nil, fmt.Errorf("%w: request %s is not pending", ErrSwapRequestNotFound, requestId)
	}

	err = CanRespond(request, recipientId)
	if err != nil {
		return nil, err
	}

	// Both slots must still exist and still be locked by this request.
	for _, slotId := range []string{request.MySlotId, request.TheirSlotId} {
		var slot *Event

		slot, err = s.repository.GetEventById(ctx, slotId)
		if err != nil {
			return nil, err
		}

		if slot.Status != SlotSwapPending {
			return nil, fmt.Errorf("%w: slot %s is not awaiting a swap", ErrInvalidState, slotId)
		}
	}

	resolved, err := s.repository.ResolveSwapRequest(ctx, request, accepted)
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("request_id", resolved.Id).
		Str("status", string(resolved.Status)).
		Msg("swap resolved")

	return resolved, nil
}

func (s *swapService) ListRequests(ctx context.Context, userId string, direction Direction) ([]SwapRequestDetail, error) {
	return s.repository.ListSwapRequests(ctx, userId, direction)
}
