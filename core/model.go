package core

import "time"

type SlotStatus string

const (
	SlotBusy        SlotStatus = "BUSY"
	SlotSwappable   SlotStatus = "SWAPPABLE"
	SlotSwapPending SlotStatus = "SWAP_PENDING"
)

type SwapStatus string

const (
	SwapPending  SwapStatus = "PENDING"
	SwapAccepted SwapStatus = "ACCEPTED"
	SwapRejected SwapStatus = "REJECTED"
)

// Direction filters swap request listings by the caller's role.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
	DirectionAll      Direction = ""
)

// Event is a calendar slot owned by exactly one user. OwnerId changes only
// when an accepted swap exchanges the two slots involved.
type Event struct {
	Id        string     `json:"id,omitempty"`
	OwnerId   string     `json:"owner_id,omitempty"`
	Title     string     `json:"title,omitempty"`
	StartTime time.Time  `json:"start_time,omitempty"`
	EndTime   time.Time  `json:"end_time,omitempty"`
	Status    SlotStatus `json:"status,omitempty"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
}

// SwapRequest is a proposal to trade two slots. Once it leaves PENDING it is
// never mutated again.
type SwapRequest struct {
	Id          string     `json:"id,omitempty"`
	RequesterId string     `json:"requester_id,omitempty"`
	RecipientId string     `json:"recipient_id,omitempty"`
	MySlotId    string     `json:"my_slot_id,omitempty"`
	TheirSlotId string     `json:"their_slot_id,omitempty"`
	Status      SwapStatus `json:"status,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
}

// SwapRequestDetail carries the current snapshots of both referenced slots.
// Either snapshot may be nil when the slot no longer exists.
type SwapRequestDetail struct {
	SwapRequest
	MySlot    *Event `json:"my_slot,omitempty"`
	TheirSlot *Event `json:"their_slot,omitempty"`
}

type User struct {
	Id           string    `json:"id,omitempty"`
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// EventPatch holds the fields an owner may change on an existing event.
// Nil means "leave as is". Status is restricted to the offer transition.
type EventPatch struct {
	Title     *string     `json:"title,omitempty"`
	StartTime *time.Time  `json:"start_time,omitempty"`
	EndTime   *time.Time  `json:"end_time,omitempty"`
	Status    *SlotStatus `json:"status,omitempty"`
}
