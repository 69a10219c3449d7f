package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"slotswap/pkg/resources"
)

type Repository interface {
	SaveEvent(ctx context.Context, event *Event) (*Event, error)
	GetEventById(ctx context.Context, id string) (*Event, error)
	UpdateEvent(ctx context.Context, event *Event, expectedStatus SlotStatus) (*Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ListEventsByOwner(ctx context.Context, ownerId string) ([]Event, error)
	ListSwappableEvents(ctx context.Context, excludedOwnerId string) ([]Event, error)
	OfferEvent(ctx context.Context, id string) (*Event, error)
	CreateSwapRequest(ctx context.Context, request *SwapRequest) (*SwapRequest, error)
	GetSwapRequestById(ctx context.Context, id string) (*SwapRequest, error)
	ResolveSwapRequest(ctx context.Context, request *SwapRequest, accepted bool) (*SwapRequest, error)
	ListSwapRequests(ctx context.Context, userId string, direction Direction) ([]SwapRequestDetail, error)
	SaveUser(ctx context.Context, user *User) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

type repository struct {
	tracer  trace.Tracer
	metrics *DBMetrics
	pool    resources.DBInstance
}

func NewRepository(pool resources.DBInstance) Repository {
	return &repository{
		tracer:  otel.GetTracerProvider().Tracer("slotswap/core"),
		metrics: NewDBMetrics(),
		pool:    pool,
	}
}

const eventColumns = "id, owner_id, title, start_time, end_time, status, created_at"

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event

	err := row.Scan(&e.Id, &e.OwnerId, &e.Title, &e.StartTime, &e.EndTime, &e.Status, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &e, nil
}

func (r *repository) SaveEvent(ctx context.Context, event *Event) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "save_event", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.SaveEvent")
	defer span.End()

	saved, err := scanEvent(r.pool.QueryRow(ctx,
		"INSERT INTO events (id, owner_id, title, start_time, end_time, status) "+
			"VALUES ($1, $2, $3, $4, $5, $6) "+
			"RETURNING "+eventColumns,
		event.Id, event.OwnerId, event.Title, event.StartTime, event.EndTime, event.Status))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to save event: %v", ErrStoreUnavailable, err)
	}

	return saved, nil
}

func (r *repository) GetEventById(ctx context.Context, id string) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "get_event_by_id", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.GetEventById")
	defer span.End()

	event, err := scanEvent(r.pool.QueryRow(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
		}

		return nil, fmt.Errorf("%w: failed to get event by id: %v", ErrStoreUnavailable, err)
	}

	return event, nil
}

// UpdateEvent writes the merged record with a status precondition so that a
// slot locked or released concurrently is not overwritten from a stale read.
func (r *repository) UpdateEvent(ctx context.Context, event *Event, expectedStatus SlotStatus) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "update_event", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.UpdateEvent")
	defer span.End()

	updated, err := scanEvent(r.pool.QueryRow(ctx,
		"UPDATE events SET title = $1, start_time = $2, end_time = $3, status = $4 "+
			"WHERE id = $5 AND status = $6 "+
			"RETURNING "+eventColumns,
		event.Title, event.StartTime, event.EndTime, event.Status, event.Id, expectedStatus))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: slot %s changed while updating", ErrConflict, event.Id)
		}

		return nil, fmt.Errorf("%w: failed to update event: %v", ErrStoreUnavailable, err)
	}

	return updated, nil
}

func (r *repository) DeleteEvent(ctx context.Context, id string) error {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "delete_event", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.DeleteEvent")
	defer span.End()

	var tag pgconn.CommandTag

	tag, err = r.pool.Exec(ctx,
		"DELETE FROM events WHERE id = $1 AND status <> $2", id, SlotSwapPending)
	if err != nil {
		return fmt.Errorf("%w: failed to delete event: %v", ErrStoreUnavailable, err)
	}

	if tag.RowsAffected() == 0 {
		err = fmt.Errorf("%w: slot %s is gone or locked by a pending swap", ErrConflict, id)
		return err
	}

	return nil
}

func (r *repository) ListEventsByOwner(ctx context.Context, ownerId string) ([]Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "list_events_by_owner", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.ListEventsByOwner")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		"SELECT "+eventColumns+" FROM events WHERE owner_id = $1 ORDER BY start_time ASC", ownerId)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list events: %v", ErrStoreUnavailable, err)
	}

	return collectEvents(rows)
}

func (r *repository) ListSwappableEvents(ctx context.Context, excludedOwnerId string) ([]Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "list_swappable_events", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.ListSwappableEvents")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		"SELECT "+eventColumns+" FROM events WHERE status = $1 AND owner_id <> $2 ORDER BY start_time ASC",
		SlotSwappable, excludedOwnerId)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list swappable slots: %v", ErrStoreUnavailable, err)
	}

	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]Event, error) {
	defer rows.Close()

	events := make([]Event, 0)

	for rows.Next() {
		var e Event

		err := rows.Scan(&e.Id, &e.OwnerId, &e.Title, &e.StartTime, &e.EndTime, &e.Status, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan event: %v", ErrStoreUnavailable, err)
		}

		events = append(events, e)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("%w: failed to read events: %v", ErrStoreUnavailable, rows.Err())
	}

	return events, nil
}

// OfferEvent is the only direct status write: BUSY -> SWAPPABLE, conditioned
// on the slot still being BUSY at write time.
func (r *repository) OfferEvent(ctx context.Context, id string) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "offer_event", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.OfferEvent")
	defer span.End()

	offered, err := scanEvent(r.pool.QueryRow(ctx,
		"UPDATE events SET status = $1 WHERE id = $2 AND status = $3 RETURNING "+eventColumns,
		SlotSwappable, id, SlotBusy))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: slot %s is no longer busy", ErrConflict, id)
		}

		return nil, fmt.Errorf("%w: failed to offer event: %v", ErrStoreUnavailable, err)
	}

	return offered, nil
}

const swapRequestColumns = "id, requester_id, recipient_id, my_slot_id, their_slot_id, status, created_at"

func scanSwapRequest(row pgx.Row) (*SwapRequest, error) {
	var sr SwapRequest

	err := row.Scan(&sr.Id, &sr.RequesterId, &sr.RecipientId, &sr.MySlotId, &sr.TheirSlotId, &sr.Status, &sr.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &sr, nil
}

// CreateSwapRequest inserts the PENDING request and locks both slots in one
// transaction. Each lock is conditioned on the slot still being SWAPPABLE;
// losing either condition rolls the whole proposal back.
func (r *repository) CreateSwapRequest(ctx context.Context, request *SwapRequest) (*SwapRequest, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "create_swap_request", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.CreateSwapRequest")
	defer span.End()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %v", ErrStoreUnavailable, err)
	}

	saved, err := scanSwapRequest(tx.QueryRow(ctx,
		"INSERT INTO swap_requests (id, requester_id, recipient_id, my_slot_id, their_slot_id, status) "+
			"VALUES ($1, $2, $3, $4, $5, $6) "+
			"RETURNING "+swapRequestColumns,
		request.Id, request.RequesterId, request.RecipientId, request.MySlotId, request.TheirSlotId, SwapPending))
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("%w: failed to create swap request: %v", ErrStoreUnavailable, err)
	}

	for _, slotId := range []string{request.MySlotId, request.TheirSlotId} {
		var tag pgconn.CommandTag

		tag, err = tx.Exec(ctx,
			"UPDATE events SET status = $1 WHERE id = $2 AND status = $3",
			SlotSwapPending, slotId, SlotSwappable)
		if err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("%w: failed to lock slot %s: %v", ErrStoreUnavailable, slotId, err)
		}

		if tag.RowsAffected() != 1 {
			_ = tx.Rollback(ctx)

			err = fmt.Errorf("%w: slot %s is no longer swappable", ErrConflict, slotId)

			return nil, err
		}
	}

	err = tx.Commit(ctx)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("%w: failed to commit transaction: %v", ErrStoreUnavailable, err)
	}

	return saved, nil
}

func (r *repository) GetSwapRequestById(ctx context.Context, id string) (*SwapRequest, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "get_swap_request_by_id", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.GetSwapRequestById")
	defer span.End()

	request, err := scanSwapRequest(r.pool.QueryRow(ctx,
		"SELECT "+swapRequestColumns+" FROM swap_requests WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSwapRequestNotFound, id)
		}

		return nil, fmt.Errorf("%w: failed to get swap request: %v", ErrStoreUnavailable, err)
	}

	return request, nil
}

// ResolveSwapRequest closes a PENDING request. The request row is flipped
// first, conditioned on it still being PENDING; that single row is the race
// arbiter between concurrent responders. Accepting also exchanges the two
// owner ids; rejecting releases both slots back to SWAPPABLE. All writes
// commit together or not at all.
func (r *repository) ResolveSwapRequest(ctx context.Context, request *SwapRequest, accepted bool) (*SwapRequest, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "resolve_swap_request", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.ResolveSwapRequest")
	defer span.End()

	newStatus := SwapRejected
	if accepted {
		newStatus = SwapAccepted
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %v", ErrStoreUnavailable, err)
	}

	var tag pgconn.CommandTag

	tag, err = tx.Exec(ctx,
		"UPDATE swap_requests SET status = $1 WHERE id = $2 AND status = $3",
		newStatus, request.Id, SwapPending)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("%w: failed to resolve swap request: %v", ErrStoreUnavailable, err)
	}

	if tag.RowsAffected() != 1 {
		_ = tx.Rollback(ctx)

		err = fmt.Errorf("%w: request %s is no longer pending", ErrConflict, request.Id)

		return nil, err
	}

	type slotWrite struct {
		slotId  string
		ownerId string
	}

	writes := []slotWrite{
		{slotId: request.MySlotId, ownerId: request.RecipientId},
		{slotId: request.TheirSlotId, ownerId: request.RequesterId},
	}

	for _, w := range writes {
		if accepted {
			tag, err = tx.Exec(ctx,
				"UPDATE events SET status = $1, owner_id = $2 WHERE id = $3 AND status = $4",
				SlotBusy, w.ownerId, w.slotId, SlotSwapPending)
		} else {
			tag, err = tx.Exec(ctx,
				"UPDATE events SET status = $1 WHERE id = $2 AND status = $3",
				SlotSwappable, w.slotId, SlotSwapPending)
		}

		if err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("%w: failed to settle slot %s: %v", ErrStoreUnavailable, w.slotId, err)
		}

		if tag.RowsAffected() != 1 {
			_ = tx.Rollback(ctx)

			err = fmt.Errorf("%w: slot %s is not locked by this request", ErrConflict, w.slotId)

			return nil, err
		}
	}

	err = tx.Commit(ctx)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("%w: failed to commit transaction: %v", ErrStoreUnavailable, err)
	}

	resolved := *request
	resolved.Status = newStatus

	return &resolved, nil
}

func (r *repository) ListSwapRequests(ctx context.Context, userId string, direction Direction) ([]SwapRequestDetail, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "list_swap_requests", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.ListSwapRequests")
	defer span.End()

	var filter string

	switch direction {
	case DirectionIncoming:
		filter = "r.recipient_id = $1"
	case DirectionOutgoing:
		filter = "r.requester_id = $1"
	default:
		filter = "(r.recipient_id = $1 OR r.requester_id = $1)"
	}

	// LEFT JOINs keep requests visible even when a referenced slot was
	// deleted from historical data; missing snapshots come back nil.
	rows, err := r.pool.Query(ctx,
		"SELECT r.id, r.requester_id, r.recipient_id, r.my_slot_id, r.their_slot_id, r.status, r.created_at, "+
			"m.id, m.owner_id, m.title, m.start_time, m.end_time, m.status, m.created_at, "+
			"t.id, t.owner_id, t.title, t.start_time, t.end_time, t.status, t.created_at "+
			"FROM swap_requests r "+
			"LEFT JOIN events m ON m.id = r.my_slot_id "+
			"LEFT JOIN events t ON t.id = r.their_slot_id "+
			"WHERE "+filter+" "+
			"ORDER BY r.created_at DESC",
		userId)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list swap requests: %v", ErrStoreUnavailable, err)
	}

	defer rows.Close()

	details := make([]SwapRequestDetail, 0)

	for rows.Next() {
		var (
			d        SwapRequestDetail
			my, them nullableEvent
		)

		err = rows.Scan(
			&d.Id, &d.RequesterId, &d.RecipientId, &d.MySlotId, &d.TheirSlotId, &d.Status, &d.CreatedAt,
			&my.id, &my.ownerId, &my.title, &my.startTime, &my.endTime, &my.status, &my.createdAt,
			&them.id, &them.ownerId, &them.title, &them.startTime, &them.endTime, &them.status, &them.createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan swap request: %v", ErrStoreUnavailable, err)
		}

		d.MySlot = my.event()
		d.TheirSlot = them.event()

		details = append(details, d)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("%w: failed to read swap requests: %v", ErrStoreUnavailable, rows.Err())
	}

	return details, nil
}

type nullableEvent struct {
	id        *string
	ownerId   *string
	title     *string
	startTime *time.Time
	endTime   *time.Time
	status    *SlotStatus
	createdAt *time.Time
}

func (n nullableEvent) event() *Event {
	if n.id == nil {
		return nil
	}

	return &Event{
		Id:        *n.id,
		OwnerId:   *n.ownerId,
		Title:     *n.title,
		StartTime: *n.startTime,
		EndTime:   *n.endTime,
		Status:    *n.status,
		CreatedAt: *n.createdAt,
	}
}

func (r *repository) SaveUser(ctx context.Context, user *User) (*User, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "save_user", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.SaveUser")
	defer span.End()

	var saved User

	err = r.pool.QueryRow(ctx,
		"INSERT INTO users (id, name, email, password_hash) "+
			"VALUES ($1, $2, $3, $4) "+
			"RETURNING id, name, email, password_hash, created_at",
		user.Id, user.Name, user.Email, user.PasswordHash).
		Scan(&saved.Id, &saved.Name, &saved.Email, &saved.PasswordHash, &saved.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}

		return nil, fmt.Errorf("%w: failed to save user: %v", ErrStoreUnavailable, err)
	}

	return &saved, nil
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "get_user_by_email", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.GetUserByEmail")
	defer span.End()

	var u User

	err = r.pool.QueryRow(ctx,
		"SELECT id, name, email, password_hash, created_at FROM users WHERE email = $1", email).
		Scan(&u.Id, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
		}

		return nil, fmt.Errorf("%w: failed to get user by email: %v", ErrStoreUnavailable, err)
	}

	return &u, nil
}

type DBMetrics struct {
	qTotal   metric.Int64Counter
	qErrors  metric.Int64Counter
	qLatency metric.Float64Histogram
}

func NewDBMetrics() *DBMetrics {
	meter := otel.Meter("slotswap/db")

	qTotal, _ := meter.Int64Counter("db.query.total")
	qErrors, _ := meter.Int64Counter("db.query.errors.total")
	qLatency, _ := meter.Float64Histogram("db.query.duration.ms")

	return &DBMetrics{qTotal: qTotal, qErrors: qErrors, qLatency: qLatency}
}

func (m *DBMetrics) Observe(ctx context.Context, op string, start time.Time, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgres"),
		attribute.String("db.operation", op),
	}

	m.qTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	ms := float64(time.Since(start).Milliseconds())
	m.qLatency.Record(ctx, ms, metric.WithAttributes(attrs...))

	if err != nil {
		m.qErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
