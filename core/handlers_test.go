package core

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"slotswap/pkg/auth"
)

// MockSwapService is a mock of the SwapService interface
type MockSwapService struct {
	mock.Mock
}

func (m *MockSwapService) CreateEvent(ctx context.Context, ownerId string, event *Event) (*Event, error) {
	args := m.Called(ctx, ownerId, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*Event), args.Error(1)
}

func (m *MockSwapService) GetEvent(ctx context.Context, eventId string) (*Event, error) {
	args := m.Called(ctx, eventId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*Event), args.Error(1)
}

func (m *MockSwapService) UpdateEvent(ctx context.Context, ownerId string, eventId string, patch EventPatch) (*Event, error) {
	args := m.Called(ctx, ownerId, eventId, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*Event), args.Error(1)
}

func (m *MockSwapService) DeleteEvent(ctx context.Context, ownerId string, eventId string) error {
	args := m.Called(ctx, ownerId, eventId)
	return args.Error(0)
}

func (m *MockSwapService) ListEvents(ctx context.Context, ownerId string) ([]Event, error) {
	args := m.Called(ctx, ownerId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]Event), args.Error(1)
}

func (m *MockSwapService) ListSwappableSlots(ctx context.Context, excludingUserId string) ([]Event, error) {
	args := m.Called(ctx, excludingUserId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]Event), args.Error(1)
}

func (m *MockSwapService) OfferEvent(ctx context.Context, ownerId string, eventId string) (*Event, error) {
	args := m.Called(ctx, ownerId, eventId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*Event), args.Error(1)
}

func (m *MockSwapService) Propose(ctx context.Context, requesterId string, mySlotId string, theirSlotId string) (*SwapRequest, error) {
	args := m.Called(ctx, requesterId, mySlotId, theirSlotId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*SwapRequest), args.Error(1)
}

func (m *MockSwapService) Respond(ctx context.Context, recipientId string, requestId string, accepted bool) (*SwapRequest, error) {
	args := m.Called(ctx, recipientId, requestId, accepted)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*SwapRequest), args.Error(1)
}

func (m *MockSwapService) ListRequests(ctx context.Context, userId string, direction Direction) ([]SwapRequestDetail, error) {
	args := m.Called(ctx, userId, direction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]SwapRequestDetail), args.Error(1)
}

// MockAuthService is a mock of the AuthService interface
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Signup(ctx context.Context, name string, email string, password string) (*User, string, error) {
	args := m.Called(ctx, name, email, password)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}

	return args.Get(0).(*User), args.String(1), args.Error(2)
}

func (m *MockAuthService) Login(ctx context.Context, email string, password string) (*User, string, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}

	return args.Get(0).(*User), args.String(1), args.Error(2)
}

func testContext(t *testing.T, method string, target string, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	recorder := httptest.NewRecorder()
	gctx, _ := gin.CreateTestContext(recorder)

	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	gctx.Request = httptest.NewRequest(method, target, reader)
	gctx.Request.Header.Set("Content-Type", "application/json")
	gctx.Set(auth.IdentityKey, "user-a")

	return gctx, recorder
}

func TestHandlers_PostEvents(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		mockService := new(MockSwapService)
		mockService.On("CreateEvent", mock.Anything, "user-a", mock.AnythingOfType("*core.Event")).
			Return(&Event{Id: "slot-1", OwnerId: "user-a", Status: SlotBusy}, nil)

		gctx, recorder := testContext(t, http.MethodPost, "/api/events",
			`{"title":"Shift","start_time":"2026-09-01T09:00:00Z","end_time":"2026-09-01T10:00:00Z"}`)

		NewHandlers(mockService, new(MockAuthService)).PostEvents(gctx)

		assert.Equal(t, http.StatusCreated, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "slot-1")
		mockService.AssertExpectations(t)
	})

	t.Run("malformed body", func(t *testing.T) {
		mockService := new(MockSwapService)

		gctx, recorder := testContext(t, http.MethodPost, "/api/events", `{"title":`)

		NewHandlers(mockService, new(MockAuthService)).PostEvents(gctx)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		mockService.AssertNotCalled(t, "CreateEvent")
	})

	t.Run("validation failure", func(t *testing.T) {
		mockService := new(MockSwapService)
		mockService.On("CreateEvent", mock.Anything, "user-a", mock.Anything).
			Return(nil, fmt.Errorf("%w: title is required", ErrInvalidRequest))

		gctx, recorder := testContext(t, http.MethodPost, "/api/events", `{}`)

		NewHandlers(mockService, new(MockAuthService)).PostEvents(gctx)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "title is required")
	})
}

func TestHandlers_GetEventsById(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mockService := new(MockSwapService)
		mockService.On("GetEvent", mock.Anything, "slot-1").
			Return(&Event{Id: "slot-1", Status: SlotSwappable}, nil)

		gctx, recorder := testContext(t, http.MethodGet, "/api/events/slot-1", "")
		gctx.Params = gin.Params{{Key: "id", Value: "slot-1"}}

		NewHandlers(mockService, new(MockAuthService)).GetEventsById(gctx)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), string(SlotSwappable))
	})

	t.Run("not found", func(t *testing.T) {
		mockService := new(MockSwapService)
		mockService.On("GetEvent", mock.Anything, "unknown").
			Return(nil, fmt.Errorf("%w: unknown", ErrEventNotFound))

		gctx, recorder := testContext(t, http.MethodGet, "/api/events/unknown", "")
		gctx.Params = gin.Params{{Key: "id", Value: "unknown"}}

		NewHandlers(mockService, new(MockAuthService)).GetEventsById(gctx)

		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("missing id", func(t *testing.T) {
		mockService := new(MockSwapService)

		gctx, recorder := testContext(t, http.MethodGet, "/api/events/", "")

		NewHandlers(mockService, new(MockAuthService)).GetEventsById(gctx)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		mockService.AssertNotCalled(t, "GetEvent")
	})
}

func TestHandlers_PutEvents(t *testing.T) {
	t.Run("forbidden", func(t *testing.T) {
		mockService := new(MockSwapService)
		mockService.On("UpdateEvent", mock.Anything, "user-a", "slot-1", mock.Anything).
			Return(nil, fmt.Errorf("%w: user user-a does not own slot slot-1", ErrForbidden))

		gctx, recorder := testContext(t, http.MethodPut, "/api/events/slot-1", `{"title":"Renamed"}`)
		gctx.Params = gin.Params{{Key: "id", Value: "slot-1"}}

		NewHandlers(mockService, new(MockAuthService)).PutEvents(gctx)

		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})

	t.Run("bad status patch", func(t *testing.T) {
		mockService := new(MockSwapService)
		mockService.On("UpdateEvent", mock.Anything, "user-a", "slot-1", mock.Anything).
			Return(nil, fmt.Errorf("%w: status may only change from BUSY to SWAPPABLE", ErrInvalidState))

		gctx, recorder := testContext(t, http.MethodPut, "/api/events/slot-1", `{"status":"SWAP_PENDING"}`)
		gctx.Params = gin.Params{{Key: "id", Value: "slot-1"}}

		NewHandlers(mockService, new(MockAuthService)).PutEvents(gctx)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestHandlers_DeleteEvents(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		mockService := new(MockSwapService)
		mockService.On("DeleteEvent", mock.Anything, "user-a", "slot-1").Return(nil)

		gctx, recorder := testContext(t, http.MethodDelete, "/api/events/slot-1", "")
		gctx.Params = gin.Params{{Key: "id", Value: "slot-1"}}

		NewHandlers(mockService, new(MockAuthService)).DeleteEvents(gctx)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "true")
	})

	t.Run("store unavailable", func(t *testing.T) {
		mockService := new(MockSwapService)
		mockService.On("DeleteEvent", mock.Anything, "user-a", "slot-1").
			Return(fmt.Errorf("%w: connection refused", ErrStoreUnavailable))

		gctx, recorder := testContext(t, http.MethodDelete, "/api/events/slot-1", "")
		gctx.Params = gin.Params{{Key: "id", Value: "slot-1"}}

		NewHandlers(mockService, new(MockAuthService)).DeleteEvents(gctx)

		assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	})
}

func TestHandlers_PostSwapRequests(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		mockService := new(MockSwapService)
		mockService.On("Propose", mock.Anything, "user-a", "slot-1", "slot-2").
			Return(&SwapRequest{Id: "req-1", Status: SwapPending}, nil)

		gctx, recorder := testContext(t, http.MethodPost, "/api/swaps/swap-request",
			`{"my_slot_id":"slot-1","their_slot_id":"slot-2"}`)

		NewHandlers(mockService, new(MockAuthService)).PostSwapRequests(gctx)

		assert.Equal(t, http.StatusCreated, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "req-1")
		mockService.AssertExpectations(t)
	})

	t.Run("lost the race", func(t *testing.T) {
		mockService := new(MockSwapService)
		mockService.On("Propose", mock.Anything, "user-a", "slot-1", "slot-2").
			Return(nil, fmt.Errorf("%w: slot slot-2 is no longer swappable", ErrConflict))

		gctx, recorder := testContext(t, http.MethodPost, "/api/swaps/swap-request",
			`{"my_slot_id":"slot-1","their_slot_id":"slot-2"}`)

		NewHandlers(mockService, new(MockAuthService)).PostSwapRequests(gctx)

		assert.Equal(t, http.StatusConflict, recorder.Code)
	})
}

func TestHandlers_PostSwapResponses(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		mockService := new(MockSwapService)
		mockService.On("Respond", mock.Anything, "user-a", "req-1", true).
			Return(&SwapRequest{Id: "req-1", Status: SwapAccepted}, nil)

		gctx, recorder := testContext(t, http.MethodPost, "/api/swaps/swap-response/req-1", `{"accepted":true}`)
		gctx.Params = gin.Params{{Key: "requestId", Value: "req-1"}}

		NewHandlers(mockService, new(MockAuthService)).PostSwapResponses(gctx)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), string(SwapAccepted))
	})

	t.Run("not the recipient", func(t *testing.T) {
		mockService := new(MockSwapService)
		mockService.On("Respond", mock.Anything, "user-a", "req-1", false).
			Return(nil, fmt.Errorf("%w: user user-a is not the recipient", ErrForbidden))

		gctx, recorder := testContext(t, http.MethodPost, "/api/swaps/swap-response/req-1", `{"accepted":false}`)
		gctx.Params = gin.Params{{Key: "requestId", Value: "req-1"}}

		NewHandlers(mockService, new(MockAuthService)).PostSwapResponses(gctx)

		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})
}

func TestHandlers_GetSwapRequests(t *testing.T) {
	t.Run("incoming", func(t *testing.T) {
		details := []SwapRequestDetail{{
			SwapRequest: SwapRequest{Id: "req-1", RecipientId: "user-a", Status: SwapPending, CreatedAt: time.Now()},
			MySlot:      &Event{Id: "slot-1"},
		}}

		mockService := new(MockSwapService)
		mockService.On("ListRequests", mock.Anything, "user-a", DirectionIncoming).Return(details, nil)

		gctx, recorder := testContext(t, http.MethodGet, "/api/swaps/requests?type=incoming", "")

		NewHandlers(mockService, new(MockAuthService)).GetSwapRequests(gctx)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "req-1")
		mockService.AssertExpectations(t)
	})

	t.Run("unknown direction", func(t *testing.T) {
		mockService := new(MockSwapService)

		gctx, recorder := testContext(t, http.MethodGet, "/api/swaps/requests?type=sideways", "")

		NewHandlers(mockService, new(MockAuthService)).GetSwapRequests(gctx)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		mockService.AssertNotCalled(t, "ListRequests")
	})
}

func TestHandlers_PostSignup(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		mockAuth := new(MockAuthService)
		mockAuth.On("Signup", mock.Anything, "Ada", "ada@example.com", "hunter2hunter2").
			Return(&User{Id: "user-1", Name: "Ada", Email: "ada@example.com"}, "a.jwt.token", nil)

		gctx, recorder := testContext(t, http.MethodPost, "/api/auth/signup",
			`{"name":"Ada","email":"ada@example.com","password":"hunter2hunter2"}`)

		NewHandlers(new(MockSwapService), mockAuth).PostSignup(gctx)

		assert.Equal(t, http.StatusCreated, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "a.jwt.token")
		assert.NotContains(t, recorder.Body.String(), "password")
	})

	t.Run("duplicate email", func(t *testing.T) {
		mockAuth := new(MockAuthService)
		mockAuth.On("Signup", mock.Anything, "Ada", "ada@example.com", "hunter2hunter2").
			Return(nil, "", fmt.Errorf("%w: email already registered", ErrConflict))

		gctx, recorder := testContext(t, http.MethodPost, "/api/auth/signup",
			`{"name":"Ada","email":"ada@example.com","password":"hunter2hunter2"}`)

		NewHandlers(new(MockSwapService), mockAuth).PostSignup(gctx)

		assert.Equal(t, http.StatusConflict, recorder.Code)
	})
}

func TestHandlers_PostLogin(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		mockAuth := new(MockAuthService)
		mockAuth.On("Login", mock.Anything, "ada@example.com", "hunter2hunter2").
			Return(&User{Id: "user-1"}, "a.jwt.token", nil)

		gctx, recorder := testContext(t, http.MethodPost, "/api/auth/login",
			`{"email":"ada@example.com","password":"hunter2hunter2"}`)

		NewHandlers(new(MockSwapService), mockAuth).PostLogin(gctx)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "a.jwt.token")
	})

	t.Run("bad credentials come back unauthorized", func(t *testing.T) {
		mockAuth := new(MockAuthService)
		mockAuth.On("Login", mock.Anything, "ada@example.com", "wrong").
			Return(nil, "", fmt.Errorf("%w: invalid credentials", ErrForbidden))

		gctx, recorder := testContext(t, http.MethodPost, "/api/auth/login",
			`{"email":"ada@example.com","password":"wrong"}`)

		NewHandlers(new(MockSwapService), mockAuth).PostLogin(gctx)

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "invalid credentials")
	})
}

func TestHttpStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		want int
	}{
		{name: "event not found", err: fmt.Errorf("%w: x", ErrEventNotFound), want: http.StatusNotFound},
		{name: "request not found", err: fmt.Errorf("%w: x", ErrSwapRequestNotFound), want: http.StatusNotFound},
		{name: "forbidden", err: fmt.Errorf("%w: x", ErrForbidden), want: http.StatusForbidden},
		{name: "invalid request", err: fmt.Errorf("%w: x", ErrInvalidRequest), want: http.StatusBadRequest},
		{name: "invalid state", err: fmt.Errorf("%w: x", ErrInvalidState), want: http.StatusBadRequest},
		{name: "conflict", err: fmt.Errorf("%w: x", ErrConflict), want: http.StatusConflict},
		{name: "store unavailable", err: fmt.Errorf("%w: x", ErrStoreUnavailable), want: http.StatusServiceUnavailable},
		{name: "anything else", err: fmt.Errorf("boom"), want: http.StatusInternalServerError},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.want, httpStatus(testCase.err))
		})
	}
}
