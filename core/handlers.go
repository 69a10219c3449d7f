package core

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"slotswap/pkg/auth"
)

type Handlers interface {
	PostSignup(gctx *gin.Context)
	PostLogin(gctx *gin.Context)
	PostEvents(gctx *gin.Context)
	GetEvents(gctx *gin.Context)
	GetEventsById(gctx *gin.Context)
	PutEvents(gctx *gin.Context)
	DeleteEvents(gctx *gin.Context)
	PostEventsOffer(gctx *gin.Context)
	GetSwappableSlots(gctx *gin.Context)
	GetSwapRequests(gctx *gin.Context)
	PostSwapRequests(gctx *gin.Context)
	PostSwapResponses(gctx *gin.Context)
}

type handlers struct {
	service     SwapService
	authService AuthService
}

func NewHandlers(service SwapService, authService AuthService) Handlers {
	return &handlers{service: service, authService: authService}
}

// httpStatus maps the engine's error kinds onto status codes. The JSON body
// keeps the wrapped message so clients can tell the kinds apart.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrEventNotFound), errors.Is(err, ErrSwapRequestNotFound), errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWith(gctx *gin.Context, message string, err error) {
	log.Ctx(gctx.Request.Context()).Error().Err(err).Msg(message)
	gctx.AbortWithStatusJSON(httpStatus(err), NewError(message, err))
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func (h *handlers) PostSignup(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var req signupRequest

	err := gctx.ShouldBindJSON(&req)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("failed to bind JSON", err))

		return
	}

	user, token, err := h.authService.Signup(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		abortWith(gctx, "signup failed", err)
		return
	}

	gctx.JSON(http.StatusCreated, authResponse{Token: token, User: user})
}

func (h *handlers) PostLogin(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var req loginRequest

	err := gctx.ShouldBindJSON(&req)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("failed to bind JSON", err))

		return
	}

	user, token, err := h.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		// Bad credentials come back 401, not 403: the caller is unidentified.
		if errors.Is(err, ErrForbidden) {
			gctx.AbortWithStatusJSON(http.StatusUnauthorized, NewError("invalid credentials"))
			return
		}

		abortWith(gctx, "login failed", err)

		return
	}

	gctx.JSON(http.StatusOK, authResponse{Token: token, User: user})
}

func (h *handlers) PostEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var event Event

	err := gctx.ShouldBindJSON(&event)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("failed to bind JSON", err))

		return
	}

	saved, err := h.service.CreateEvent(ctx, gctx.GetString(auth.IdentityKey), &event)
	if err != nil {
		abortWith(gctx, "creating event failed", err)
		return
	}

	gctx.JSON(http.StatusCreated, saved)
}

func (h *handlers) GetEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	events, err := h.service.ListEvents(ctx, gctx.GetString(auth.IdentityKey))
	if err != nil {
		abortWith(gctx, "listing events failed", err)
		return
	}

	gctx.JSON(http.StatusOK, events)
}

func (h *handlers) GetEventsById(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	id := gctx.Param("id")
	if len(id) == 0 {
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("parameter 'id' is required"))
		return
	}

	event, err := h.service.GetEvent(ctx, id)
	if err != nil {
		abortWith(gctx, "fetching event failed", err)
		return
	}

	gctx.JSON(http.StatusOK, event)
}

func (h *handlers) PutEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	id := gctx.Param("id")
	if len(id) == 0 {
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("parameter 'id' is required"))
		return
	}

	var patch EventPatch

	err := gctx.ShouldBindJSON(&patch)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("failed to bind JSON", err))

		return
	}

	updated, err := h.service.UpdateEvent(ctx, gctx.GetString(auth.IdentityKey), id, patch)
	if err != nil {
		abortWith(gctx, "updating event failed", err)
		return
	}

	gctx.JSON(http.StatusOK, updated)
}

func (h *handlers) DeleteEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	id := gctx.Param("id")
	if len(id) == 0 {
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("parameter 'id' is required"))
		return
	}

	err := h.service.DeleteEvent(ctx, gctx.GetString(auth.IdentityKey), id)
	if err != nil {
		abortWith(gctx, "deleting event failed", err)
		return
	}

	gctx.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handlers) PostEventsOffer(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	id := gctx.Param("id")
	if len(id) == 0 {
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("parameter 'id' is required"))
		return
	}

	offered, err := h.service.OfferEvent(ctx, gctx.GetString(auth.IdentityKey), id)
	if err != nil {
		abortWith(gctx, "offering slot failed", err)
		return
	}

	gctx.JSON(http.StatusOK, offered)
}

func (h *handlers) GetSwappableSlots(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	slots, err := h.service.ListSwappableSlots(ctx, gctx.GetString(auth.IdentityKey))
	if err != nil {
		abortWith(gctx, "listing swappable slots failed", err)
		return
	}

	gctx.JSON(http.StatusOK, slots)
}

func (h *handlers) GetSwapRequests(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	direction := Direction(gctx.Query("type"))

	switch direction {
	case DirectionIncoming, DirectionOutgoing, DirectionAll:
	default:
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("parameter 'type' must be incoming or outgoing"))
		return
	}

	requests, err := h.service.ListRequests(ctx, gctx.GetString(auth.IdentityKey), direction)
	if err != nil {
		abortWith(gctx, "listing swap requests failed", err)
		return
	}

	gctx.JSON(http.StatusOK, requests)
}

type proposeRequest struct {
	MySlotId    string `json:"my_slot_id"`
	TheirSlotId string `json:"their_slot_id"`
}

func (h *handlers) PostSwapRequests(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var req proposeRequest

	err := gctx.ShouldBindJSON(&req)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("failed to bind JSON", err))

		return
	}

	created, err := h.service.Propose(ctx, gctx.GetString(auth.IdentityKey), req.MySlotId, req.TheirSlotId)
	if err != nil {
		abortWith(gctx, "proposing swap failed", err)
		return
	}

	gctx.JSON(http.StatusCreated, created)
}

type respondRequest struct {
	Accepted bool `json:"accepted"`
}

func (h *handlers) PostSwapResponses(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	id := gctx.Param("requestId")
	if len(id) == 0 {
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("parameter 'requestId' is required"))
		return
	}

	var req respondRequest

	err := gctx.ShouldBindJSON(&req)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("failed to bind JSON", err))

		return
	}

	resolved, err := h.service.Respond(ctx, gctx.GetString(auth.IdentityKey), id, req.Accepted)
	if err != nil {
		abortWith(gctx, "responding to swap failed", err)
		return
	}

	gctx.JSON(http.StatusOK, resolved)
}
