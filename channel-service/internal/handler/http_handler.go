package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-channels/channel-service/internal/audit"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/publish"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/registry"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/streamkey"
	"github.com/weiawesome/wes-io-channels/pkg/log"
	"github.com/weiawesome/wes-io-channels/pkg/middleware"
	"github.com/weiawesome/wes-io-channels/pkg/response"
)

// Handler handles HTTP requests for channel service.
type Handler struct {
	registry       *registry.Registry
	codec          *streamkey.Codec
	tokenTTL       time.Duration
	orchestrator   *publish.Orchestrator
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler. authMiddleware may be nil, which
// leaves stream key issuance open.
func NewHandler(
	reg *registry.Registry,
	codec *streamkey.Codec,
	tokenTTL time.Duration,
	orchestrator *publish.Orchestrator,
	authMiddleware *middleware.AuthMiddleware,
) *Handler {
	return &Handler{
		registry:       reg,
		codec:          codec,
		tokenTTL:       tokenTTL,
		orchestrator:   orchestrator,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/stream-token", h.authMiddleware.RequireAuth(), h.IssueStreamToken)

	// Media server webhooks. nginx-rtmp posts a form, other servers use GET.
	for _, path := range []string{"/publish-start", "/rtmp/on-publish"} {
		r.GET(path, h.PublishStart)
		r.POST(path, h.PublishStart)
	}
	for _, path := range []string{"/publish-stop", "/rtmp/on-publish-done"} {
		r.GET(path, h.PublishStop)
		r.POST(path, h.PublishStop)
	}

	api := r.Group("/api/v1")
	{
		channels := api.Group("/channels")
		{
			channels.GET("", h.ListChannels)
			channels.GET("/:channelId/rooms/:roomTitle", h.GetRoom)
		}
	}
}

// IssueStreamToken signs a stream key for a room's host.
func (h *Handler) IssueStreamToken(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	channelParam := c.Query("channelId")
	if channelParam == "" {
		channelParam = c.Query("namespaceId")
	}
	channelID, err := strconv.Atoi(channelParam)
	roomTitle := c.Query("roomTitle")
	hostID := c.Query("hostId")
	if err != nil || roomTitle == "" || hostID == "" {
		response.BadRequest(c, "Invalid query")
		return
	}

	if middleware.IsAuthenticated(c) && middleware.GetUserID(c) != hostID {
		response.Forbidden(c, "token subject does not match hostId")
		return
	}

	issued, err := h.codec.Issue(streamkey.Payload{
		HostID:    hostID,
		ChannelID: channelID,
		RoomTitle: roomTitle,
	}, h.tokenTTL)
	if err != nil {
		l.Error().Err(err).Msg("failed to issue stream token")
		response.InternalError(c, "failed to issue stream token")
		return
	}

	audit.LogWithDetail(ctx, audit.ActionTokenIssued, hostID, roomTitle, "stream token issued")
	c.JSON(http.StatusOK, issued)
}

// PublishStart authorises a publish. The media server only looks at the status.
func (h *Handler) PublishStart(c *gin.Context) {
	err := h.orchestrator.OnPublishStart(c.Request.Context(), streamName(c))
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, publish.ErrBadQuery):
		c.String(http.StatusBadRequest, err.Error())
	default:
		c.String(http.StatusForbidden, "deny: "+err.Error())
	}
}

// PublishStop clears the stream. It always succeeds.
func (h *Handler) PublishStop(c *gin.Context) {
	h.orchestrator.OnPublishStop(c.Request.Context(), streamName(c))
	c.Status(http.StatusNoContent)
}

// ListChannels returns every channel with its rooms.
func (h *Handler) ListChannels(c *gin.Context) {
	response.Success(c, h.registry.Channels())
}

// GetRoom returns a room's members and live state.
func (h *Handler) GetRoom(c *gin.Context) {
	channelID, err := strconv.Atoi(c.Param("channelId"))
	if err != nil {
		response.BadRequest(c, "invalid channel id")
		return
	}

	summary, err := h.registry.Room(registry.RoomRef{ChannelID: channelID, Title: c.Param("roomTitle")})
	if err != nil {
		var regErr *registry.Error
		if errors.As(err, &regErr) {
			response.NotFound(c, regErr.Message)
			return
		}
		response.InternalError(c, "failed to get room")
		return
	}

	response.Success(c, summary)
}

func streamName(c *gin.Context) string {
	if name := c.Query("name"); name != "" {
		return name
	}
	return c.PostForm("name")
}
