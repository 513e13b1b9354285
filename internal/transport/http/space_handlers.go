package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirespace-server/internal/core"
	"github.com/vovakirdan/wirespace-server/internal/store"
)

// SpaceHandlers serves the space catalogue and live occupancy.
type SpaceHandlers struct {
	store store.SpaceStore
	rooms *core.Registry
	log   *zerolog.Logger
}

// NewSpaceHandlers creates a new space handlers instance.
func NewSpaceHandlers(st store.SpaceStore, rooms *core.Registry, logger *zerolog.Logger) *SpaceHandlers {
	return &SpaceHandlers{
		store: st,
		rooms: rooms,
		log:   logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateSpaceRequest represents the create space request body.
type CreateSpaceRequest struct {
	ID     string `json:"id" binding:"required,min=1,max=64"`
	Name   string `json:"name" binding:"max=128"`
	Width  int    `json:"width" binding:"required,min=1"`
	Height int    `json:"height" binding:"required,min=1"`
}

// SpaceResponse represents a space with its current occupancy.
type SpaceResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Members   int    `json:"members"`
	CreatedAt string `json:"created_at"`
}

// MemberResponse is one member in an occupancy listing.
type MemberResponse struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

// OccupancyResponse lists who is currently in a space.
type OccupancyResponse struct {
	SpaceID string           `json:"spaceId"`
	Members []MemberResponse `json:"members"`
}

// ListSpaces returns every stored space with its live member count.
// GET /api/spaces
func (h *SpaceHandlers) ListSpaces(c *gin.Context) {
	spaces, err := h.store.ListSpaces(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list spaces")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	live := make(map[string]int)
	for _, info := range h.rooms.Rooms() {
		live[info.ID] = info.MemberCount
	}

	resp := make([]SpaceResponse, 0, len(spaces))
	for _, sp := range spaces {
		resp = append(resp, spaceResponse(sp, live[sp.ID]))
	}
	c.JSON(http.StatusOK, resp)
}

// Occupancy returns the current members of one space.
// GET /api/spaces/:id/occupancy
func (h *SpaceHandlers) Occupancy(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.store.GetSpace(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "space not found"})
			return
		}
		h.log.Error().Err(err).Str("space_id", id).Msg("failed to get space")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	snapshot := h.rooms.Snapshot(id)
	members := make([]MemberResponse, 0, len(snapshot))
	for _, m := range snapshot {
		members = append(members, MemberResponse{UserID: m.ID, Name: m.Name, X: m.Position.X, Y: m.Position.Y})
	}
	c.JSON(http.StatusOK, OccupancyResponse{SpaceID: id, Members: members})
}

// CreateSpace adds a space to the catalogue.
// POST /api/spaces
func (h *SpaceHandlers) CreateSpace(c *gin.Context) {
	var req CreateSpaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create space request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	sp := &store.Space{ID: req.ID, Name: req.Name, Width: req.Width, Height: req.Height}
	if err := h.store.CreateSpace(c.Request.Context(), sp); err != nil {
		if errors.Is(err, store.ErrExists) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "space already exists"})
			return
		}
		h.log.Error().Err(err).Str("space_id", req.ID).Msg("failed to create space")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().
		Str("space_id", sp.ID).
		Str("by", c.GetString(ContextKeyUserID)).
		Int("width", sp.Width).
		Int("height", sp.Height).
		Msg("space created")
	c.JSON(http.StatusCreated, spaceResponse(sp, 0))
}

func spaceResponse(sp *store.Space, members int) SpaceResponse {
	return SpaceResponse{
		ID:        sp.ID,
		Name:      sp.Name,
		Width:     sp.Width,
		Height:    sp.Height,
		Members:   members,
		CreatedAt: sp.CreatedAt.Format(time.RFC3339),
	}
}
