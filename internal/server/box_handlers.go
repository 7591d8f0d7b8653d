package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/dyluth/osechi/internal/arbiter"
	"github.com/dyluth/osechi/pkg/box"
	"github.com/gin-gonic/gin"
)

// SnapshotResponse is the body of GET /api/box and of each stream event.
type SnapshotResponse struct {
	Tiers   []box.Tier `json:"tiers"`
	Filled  int        `json:"filled"`
	Loading bool       `json:"loading"`
	Error   string     `json:"error,omitempty"`
}

func (s *Server) snapshotResponse(b *box.Box) SnapshotResponse {
	resp := SnapshotResponse{
		Tiers:   b.Tiers,
		Filled:  b.Filled(),
		Loading: s.deps.Box.Loading(),
	}
	if err := s.deps.Box.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func (s *Server) handleSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshotResponse(s.deps.Box.Snapshot()))
}

// handleEvents streams one "snapshot" event per mirror change, starting
// with the current state.
func (s *Server) handleEvents(c *gin.Context) {
	ctx := c.Request.Context()
	updates := s.deps.Box.Watch(ctx)

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case b, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("snapshot", s.snapshotResponse(b))
			return true
		}
	})
}

// position parses and range-checks the slot path parameters.
func (s *Server) position(c *gin.Context) (int, int, bool) {
	tier, errT := strconv.Atoi(c.Param("tier"))
	slot, errS := strconv.Atoi(c.Param("slot"))
	if errT != nil || errS != nil || !s.deps.Box.Snapshot().Contains(tier, slot) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no such slot"})
		return 0, 0, false
	}
	return tier, slot, true
}

func (s *Server) handleClaim(c *gin.Context) {
	tier, slot, ok := s.position(c)
	if !ok {
		return
	}

	var payload arbiter.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result := s.deps.Engine.As(principal(c)).Claim(tier, slot, payload)
	c.JSON(resultStatus(result), result)
}

func (s *Server) handleRelease(c *gin.Context) {
	tier, slot, ok := s.position(c)
	if !ok {
		return
	}

	result := s.deps.Engine.As(principal(c)).Release(tier, slot)
	c.JSON(resultStatus(result), result)
}

func resultStatus(r arbiter.Result) int {
	if r.Success {
		return http.StatusOK
	}
	switch r.Reason {
	case arbiter.ReasonInvalidAttribute, arbiter.ReasonMissingRequiredField:
		return http.StatusUnprocessableEntity
	case arbiter.ReasonNotOwner:
		return http.StatusForbidden
	default:
		return http.StatusConflict
	}
}
