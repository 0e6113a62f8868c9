package matchmaking

import (
	"errors"
	"net/http"
	"strconv"

	"checkers-platform/backend/internal/match"

	"github.com/gin-gonic/gin"
)

// HandleFind serves POST /api/v1/matchmaking/find.
func HandleFind(c *gin.Context, service *Service) {
	userID := c.GetInt64("userid")

	result, err := service.FindOrCreate(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Matchmaking failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleResign serves POST /api/v1/matchmaking/:matchid/resign.
func HandleResign(c *gin.Context, service *Service) {
	userID := c.GetInt64("userid")

	matchID, err := strconv.ParseInt(c.Param("matchid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid match id"})
		return
	}

	m, err := service.Resign(c.Request.Context(), matchID, userID)
	if err != nil {
		switch {
		case errors.Is(err, match.ErrMatchNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Match not found"})
		case errors.Is(err, match.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this match"})
		case errors.Is(err, match.ErrMatchNotOngoing):
			c.JSON(http.StatusConflict, gin.H{"error": "Match not ongoing"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Resign failed"})
		}
		return
	}

	c.JSON(http.StatusOK, m)
}
