package handlers

import (
	"net/http"
	"strconv"

	"checkers-platform/backend/internal/db"
	"checkers-platform/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// parsePage reads limit/offset query params and clamps them to sane bounds.
func parsePage(c *gin.Context, defaultLimit, maxLimit int) (limit, offset int) {
	limit = defaultLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if raw := c.Query("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}

// HandleListMyMatches returns the caller's matches, newest first, each with
// its move count.
func HandleListMyMatches(c *gin.Context, database *db.DB) {
	userID := c.GetInt64("userid")
	limit, offset := parsePage(c, 20, 100)

	status := c.DefaultQuery("status", "all")
	switch models.MatchStatus(status) {
	case models.StatusWaiting, models.StatusOngoing, models.StatusFinished, models.StatusAborted:
	default:
		if status != "all" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
			return
		}
	}

	counts := database.Model(&models.MatchMove{}).
		Select("matchid, COUNT(id) AS moves_count").
		Group("matchid")

	q := database.Model(&models.Match{}).
		Select("matches.*, COALESCE(mc.moves_count, 0) AS moves_count").
		Joins("LEFT JOIN (?) AS mc ON mc.matchid = matches.matchid", counts).
		Where("matches.whiteuser = ? OR matches.blackuser = ?", userID, userID)
	if status != "all" {
		q = q.Where("matches.status = ?", status)
	}

	var rows []models.MatchSummary
	if err := q.Order("matches.matchid DESC").Limit(limit).Offset(offset).Scan(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	if rows == nil {
		rows = []models.MatchSummary{}
	}

	c.JSON(http.StatusOK, rows)
}

// loadMatchForUser fetches a match by path param and checks the caller is a
// participant. Writes the error response itself and returns nil on failure.
func loadMatchForUser(c *gin.Context, database *db.DB) *models.Match {
	matchID, err := strconv.ParseInt(c.Param("matchid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid match id"})
		return nil
	}

	var m models.Match
	if err := database.Where("matchid = ?", matchID).First(&m).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Match not found"})
		return nil
	}

	if !m.HasUser(c.GetInt64("userid")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "User not in match"})
		return nil
	}

	return &m
}

// HandleGetMatch returns a single match the caller participated in.
func HandleGetMatch(c *gin.Context, database *db.DB) {
	m := loadMatchForUser(c, database)
	if m == nil {
		return
	}
	c.JSON(http.StatusOK, m)
}

// HandleGetMatchMoves returns a page of a match's move log in replay order.
func HandleGetMatchMoves(c *gin.Context, database *db.DB) {
	m := loadMatchForUser(c, database)
	if m == nil {
		return
	}
	limit, offset := parsePage(c, 100, 500)

	var total int64
	if err := database.Model(&models.MatchMove{}).Where("matchid = ?", m.MatchID).Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	var moves []models.MatchMove
	err := database.Where("matchid = ?", m.MatchID).
		Order("move_number ASC").
		Limit(limit).Offset(offset).
		Find(&moves).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"matchid": m.MatchID,
		"total":   total,
		"items":   moves,
	})
}
