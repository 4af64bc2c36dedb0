package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const staleWindow = 24 * time.Hour

// StaleListings counts the listings of a store not seen since the given instant. The
// default window is the last 24 hours.
func (s *Server) StaleListings(c *gin.Context) {
	store := strings.ToLower(strings.TrimSpace(c.Param("store")))
	since := s.clock.Now().UTC().Add(-staleWindow)
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("since", "invalid_timestamp", "since must be an RFC 3339 timestamp"))
			return
		}
		since = parsed
	}

	n, err := s.writer.StaleListings(c.Request.Context(), s.db.WithContext(c.Request.Context()), store, since)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"store": store,
		"since": since.UTC().Format(time.RFC3339),
		"stale": n,
	})
}

func (s *Server) ListingHistory(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "id must be a listing id"))
		return
	}

	items, err := s.writer.History(c.Request.Context(), s.db.WithContext(c.Request.Context()), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}
