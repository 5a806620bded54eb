package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultChangesLimit = 20

func parseLimit(c *gin.Context, defaultLimit int) int {
	raw := c.DefaultQuery("limit", strconv.Itoa(defaultLimit))
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	return limit
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func respondNotFound(c *gin.Context, resource string) {
	respondError(c, http.StatusNotFound, resource+" not found")
}

func respondBadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, message)
}

func respondInternalError(c *gin.Context, message string) {
	respondError(c, http.StatusInternalServerError, message)
}

func respondUnavailable(c *gin.Context, message string) {
	respondError(c, http.StatusServiceUnavailable, message)
}
