package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/remidosol/express-library-api/internal/domain/fault"
)

func respondError(c *gin.Context, err error) {
	switch fault.KindOf(err) {
	case fault.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case fault.KindConflict:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case fault.KindInvalid:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case fault.KindUnavailable:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
