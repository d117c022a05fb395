package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ParamID parses the named path parameter as a uuid. On failure it writes a
// 400 and returns false.
func ParamID(c *gin.Context, name, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse(fmt.Sprintf("Invalid %s id", resource)))
		return uuid.Nil, false
	}
	return id, true
}
