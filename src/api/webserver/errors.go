package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/workmesh/workmesh/src/api/lifecycle"
)

// fail maps lifecycle error codes to HTTP statuses. Clients always see the
// stable code plus a human-readable message, never store internals.
func fail(c *gin.Context, err error) {
	code := lifecycle.Code(err)
	status := http.StatusInternalServerError
	switch code {
	case lifecycle.CodeInvalidTransition, lifecycle.CodeInsufficientBalance:
		status = http.StatusConflict
	case lifecycle.CodeNotFound:
		status = http.StatusNotFound
	case lifecycle.CodeUnauthorized:
		status = http.StatusForbidden
	}
	msg := err.Error()
	if code == lifecycle.CodePersistenceFailure {
		msg = lifecycle.ErrPersistence.Message
	}
	c.JSON(status, gin.H{"err": msg, "code": code})
}
