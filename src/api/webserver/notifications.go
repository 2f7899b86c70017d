package webserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/workmesh/workmesh/src/api/notify"
)

type Notifications struct {
	dispatcher *notify.Dispatcher
}

func NewNotifications(d *notify.Dispatcher) Notifications {
	return Notifications{dispatcher: d}
}

func (n Notifications) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	out, err := n.dispatcher.List(c.Request.Context(), accountID(c), page)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "could not list notifications"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (n Notifications) MarkAllRead(c *gin.Context) {
	if err := n.dispatcher.MarkAllRead(c.Request.Context(), accountID(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "could not update notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
