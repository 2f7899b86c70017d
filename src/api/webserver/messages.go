package webserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/workmesh/workmesh/src/api/chat"
)

type Messages struct {
	chat *chat.Service
}

func NewMessages(svc *chat.Service) Messages {
	return Messages{chat: svc}
}

func (m Messages) Create(c *gin.Context) {
	jobID, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	var req struct {
		FreelancerID uint64 `json:"freelancerId" binding:"required"`
		Message      string `json:"message" binding:"required"`
		FileURL      string `json:"fileUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	msg, err := m.chat.Send(c.Request.Context(), jobID, req.FreelancerID, accountID(c), req.Message, req.FileURL)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": msg.ID})
}

func (m Messages) List(c *gin.Context) {
	jobID, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	freelancerID, _ := strconv.ParseUint(c.Query("freelancerId"), 10, 64)
	msgs, err := m.chat.List(c.Request.Context(), jobID, freelancerID, accountID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (m Messages) Delete(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	if err := m.chat.Delete(c.Request.Context(), id, accountID(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
