package webserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/workmesh/workmesh/src/api/lifecycle"
	"github.com/workmesh/workmesh/src/api/types"
)

type Withdrawals struct {
	db    *gorm.DB
	coord *lifecycle.Coordinator
}

func NewWithdrawals(db *gorm.DB, coord *lifecycle.Coordinator) Withdrawals {
	return Withdrawals{db: db, coord: coord}
}

func (w Withdrawals) Request(c *gin.Context) {
	var req struct {
		Amount decimal.Decimal `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	wd, err := w.coord.RequestWithdrawal(c.Request.Context(), accountID(c), req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"withdrawal": wd})
}

func (w Withdrawals) List(c *gin.Context) {
	var rows []types.Withdrawal
	if err := w.db.Where("freelancer_id = ?", accountID(c)).
		Order("created_at desc").Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": rows})
}

// Cancel is the freelancer self-cancel of a pending withdrawal.
func (w Withdrawals) Cancel(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	if err := w.coord.CancelWithdrawal(c.Request.Context(), id, accountID(c), false); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refunded": true})
}

// AdminComplete marks a pending withdrawal as paid out.
func (w Withdrawals) AdminComplete(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	wd, err := w.coord.CompleteWithdrawal(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawal": wd})
}

// AdminReject deletes a pending withdrawal and refunds the freelancer.
// Same transition as the self-cancel, different authorisation.
func (w Withdrawals) AdminReject(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	if err := w.coord.CancelWithdrawal(c.Request.Context(), id, accountID(c), true); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refunded": true})
}
