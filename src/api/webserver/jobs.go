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

type Jobs struct {
	db    *gorm.DB
	coord *lifecycle.Coordinator
}

func NewJobs(db *gorm.DB, coord *lifecycle.Coordinator) Jobs {
	return Jobs{db: db, coord: coord}
}

func (j Jobs) Create(c *gin.Context) {
	var req struct {
		Title       string          `json:"title" binding:"required,max=255"`
		Description string          `json:"description"`
		Budget      decimal.Decimal `json:"budget" binding:"required"`
		CategoryID  uint32          `json:"categoryId"`
		Duration    uint32          `json:"duration"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if c.GetString("role") != types.RoleClient {
		c.JSON(http.StatusForbidden, gin.H{"err": "only clients can post jobs"})
		return
	}
	if req.Budget.LessThanOrEqual(decimal.Zero) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "budget must be positive"})
		return
	}
	job := types.Job{
		ClientID:    accountID(c),
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
		Duration:    req.Duration,
		Status:      types.JobOpen,
	}
	if err := j.db.Create(&job).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": job.ID})
}

func (j Jobs) List(c *gin.Context) {
	q := j.db.Model(&types.Job{}).Order("created_at desc")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	} else {
		q = q.Where("status = ?", types.JobOpen)
	}
	if cat := c.Query("category"); cat != "" {
		id, _ := strconv.ParseUint(cat, 10, 32)
		q = q.Where("category_id = ?", uint32(id))
	}
	var jobs []types.Job
	if err := q.Limit(50).Find(&jobs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (j Jobs) Get(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	var job types.Job
	if err := j.db.First(&job, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "job not found"})
		return
	}
	var proposals []types.Proposal
	if err := j.db.Preload("Milestones").Find(&proposals, "job_id = ?", id).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job, "proposals": proposals})
}

func (j Jobs) SubmitProposal(c *gin.Context) {
	jobID, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	var req struct {
		CoverLetter string `json:"coverLetter" binding:"required"`
		Milestones  []struct {
			Ord    uint32          `json:"ord" binding:"required,min=1"`
			Name   string          `json:"name" binding:"required,max=255"`
			Amount decimal.Decimal `json:"amount" binding:"required"`
		} `json:"milestones" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if c.GetString("role") != types.RoleFreelancer {
		c.JSON(http.StatusForbidden, gin.H{"err": "only freelancers can submit proposals"})
		return
	}
	seen := make(map[uint32]bool, len(req.Milestones))
	for _, m := range req.Milestones {
		if m.Amount.LessThanOrEqual(decimal.Zero) {
			c.JSON(http.StatusBadRequest, gin.H{"err": "milestone amounts must be positive"})
			return
		}
		if seen[m.Ord] {
			c.JSON(http.StatusBadRequest, gin.H{"err": "duplicate milestone order"})
			return
		}
		seen[m.Ord] = true
	}

	var job types.Job
	if err := j.db.First(&job, "id = ?", jobID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "job not found"})
		return
	}
	if job.Status != types.JobOpen {
		c.JSON(http.StatusConflict, gin.H{"err": "job is not open", "code": lifecycle.CodeInvalidTransition})
		return
	}

	freelancerID := accountID(c)
	prop := types.Proposal{
		JobID:        jobID,
		FreelancerID: freelancerID,
		CoverLetter:  req.CoverLetter,
		Status:       types.ProposalPending,
	}
	err := j.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&prop).Error; err != nil {
			return err
		}
		for _, m := range req.Milestones {
			ms := types.Milestone{
				JobID:        jobID,
				FreelancerID: freelancerID,
				Ord:          m.Ord,
				Name:         m.Name,
				Amount:       m.Amount,
				Status:       types.MilestonePending,
			}
			if err := tx.Create(&ms).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"err": "proposal already submitted"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"jobId": jobID, "freelancerId": freelancerID})
}

func (j Jobs) AcceptProposal(c *gin.Context) {
	jobID, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	freelancerID, _ := strconv.ParseUint(c.Param("freelancerId"), 10, 64)

	prop, err := j.coord.AcceptProposal(c.Request.Context(), jobID, freelancerID, accountID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposal": prop})
}

func (j Jobs) CompleteMilestone(c *gin.Context) {
	jobID, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	ord, _ := strconv.ParseUint(c.Param("ord"), 10, 32)
	var req struct {
		FreelancerID uint64 `json:"freelancerId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	ms, err := j.coord.CompleteMilestone(c.Request.Context(), jobID, req.FreelancerID, uint32(ord), accountID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestone": ms})
}
