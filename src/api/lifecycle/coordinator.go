package lifecycle

import (
	"context"
	"errors"
	"log"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/workmesh/workmesh/src/api/types"
)

// Notifier persists notification rows inside the coordinator's transaction
// and pushes them to live subscribers after commit.
type Notifier interface {
	PersistTx(tx *gorm.DB, effects []NotifyAccount) ([]types.Notification, error)
	Publish(rows []types.Notification)
}

// Coordinator applies engine outcomes atomically against the store. Every
// transition is one transaction: all row mutations, inserts and notification
// rows commit together or not at all. Status flips are guarded conditional
// updates so concurrent callers race on the database, not in memory.
type Coordinator struct {
	db     *gorm.DB
	notify Notifier
}

func NewCoordinator(db *gorm.DB, n Notifier) *Coordinator {
	return &Coordinator{db: db, notify: n}
}

// AcceptProposal accepts the (jobID, freelancerID) proposal on behalf of the
// job's client, rejecting all sibling proposals.
func (c *Coordinator) AcceptProposal(ctx context.Context, jobID, freelancerID, actorID uint64) (types.Proposal, error) {
	db := c.db.WithContext(ctx)

	var job types.Job
	if err := db.First(&job, "id = ?", jobID).Error; err != nil {
		return types.Proposal{}, classify(err)
	}
	if job.ClientID != actorID {
		return types.Proposal{}, ErrUnauthorized
	}
	var prop types.Proposal
	if err := db.First(&prop, "job_id = ? AND freelancer_id = ?", jobID, freelancerID).Error; err != nil {
		return types.Proposal{}, classify(err)
	}
	var siblings []types.Proposal
	if err := db.Find(&siblings, "job_id = ? AND freelancer_id <> ?", jobID, freelancerID).Error; err != nil {
		return types.Proposal{}, classify(err)
	}

	out, err := AcceptProposal(job, prop, siblings)
	if err != nil {
		return types.Proposal{}, err
	}

	var pushed []types.Notification
	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&types.Job{}).
			Where("id = ? AND status = ?", job.ID, types.JobOpen).
			Update("status", types.JobInProgress)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrJobNotOpen
		}
		res = tx.Model(&types.Proposal{}).
			Where("job_id = ? AND freelancer_id = ? AND status = ?", jobID, freelancerID, types.ProposalPending).
			Update("status", types.ProposalAccepted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrProposalNotPending
		}
		if err := tx.Model(&types.Proposal{}).
			Where("job_id = ? AND freelancer_id <> ? AND status = ?", jobID, freelancerID, types.ProposalPending).
			Update("status", types.ProposalRejected).Error; err != nil {
			return err
		}
		pushed, err = c.applyEffects(tx, out.Effects)
		return err
	})
	if err != nil {
		return types.Proposal{}, classify(err)
	}
	c.notify.Publish(pushed)
	return out.Accepted, nil
}

// CompleteMilestone completes one pending milestone of the accepted
// engagement: the milestone flips, a payment row is created, the freelancer
// balance grows, and the job completes once no pending milestones remain.
// Exactly one of two concurrent calls for the same milestone can win; the
// loser fails on the conditional update or the payment unique index.
func (c *Coordinator) CompleteMilestone(ctx context.Context, jobID, freelancerID uint64, ord uint32, actorID uint64) (types.Milestone, error) {
	db := c.db.WithContext(ctx)

	var job types.Job
	if err := db.First(&job, "id = ?", jobID).Error; err != nil {
		return types.Milestone{}, classify(err)
	}
	if job.ClientID != actorID {
		return types.Milestone{}, ErrUnauthorized
	}
	var prop types.Proposal
	if err := db.First(&prop, "job_id = ? AND freelancer_id = ?", jobID, freelancerID).Error; err != nil {
		return types.Milestone{}, classify(err)
	}
	var ms types.Milestone
	if err := db.First(&ms, "job_id = ? AND freelancer_id = ? AND ord = ?", jobID, freelancerID, ord).Error; err != nil {
		return types.Milestone{}, classify(err)
	}
	var pendingLeft int64
	if err := db.Model(&types.Milestone{}).
		Where("job_id = ? AND freelancer_id = ? AND status = ? AND id <> ?",
			jobID, freelancerID, types.MilestonePending, ms.ID).
		Count(&pendingLeft).Error; err != nil {
		return types.Milestone{}, classify(err)
	}

	out, err := CompleteMilestone(job, prop, ms, int(pendingLeft))
	if err != nil {
		return types.Milestone{}, err
	}

	var pushed []types.Notification
	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&types.Milestone{}).
			Where("id = ? AND status = ?", ms.ID, types.MilestonePending).
			Update("status", types.MilestoneCompleted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrMilestoneNotPending
		}
		pushed, err = c.applyEffects(tx, out.Effects)
		if err != nil {
			return err
		}
		// pending check and job flip are a single statement. A separate
		// COUNT would be a snapshot read under MySQL and could miss a
		// sibling completion committing concurrently; the NOT EXISTS
		// subquery inside the UPDATE is a current read.
		return tx.Model(&types.Job{}).
			Where("id = ? AND status = ?", jobID, types.JobInProgress).
			Where("NOT EXISTS (SELECT 1 FROM milestones WHERE job_id = ? AND freelancer_id = ? AND status = ?)",
				jobID, freelancerID, types.MilestonePending).
			Update("status", types.JobCompleted).Error
	})
	if err != nil {
		return types.Milestone{}, classify(err)
	}
	c.notify.Publish(pushed)
	return out.Milestone, nil
}

// RequestWithdrawal opens a pending withdrawal, debiting the freelancer
// balance in the same transaction. The guard on the debit keeps the balance
// non-negative whatever the caller raced against.
func (c *Coordinator) RequestWithdrawal(ctx context.Context, freelancerID uint64, amount decimal.Decimal) (types.Withdrawal, error) {
	db := c.db.WithContext(ctx)

	var acct types.Account
	if err := db.First(&acct, "id = ?", freelancerID).Error; err != nil {
		return types.Withdrawal{}, classify(err)
	}
	if acct.Role != types.RoleFreelancer {
		return types.Withdrawal{}, ErrUnauthorized
	}

	out, err := RequestWithdrawal(acct, amount)
	if err != nil {
		return types.Withdrawal{}, err
	}

	w := out.Withdrawal
	err = db.Transaction(func(tx *gorm.DB) error {
		if _, err := c.applyEffects(tx, out.Effects); err != nil {
			return err
		}
		return tx.Create(&w).Error
	})
	if err != nil {
		return types.Withdrawal{}, classify(err)
	}
	return w, nil
}

// CompleteWithdrawal marks a pending withdrawal as paid out.
func (c *Coordinator) CompleteWithdrawal(ctx context.Context, id uint64) (types.Withdrawal, error) {
	db := c.db.WithContext(ctx)

	var w types.Withdrawal
	if err := db.First(&w, "id = ?", id).Error; err != nil {
		return types.Withdrawal{}, classify(err)
	}
	out, err := CompleteWithdrawal(w)
	if err != nil {
		return types.Withdrawal{}, err
	}

	var pushed []types.Notification
	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&types.Withdrawal{}).
			Where("id = ? AND status = ?", id, types.WithdrawalPending).
			Update("status", types.WithdrawalCompleted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrWithdrawalNotPending
		}
		pushed, err = c.applyEffects(tx, out.Effects)
		return err
	})
	if err != nil {
		return types.Withdrawal{}, classify(err)
	}
	c.notify.Publish(pushed)
	return out.Withdrawal, nil
}

// CancelWithdrawal deletes a pending withdrawal and refunds the balance.
// Reached both as a freelancer self-cancel and an admin reject; only the
// authorisation differs.
func (c *Coordinator) CancelWithdrawal(ctx context.Context, id, actorID uint64, admin bool) error {
	db := c.db.WithContext(ctx)

	var w types.Withdrawal
	if err := db.First(&w, "id = ?", id).Error; err != nil {
		return classify(err)
	}
	if !admin && w.FreelancerID != actorID {
		return ErrUnauthorized
	}
	out, err := CancelWithdrawal(w)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status = ?", id, types.WithdrawalPending).
			Delete(&types.Withdrawal{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrWithdrawalNotPending
		}
		_, err := c.applyEffects(tx, out.Effects)
		return err
	})
	return classify(err)
}

// applyEffects interprets the engine's ordered effect list inside tx.
// Notification rows are returned for the post-commit push.
func (c *Coordinator) applyEffects(tx *gorm.DB, effects []Effect) ([]types.Notification, error) {
	var notifies []NotifyAccount
	for _, e := range effects {
		switch e := e.(type) {
		case CreatePayment:
			p := types.Payment{
				JobID:        e.JobID,
				FreelancerID: e.FreelancerID,
				MilestoneOrd: e.MilestoneOrd,
				ClientID:     e.ClientID,
				Amount:       e.Amount,
				Status:       types.MilestoneCompleted,
			}
			if err := tx.Create(&p).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					// a concurrent completion already paid this milestone
					return nil, ErrMilestoneNotPending
				}
				return nil, err
			}
		case AdjustBalance:
			res := tx.Model(&types.Account{}).
				Where("id = ? AND balance + ? >= 0", e.AccountID, e.Delta).
				UpdateColumn("balance", gorm.Expr("balance + ?", e.Delta))
			if res.Error != nil {
				return nil, res.Error
			}
			if res.RowsAffected == 0 {
				return nil, ErrInsufficientBalance
			}
		case NotifyAccount:
			notifies = append(notifies, e)
		}
	}
	if len(notifies) == 0 {
		return nil, nil
	}
	return c.notify.PersistTx(tx, notifies)
}

// classify maps store errors onto the public taxonomy, logging the cause
// without exposing it.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	log.Printf("lifecycle: persistence failure: %v", err)
	return ErrPersistence
}
