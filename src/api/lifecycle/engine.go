package lifecycle

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/workmesh/workmesh/src/api/types"
)

// The engine is pure decision logic: given current entity states and a
// requested transition it returns the next states plus an ordered effect
// list, or a typed error. It performs no I/O; the Coordinator interprets
// the outcome against the store.

// Effect is a closed set of side effects produced by a transition.
type Effect interface{ effect() }

type CreatePayment struct {
	JobID        uint64
	FreelancerID uint64
	ClientID     uint64
	MilestoneOrd uint32
	Amount       decimal.Decimal
}

type AdjustBalance struct {
	AccountID uint64
	Delta     decimal.Decimal
}

type NotifyAccount struct {
	AccountID uint64
	Type      string
	Message   string
	URL       string
}

func (CreatePayment) effect() {}
func (AdjustBalance) effect() {}
func (NotifyAccount) effect() {}

type AcceptOutcome struct {
	Job      types.Job
	Accepted types.Proposal
	Rejected []types.Proposal
	Effects  []Effect
}

// AcceptProposal accepts one pending proposal on an open job, rejecting
// every sibling proposal still pending. At most one proposal per job can
// ever be accepted.
func AcceptProposal(job types.Job, p types.Proposal, siblings []types.Proposal) (AcceptOutcome, error) {
	if job.Status != types.JobOpen {
		return AcceptOutcome{}, ErrJobNotOpen
	}
	if p.Status != types.ProposalPending {
		return AcceptOutcome{}, ErrProposalNotPending
	}
	if p.JobID != job.ID {
		return AcceptOutcome{}, ErrNotFound
	}

	job.Status = types.JobInProgress
	p.Status = types.ProposalAccepted

	var rejected []types.Proposal
	for _, s := range siblings {
		if s.FreelancerID == p.FreelancerID || s.Status != types.ProposalPending {
			continue
		}
		s.Status = types.ProposalRejected
		rejected = append(rejected, s)
	}

	out := AcceptOutcome{
		Job:      job,
		Accepted: p,
		Rejected: rejected,
		Effects: []Effect{
			NotifyAccount{
				AccountID: p.FreelancerID,
				Type:      types.NotifyProposalAccepted,
				Message:   fmt.Sprintf("Your proposal for %q was accepted", job.Title),
				URL:       fmt.Sprintf("/jobs/%d", job.ID),
			},
		},
	}
	return out, nil
}

type CompleteOutcome struct {
	Job          types.Job
	Milestone    types.Milestone
	JobCompleted bool
	Effects      []Effect
}

// CompleteMilestone releases one milestone of an accepted engagement:
// milestone goes completed, a payment is created, the freelancer balance
// grows by the milestone amount, and the job completes once no pending
// milestones remain. pendingLeft is the count of the proposal's other
// still-pending milestones; Ord is advisory ordering only, so a
// later-ordered milestone may complete first.
func CompleteMilestone(job types.Job, p types.Proposal, m types.Milestone, pendingLeft int) (CompleteOutcome, error) {
	if m.Status != types.MilestonePending {
		return CompleteOutcome{}, ErrMilestoneNotPending
	}
	if p.Status != types.ProposalAccepted {
		return CompleteOutcome{}, ErrProposalNotAccepted
	}
	if job.Status != types.JobInProgress {
		return CompleteOutcome{}, ErrJobNotInProgress
	}
	if m.JobID != job.ID || m.JobID != p.JobID || m.FreelancerID != p.FreelancerID {
		return CompleteOutcome{}, ErrMilestoneMismatch
	}

	m.Status = types.MilestoneCompleted
	out := CompleteOutcome{Milestone: m, Job: job}
	if pendingLeft == 0 {
		out.Job.Status = types.JobCompleted
		out.JobCompleted = true
	}

	jobURL := fmt.Sprintf("/jobs/%d", job.ID)
	out.Effects = []Effect{
		CreatePayment{
			JobID:        job.ID,
			FreelancerID: m.FreelancerID,
			ClientID:     job.ClientID,
			MilestoneOrd: m.Ord,
			Amount:       m.Amount,
		},
		AdjustBalance{AccountID: m.FreelancerID, Delta: m.Amount},
		NotifyAccount{
			AccountID: m.FreelancerID,
			Type:      types.NotifyMilestoneCompleted,
			Message:   fmt.Sprintf("Milestone %q on %q was completed", m.Name, job.Title),
			URL:       jobURL,
		},
		NotifyAccount{
			AccountID: m.FreelancerID,
			Type:      types.NotifyPaymentReceived,
			Message:   fmt.Sprintf("You received a payment of %s for %q", m.Amount.StringFixed(2), m.Name),
			URL:       jobURL,
		},
	}
	return out, nil
}

type WithdrawalOutcome struct {
	Withdrawal types.Withdrawal
	Effects    []Effect
}

// RequestWithdrawal debits the freelancer balance and opens a pending
// withdrawal. The balance can never go negative.
func RequestWithdrawal(freelancer types.Account, amount decimal.Decimal) (WithdrawalOutcome, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return WithdrawalOutcome{}, ErrInvalidAmount
	}
	if amount.GreaterThan(freelancer.Balance) {
		return WithdrawalOutcome{}, ErrInsufficientBalance
	}
	out := WithdrawalOutcome{
		Withdrawal: types.Withdrawal{
			FreelancerID: freelancer.ID,
			Amount:       amount,
			Status:       types.WithdrawalPending,
		},
		Effects: []Effect{
			AdjustBalance{AccountID: freelancer.ID, Delta: amount.Neg()},
		},
	}
	return out, nil
}

// CompleteWithdrawal marks a pending withdrawal paid out. The balance was
// already debited at request time.
func CompleteWithdrawal(w types.Withdrawal) (WithdrawalOutcome, error) {
	if w.Status != types.WithdrawalPending {
		return WithdrawalOutcome{}, ErrWithdrawalNotPending
	}
	w.Status = types.WithdrawalCompleted
	out := WithdrawalOutcome{
		Withdrawal: w,
		Effects: []Effect{
			NotifyAccount{
				AccountID: w.FreelancerID,
				Type:      types.NotifyWithdrawalCompleted,
				Message:   fmt.Sprintf("Your withdrawal of %s was completed", w.Amount.StringFixed(2)),
				URL:       "/withdrawals",
			},
		},
	}
	return out, nil
}

// CancelWithdrawal rejects a pending withdrawal and refunds the balance.
// Shared by the freelancer self-cancel and the admin reject paths, which
// differ only in authorisation.
func CancelWithdrawal(w types.Withdrawal) (WithdrawalOutcome, error) {
	if w.Status != types.WithdrawalPending {
		return WithdrawalOutcome{}, ErrWithdrawalNotPending
	}
	out := WithdrawalOutcome{
		Withdrawal: w,
		Effects: []Effect{
			AdjustBalance{AccountID: w.FreelancerID, Delta: w.Amount},
		},
	}
	return out, nil
}
