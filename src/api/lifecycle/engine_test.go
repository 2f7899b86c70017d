package lifecycle_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/workmesh/workmesh/src/api/lifecycle"
	"github.com/workmesh/workmesh/src/api/types"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAcceptProposal(t *testing.T) {
	job := types.Job{ID: 1, ClientID: 10, Title: "Build site", Status: types.JobOpen}
	prop := types.Proposal{JobID: 1, FreelancerID: 20, Status: types.ProposalPending}
	siblings := []types.Proposal{
		{JobID: 1, FreelancerID: 21, Status: types.ProposalPending},
		{JobID: 1, FreelancerID: 22, Status: types.ProposalRejected},
	}

	out, err := lifecycle.AcceptProposal(job, prop, siblings)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if out.Job.Status != types.JobInProgress {
		t.Fatalf("job status = %s", out.Job.Status)
	}
	if out.Accepted.Status != types.ProposalAccepted {
		t.Fatalf("proposal status = %s", out.Accepted.Status)
	}
	if len(out.Rejected) != 1 || out.Rejected[0].FreelancerID != 21 {
		t.Fatalf("expected exactly the pending sibling rejected, got %+v", out.Rejected)
	}
	if len(out.Effects) != 1 {
		t.Fatalf("expected one effect, got %d", len(out.Effects))
	}
	n, ok := out.Effects[0].(lifecycle.NotifyAccount)
	if !ok || n.AccountID != 20 || n.Type != types.NotifyProposalAccepted {
		t.Fatalf("unexpected notify effect %+v", out.Effects[0])
	}
}

func TestAcceptProposalRejections(t *testing.T) {
	open := types.Job{ID: 1, Status: types.JobOpen}
	running := types.Job{ID: 1, Status: types.JobInProgress}
	pending := types.Proposal{JobID: 1, FreelancerID: 20, Status: types.ProposalPending}
	accepted := types.Proposal{JobID: 1, FreelancerID: 20, Status: types.ProposalAccepted}

	if _, err := lifecycle.AcceptProposal(running, pending, nil); !errors.Is(err, lifecycle.ErrJobNotOpen) {
		t.Fatalf("expected ErrJobNotOpen, got %v", err)
	}
	if _, err := lifecycle.AcceptProposal(open, accepted, nil); !errors.Is(err, lifecycle.ErrProposalNotPending) {
		t.Fatalf("expected ErrProposalNotPending, got %v", err)
	}
}

func TestCompleteMilestoneEffects(t *testing.T) {
	job := types.Job{ID: 1, ClientID: 10, Title: "Build site", Status: types.JobInProgress}
	prop := types.Proposal{JobID: 1, FreelancerID: 20, Status: types.ProposalAccepted}
	ms := types.Milestone{ID: 5, JobID: 1, FreelancerID: 20, Ord: 2, Name: "Backend", Amount: dec("300")}
	ms.Status = types.MilestonePending

	out, err := lifecycle.CompleteMilestone(job, prop, ms, 1)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out.Milestone.Status != types.MilestoneCompleted {
		t.Fatalf("milestone status = %s", out.Milestone.Status)
	}
	if out.JobCompleted || out.Job.Status != types.JobInProgress {
		t.Fatalf("job must stay in progress with a pending milestone left")
	}
	if len(out.Effects) != 4 {
		t.Fatalf("expected 4 effects, got %d", len(out.Effects))
	}
	pay, ok := out.Effects[0].(lifecycle.CreatePayment)
	if !ok || pay.MilestoneOrd != 2 || !pay.Amount.Equal(dec("300")) || pay.ClientID != 10 {
		t.Fatalf("unexpected payment effect %+v", out.Effects[0])
	}
	adj, ok := out.Effects[1].(lifecycle.AdjustBalance)
	if !ok || adj.AccountID != 20 || !adj.Delta.Equal(dec("300")) {
		t.Fatalf("unexpected balance effect %+v", out.Effects[1])
	}
	first, ok := out.Effects[2].(lifecycle.NotifyAccount)
	if !ok || first.Type != types.NotifyMilestoneCompleted || first.AccountID != 20 {
		t.Fatalf("unexpected first notify %+v", out.Effects[2])
	}
	second, ok := out.Effects[3].(lifecycle.NotifyAccount)
	if !ok || second.Type != types.NotifyPaymentReceived || second.AccountID != 20 {
		t.Fatalf("unexpected second notify %+v", out.Effects[3])
	}
}

func TestCompleteLastMilestoneCompletesJob(t *testing.T) {
	job := types.Job{ID: 1, ClientID: 10, Status: types.JobInProgress}
	prop := types.Proposal{JobID: 1, FreelancerID: 20, Status: types.ProposalAccepted}
	ms := types.Milestone{ID: 6, JobID: 1, FreelancerID: 20, Ord: 1, Name: "Frontend", Amount: dec("200"), Status: types.MilestonePending}

	out, err := lifecycle.CompleteMilestone(job, prop, ms, 0)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !out.JobCompleted || out.Job.Status != types.JobCompleted {
		t.Fatalf("expected job completed, got %s", out.Job.Status)
	}
}

func TestCompleteMilestoneRejections(t *testing.T) {
	job := types.Job{ID: 1, Status: types.JobInProgress}
	prop := types.Proposal{JobID: 1, FreelancerID: 20, Status: types.ProposalAccepted}
	ms := types.Milestone{ID: 5, JobID: 1, FreelancerID: 20, Ord: 1, Amount: dec("100"), Status: types.MilestonePending}

	done := ms
	done.Status = types.MilestoneCompleted
	if _, err := lifecycle.CompleteMilestone(job, prop, done, 0); !errors.Is(err, lifecycle.ErrMilestoneNotPending) {
		t.Fatalf("expected ErrMilestoneNotPending, got %v", err)
	}

	rejected := prop
	rejected.Status = types.ProposalPending
	if _, err := lifecycle.CompleteMilestone(job, rejected, ms, 0); !errors.Is(err, lifecycle.ErrProposalNotAccepted) {
		t.Fatalf("expected ErrProposalNotAccepted, got %v", err)
	}

	openJob := job
	openJob.Status = types.JobOpen
	if _, err := lifecycle.CompleteMilestone(openJob, prop, ms, 0); !errors.Is(err, lifecycle.ErrJobNotInProgress) {
		t.Fatalf("expected ErrJobNotInProgress, got %v", err)
	}

	stray := ms
	stray.FreelancerID = 99
	if _, err := lifecycle.CompleteMilestone(job, prop, stray, 0); !errors.Is(err, lifecycle.ErrMilestoneMismatch) {
		t.Fatalf("expected ErrMilestoneMismatch, got %v", err)
	}
}

func TestRequestWithdrawal(t *testing.T) {
	acct := types.Account{ID: 20, Role: types.RoleFreelancer, Balance: dec("100")}

	if _, err := lifecycle.RequestWithdrawal(acct, dec("150")); !errors.Is(err, lifecycle.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := lifecycle.RequestWithdrawal(acct, dec("0")); !errors.Is(err, lifecycle.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	out, err := lifecycle.RequestWithdrawal(acct, dec("60"))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if out.Withdrawal.Status != types.WithdrawalPending || !out.Withdrawal.Amount.Equal(dec("60")) {
		t.Fatalf("unexpected withdrawal %+v", out.Withdrawal)
	}
	adj, ok := out.Effects[0].(lifecycle.AdjustBalance)
	if !ok || !adj.Delta.Equal(dec("-60")) {
		t.Fatalf("expected debit effect, got %+v", out.Effects[0])
	}
}

func TestWithdrawalTransitions(t *testing.T) {
	pending := types.Withdrawal{ID: 1, FreelancerID: 20, Amount: dec("60"), Status: types.WithdrawalPending}
	completed := pending
	completed.Status = types.WithdrawalCompleted

	out, err := lifecycle.CompleteWithdrawal(pending)
	if err != nil || out.Withdrawal.Status != types.WithdrawalCompleted {
		t.Fatalf("complete: %v", err)
	}
	if _, err := lifecycle.CompleteWithdrawal(completed); !errors.Is(err, lifecycle.ErrWithdrawalNotPending) {
		t.Fatalf("expected ErrWithdrawalNotPending, got %v", err)
	}

	cancel, err := lifecycle.CancelWithdrawal(pending)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	adj, ok := cancel.Effects[0].(lifecycle.AdjustBalance)
	if !ok || !adj.Delta.Equal(dec("60")) {
		t.Fatalf("expected refund effect, got %+v", cancel.Effects[0])
	}
	if _, err := lifecycle.CancelWithdrawal(completed); !errors.Is(err, lifecycle.ErrWithdrawalNotPending) {
		t.Fatalf("expected ErrWithdrawalNotPending, got %v", err)
	}
}
