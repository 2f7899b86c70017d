package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account roles
const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
)

// Job statuses
const (
	JobOpen       = "open"
	JobInProgress = "in_progress"
	JobCompleted  = "completed"
	JobClosed     = "closed"
	JobCancelled  = "cancelled"
)

// Proposal statuses
const (
	ProposalPending  = "pending"
	ProposalAccepted = "accepted"
	ProposalRejected = "rejected"
)

// Milestone statuses
const (
	MilestonePending   = "pending"
	MilestoneCompleted = "completed"
)

// Withdrawal statuses
const (
	WithdrawalPending   = "pending"
	WithdrawalCompleted = "completed"
)

// Notification types
const (
	NotifyProposalAccepted    = "proposal_accepted"
	NotifyMilestoneCompleted  = "milestone_completed"
	NotifyPaymentReceived     = "payment_received"
	NotifyWithdrawalCompleted = "withdrawal_completed"
)

// Accounts (clients and freelancers)
type Account struct {
	ID           uint64          `gorm:"primaryKey"`
	Email        string          `gorm:"size:256;unique;not null"`
	PasswordHash string          `gorm:"size:128;not null" json:"-"`
	Name         string          `gorm:"size:128;not null"`
	Role         string          `gorm:"size:16;not null"` // client|freelancer
	Balance      decimal.Decimal `gorm:"type:decimal(12,2);default:0"`
	IsAdmin      bool            `gorm:"default:false"`
	CreatedAt    time.Time
}

// Job categories
type Category struct {
	ID   uint32 `gorm:"primaryKey"`
	Name string `gorm:"size:64;unique;not null"`
}

// Jobs posted by clients
type Job struct {
	ID          uint64          `gorm:"primaryKey"`
	ClientID    uint64          `gorm:"index;not null"`
	CategoryID  uint32          `gorm:"index"`
	Title       string          `gorm:"size:255;not null"`
	Description string          `gorm:"type:text"`
	Budget      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Duration    uint32          `gorm:"default:0"` // days
	Status      string          `gorm:"size:32;not null;default:open"`
	CreatedAt   time.Time
	Client      Account  `gorm:"foreignKey:ClientID"`
	Category    Category `gorm:"foreignKey:CategoryID"`
}

// Proposals submitted by freelancers, one per (job, freelancer) pair
type Proposal struct {
	JobID        uint64 `gorm:"primaryKey"`
	FreelancerID uint64 `gorm:"primaryKey"`
	CoverLetter  string `gorm:"type:text"`
	Status       string `gorm:"size:16;not null;default:pending"`
	CreatedAt    time.Time
	Job          Job         `gorm:"foreignKey:JobID"`
	Freelancer   Account     `gorm:"foreignKey:FreelancerID"`
	Milestones   []Milestone `gorm:"foreignKey:JobID,FreelancerID;references:JobID,FreelancerID"`
}

// Milestones of a proposal. Ord is display ordering only; completion is
// allowed in any order.
type Milestone struct {
	ID           uint64          `gorm:"primaryKey"`
	JobID        uint64          `gorm:"uniqueIndex:uq_milestone_ord;not null"`
	FreelancerID uint64          `gorm:"uniqueIndex:uq_milestone_ord;not null"`
	Ord          uint32          `gorm:"uniqueIndex:uq_milestone_ord;not null"`
	Name         string          `gorm:"size:255;not null"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status       string          `gorm:"size:16;not null;default:pending"`
}

// Payments, exactly one per completed milestone
type Payment struct {
	ID           uint64          `gorm:"primaryKey"`
	JobID        uint64          `gorm:"uniqueIndex:uq_payment_milestone;not null"`
	FreelancerID uint64          `gorm:"uniqueIndex:uq_payment_milestone;not null"`
	MilestoneOrd uint32          `gorm:"uniqueIndex:uq_payment_milestone;not null"`
	ClientID     uint64          `gorm:"index;not null"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status       string          `gorm:"size:16;not null;default:completed"`
	CreatedAt    time.Time
}

// Withdrawals against the freelancer balance
type Withdrawal struct {
	ID           uint64          `gorm:"primaryKey"`
	FreelancerID uint64          `gorm:"index;not null"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status       string          `gorm:"size:16;not null;default:pending"`
	CreatedAt    time.Time
	Freelancer   Account `gorm:"foreignKey:FreelancerID"`
}

// Notifications; the durable row is the source of truth, push is best-effort
type Notification struct {
	ID        uint64 `gorm:"primaryKey"`
	AccountID uint64 `gorm:"index;not null"`
	Type      string `gorm:"size:32;not null"`
	Message   string `gorm:"size:512;not null"`
	URL       string `gorm:"size:256"`
	IsRead    bool   `gorm:"default:false"`
	CreatedAt time.Time
}

// Chat messages within an accepted engagement
type ChatMessage struct {
	ID           uint64 `gorm:"primaryKey"`
	JobID        uint64 `gorm:"index:idx_chat_engagement;not null"`
	FreelancerID uint64 `gorm:"index:idx_chat_engagement;not null"`
	SenderID     uint64 `gorm:"index;not null"`
	Body         string `gorm:"type:text;not null"`
	FileURL      string `gorm:"size:256"`
	CreatedAt    time.Time
}
