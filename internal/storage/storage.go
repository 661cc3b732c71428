// Package storage defines the persistence contract the workflow engine runs on.
// Implementations live in internal/repositories (PostgreSQL) and
// internal/storage/memory.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/models"
)

var (
	ErrNotFound    = errors.New("storage: not found")
	ErrDuplicate   = errors.New("storage: duplicate key")
	ErrStaleStatus = errors.New("storage: status changed concurrently")
	ErrUnavailable = errors.New("storage: unavailable")
)

// Store runs Queries either inside one atomic transaction or directly.
// If fn returns an error from WithinTx nothing it wrote is kept.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error
	View(ctx context.Context, fn func(ctx context.Context, q Queries) error) error
}

// Queries is the full set of record operations. Update methods are conditional:
// they write only if the stored status still equals expected and return
// ErrStaleStatus otherwise. Insert methods return ErrDuplicate when a
// uniqueness constraint is violated.
type Queries interface {
	CampaignQueries
	ApplicationQueries
	ProposalQueries
	ProposalApplicationQueries
	AdvertiserProposalQueries
	ResponseQueries
	UserQueries
	AuditQueries
	NotificationQueries
}

type CampaignFilter struct {
	AdvertiserID  *uuid.UUID
	Status        *models.CampaignStatus
	EndedBefore   *time.Time
	Limit, Offset int
}

type CampaignQueries interface {
	GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	// GetCampaignForShare locks the row against status changes until the
	// transaction ends.
	GetCampaignForShare(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	InsertCampaign(ctx context.Context, c *models.Campaign) error
	UpdateCampaign(ctx context.Context, c *models.Campaign, expected models.CampaignStatus) error
	ListCampaigns(ctx context.Context, f CampaignFilter) ([]models.Campaign, error)
}

type ApplicationFilter struct {
	CampaignID    *uuid.UUID
	InfluencerID  *uuid.UUID
	Statuses      []models.ApplicationStatus
	Limit, Offset int
}

type ApplicationQueries interface {
	GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error)
	FindApplication(ctx context.Context, campaignID, influencerID uuid.UUID) (*models.Application, error)
	InsertApplication(ctx context.Context, a *models.Application) error
	UpdateApplication(ctx context.Context, a *models.Application, expected models.ApplicationStatus) error
	ListApplications(ctx context.Context, f ApplicationFilter) ([]models.Application, error)
}

type ProposalFilter struct {
	InfluencerID  *uuid.UUID
	Status        *models.ProposalStatus
	Limit, Offset int
}

type ProposalQueries interface {
	GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	GetProposalForShare(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	InsertProposal(ctx context.Context, p *models.Proposal) error
	UpdateProposal(ctx context.Context, p *models.Proposal, expected models.ProposalStatus) error
	ListProposals(ctx context.Context, f ProposalFilter) ([]models.Proposal, error)
}

type ProposalApplicationFilter struct {
	ProposalID    *uuid.UUID
	AdvertiserID  *uuid.UUID
	Statuses      []models.ApplicationStatus
	Limit, Offset int
}

type ProposalApplicationQueries interface {
	GetProposalApplication(ctx context.Context, id uuid.UUID) (*models.ProposalApplication, error)
	FindProposalApplication(ctx context.Context, proposalID, advertiserID uuid.UUID) (*models.ProposalApplication, error)
	InsertProposalApplication(ctx context.Context, a *models.ProposalApplication) error
	UpdateProposalApplication(ctx context.Context, a *models.ProposalApplication, expected models.ApplicationStatus) error
	ListProposalApplications(ctx context.Context, f ProposalApplicationFilter) ([]models.ProposalApplication, error)
}

type AdvertiserProposalFilter struct {
	AdvertiserID  *uuid.UUID
	InfluencerID  *uuid.UUID
	Status        *models.AdvertiserProposalStatus
	Limit, Offset int
}

type AdvertiserProposalQueries interface {
	GetAdvertiserProposal(ctx context.Context, id uuid.UUID) (*models.AdvertiserProposal, error)
	InsertAdvertiserProposal(ctx context.Context, p *models.AdvertiserProposal) error
	UpdateAdvertiserProposal(ctx context.Context, p *models.AdvertiserProposal, expected models.AdvertiserProposalStatus) error
	ListAdvertiserProposals(ctx context.Context, f AdvertiserProposalFilter) ([]models.AdvertiserProposal, error)
}

type ResponseQueries interface {
	// GetResponse returns the response attached to an advertiser proposal.
	GetResponse(ctx context.Context, proposalID uuid.UUID) (*models.AdvertiserProposalResponse, error)
	GetResponseByID(ctx context.Context, id uuid.UUID) (*models.AdvertiserProposalResponse, error)
	InsertResponse(ctx context.Context, r *models.AdvertiserProposalResponse) error
}

type UserQueries interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpsertUser(ctx context.Context, u *models.User) error
	// ListUserIDsByRole pages through users of a role ordered by id, starting
	// strictly after the given id.
	ListUserIDsByRole(ctx context.Context, role models.Role, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

type AuditQueries interface {
	InsertAudit(ctx context.Context, entry *models.AuditLog) error
	ListAudit(ctx context.Context, ref models.EntityRef, limit, offset int) ([]models.AuditLog, error)
}

type NotificationQueries interface {
	InsertNotifications(ctx context.Context, ns []models.Notification) error
	ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error
}

// ClampLimit applies the list paging defaults shared by every implementation.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
