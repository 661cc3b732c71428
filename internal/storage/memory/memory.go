// Package memory is an in-process storage.Store. Transactions are serialized
// by a single mutex and applied copy-on-write, so a failed transaction leaves
// no trace.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/storage"
)

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

// SetClock replaces the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, q storage.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.st.clone()
	tx.now = s.now
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.st = tx
	return nil
}

// View runs fn against a snapshot; writes made through it are discarded.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, q storage.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	snap := s.st.clone()
	snap.now = s.now
	s.mu.Unlock()
	return fn(ctx, snap)
}

type state struct {
	campaigns            map[uuid.UUID]models.Campaign
	applications         map[uuid.UUID]models.Application
	proposals            map[uuid.UUID]models.Proposal
	proposalApplications map[uuid.UUID]models.ProposalApplication
	advertiserProposals  map[uuid.UUID]models.AdvertiserProposal
	responses            map[uuid.UUID]models.AdvertiserProposalResponse
	users                map[uuid.UUID]models.User
	audit                []models.AuditLog
	notifications        []models.Notification
	now                  func() time.Time
}

func newState() *state {
	return &state{
		campaigns:            map[uuid.UUID]models.Campaign{},
		applications:         map[uuid.UUID]models.Application{},
		proposals:            map[uuid.UUID]models.Proposal{},
		proposalApplications: map[uuid.UUID]models.ProposalApplication{},
		advertiserProposals:  map[uuid.UUID]models.AdvertiserProposal{},
		responses:            map[uuid.UUID]models.AdvertiserProposalResponse{},
		users:                map[uuid.UUID]models.User{},
		now:                  time.Now,
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		campaigns:            cloneMap(s.campaigns),
		applications:         cloneMap(s.applications),
		proposals:            cloneMap(s.proposals),
		proposalApplications: cloneMap(s.proposalApplications),
		advertiserProposals:  cloneMap(s.advertiserProposals),
		responses:            cloneMap(s.responses),
		users:                cloneMap(s.users),
		audit:                append([]models.AuditLog(nil), s.audit...),
		notifications:        append([]models.Notification(nil), s.notifications...),
		now:                  s.now,
	}
}

func newID(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return uuid.New()
	}
	return id
}

func page[T any](items []T, limit, offset int) []T {
	limit = storage.ClampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// newer orders by timestamp (descending when desc) with id as tie-break so
// offset paging is stable.
func newer(a, b time.Time, aID, bID uuid.UUID, desc bool) bool {
	if !a.Equal(b) {
		if desc {
			return a.After(b)
		}
		return a.Before(b)
	}
	return compareIDs(aID, bID) < 0
}

func hasStatus(statuses []models.ApplicationStatus, s models.ApplicationStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, x := range statuses {
		if x == s {
			return true
		}
	}
	return false
}

// ---- Campaigns ----

func (s *state) GetCampaign(_ context.Context, id uuid.UUID) (*models.Campaign, error) {
	c, ok := s.campaigns[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

// GetCampaignForShare needs no lock; transactions are serialized.
func (s *state) GetCampaignForShare(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return s.GetCampaign(ctx, id)
}

func (s *state) InsertCampaign(_ context.Context, c *models.Campaign) error {
	c.ID = newID(c.ID)
	if _, ok := s.campaigns[c.ID]; ok {
		return storage.ErrDuplicate
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.campaigns[c.ID] = *c
	return nil
}

func (s *state) UpdateCampaign(_ context.Context, c *models.Campaign, expected models.CampaignStatus) error {
	cur, ok := s.campaigns[c.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if cur.Status != expected {
		return storage.ErrStaleStatus
	}
	c.CreatedAt = cur.CreatedAt
	c.UpdatedAt = s.now()
	s.campaigns[c.ID] = *c
	return nil
}

func (s *state) ListCampaigns(_ context.Context, f storage.CampaignFilter) ([]models.Campaign, error) {
	var out []models.Campaign
	for _, c := range s.campaigns {
		if f.AdvertiserID != nil && c.AdvertiserID != *f.AdvertiserID {
			continue
		}
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		if f.EndedBefore != nil && (c.Period.EndsAt.IsZero() || !c.Period.EndsAt.Before(*f.EndedBefore)) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID, true) })
	return page(out, f.Limit, f.Offset), nil
}

// ---- Applications ----

func (s *state) GetApplication(_ context.Context, id uuid.UUID) (*models.Application, error) {
	a, ok := s.applications[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &a, nil
}

func (s *state) FindApplication(_ context.Context, campaignID, influencerID uuid.UUID) (*models.Application, error) {
	for _, a := range s.applications {
		if a.CampaignID == campaignID && a.InfluencerID == influencerID {
			return &a, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *state) InsertApplication(ctx context.Context, a *models.Application) error {
	if _, err := s.FindApplication(ctx, a.CampaignID, a.InfluencerID); err == nil {
		return storage.ErrDuplicate
	}
	a.ID = newID(a.ID)
	now := s.now()
	a.AppliedAt, a.UpdatedAt = now, now
	s.applications[a.ID] = *a
	return nil
}

func (s *state) UpdateApplication(_ context.Context, a *models.Application, expected models.ApplicationStatus) error {
	cur, ok := s.applications[a.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if cur.Status != expected {
		return storage.ErrStaleStatus
	}
	a.AppliedAt = cur.AppliedAt
	a.UpdatedAt = s.now()
	s.applications[a.ID] = *a
	return nil
}

func (s *state) ListApplications(_ context.Context, f storage.ApplicationFilter) ([]models.Application, error) {
	var out []models.Application
	for _, a := range s.applications {
		if f.CampaignID != nil && a.CampaignID != *f.CampaignID {
			continue
		}
		if f.InfluencerID != nil && a.InfluencerID != *f.InfluencerID {
			continue
		}
		if !hasStatus(f.Statuses, a.Status) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].AppliedAt, out[j].AppliedAt, out[i].ID, out[j].ID, false) })
	return page(out, f.Limit, f.Offset), nil
}

// ---- Proposals ----

func (s *state) GetProposal(_ context.Context, id uuid.UUID) (*models.Proposal, error) {
	p, ok := s.proposals[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

func (s *state) GetProposalForShare(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	return s.GetProposal(ctx, id)
}

func (s *state) InsertProposal(_ context.Context, p *models.Proposal) error {
	p.ID = newID(p.ID)
	if _, ok := s.proposals[p.ID]; ok {
		return storage.ErrDuplicate
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.proposals[p.ID] = *p
	return nil
}

func (s *state) UpdateProposal(_ context.Context, p *models.Proposal, expected models.ProposalStatus) error {
	cur, ok := s.proposals[p.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if cur.Status != expected {
		return storage.ErrStaleStatus
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = s.now()
	s.proposals[p.ID] = *p
	return nil
}

func (s *state) ListProposals(_ context.Context, f storage.ProposalFilter) ([]models.Proposal, error) {
	var out []models.Proposal
	for _, p := range s.proposals {
		if f.InfluencerID != nil && p.InfluencerID != *f.InfluencerID {
			continue
		}
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID, true) })
	return page(out, f.Limit, f.Offset), nil
}

// ---- Proposal applications ----

func (s *state) GetProposalApplication(_ context.Context, id uuid.UUID) (*models.ProposalApplication, error) {
	a, ok := s.proposalApplications[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &a, nil
}

func (s *state) FindProposalApplication(_ context.Context, proposalID, advertiserID uuid.UUID) (*models.ProposalApplication, error) {
	for _, a := range s.proposalApplications {
		if a.ProposalID == proposalID && a.AdvertiserID == advertiserID {
			return &a, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *state) InsertProposalApplication(ctx context.Context, a *models.ProposalApplication) error {
	if _, err := s.FindProposalApplication(ctx, a.ProposalID, a.AdvertiserID); err == nil {
		return storage.ErrDuplicate
	}
	a.ID = newID(a.ID)
	now := s.now()
	a.AppliedAt, a.UpdatedAt = now, now
	s.proposalApplications[a.ID] = *a
	return nil
}

func (s *state) UpdateProposalApplication(_ context.Context, a *models.ProposalApplication, expected models.ApplicationStatus) error {
	cur, ok := s.proposalApplications[a.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if cur.Status != expected {
		return storage.ErrStaleStatus
	}
	a.AppliedAt = cur.AppliedAt
	a.UpdatedAt = s.now()
	s.proposalApplications[a.ID] = *a
	return nil
}

func (s *state) ListProposalApplications(_ context.Context, f storage.ProposalApplicationFilter) ([]models.ProposalApplication, error) {
	var out []models.ProposalApplication
	for _, a := range s.proposalApplications {
		if f.ProposalID != nil && a.ProposalID != *f.ProposalID {
			continue
		}
		if f.AdvertiserID != nil && a.AdvertiserID != *f.AdvertiserID {
			continue
		}
		if !hasStatus(f.Statuses, a.Status) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].AppliedAt, out[j].AppliedAt, out[i].ID, out[j].ID, false) })
	return page(out, f.Limit, f.Offset), nil
}

// ---- Advertiser proposals ----

func (s *state) GetAdvertiserProposal(_ context.Context, id uuid.UUID) (*models.AdvertiserProposal, error) {
	p, ok := s.advertiserProposals[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

func (s *state) InsertAdvertiserProposal(_ context.Context, p *models.AdvertiserProposal) error {
	p.ID = newID(p.ID)
	if _, ok := s.advertiserProposals[p.ID]; ok {
		return storage.ErrDuplicate
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.advertiserProposals[p.ID] = *p
	return nil
}

func (s *state) UpdateAdvertiserProposal(_ context.Context, p *models.AdvertiserProposal, expected models.AdvertiserProposalStatus) error {
	cur, ok := s.advertiserProposals[p.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if cur.Status != expected {
		return storage.ErrStaleStatus
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = s.now()
	s.advertiserProposals[p.ID] = *p
	return nil
}

func (s *state) ListAdvertiserProposals(_ context.Context, f storage.AdvertiserProposalFilter) ([]models.AdvertiserProposal, error) {
	var out []models.AdvertiserProposal
	for _, p := range s.advertiserProposals {
		if f.AdvertiserID != nil && p.AdvertiserID != *f.AdvertiserID {
			continue
		}
		if f.InfluencerID != nil && p.InfluencerID != *f.InfluencerID {
			continue
		}
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID, true) })
	return page(out, f.Limit, f.Offset), nil
}

// ---- Responses ----

func (s *state) GetResponse(_ context.Context, proposalID uuid.UUID) (*models.AdvertiserProposalResponse, error) {
	for _, r := range s.responses {
		if r.ProposalID == proposalID {
			return &r, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *state) GetResponseByID(_ context.Context, id uuid.UUID) (*models.AdvertiserProposalResponse, error) {
	r, ok := s.responses[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &r, nil
}

func (s *state) InsertResponse(ctx context.Context, r *models.AdvertiserProposalResponse) error {
	if _, err := s.GetResponse(ctx, r.ProposalID); err == nil {
		return storage.ErrDuplicate
	}
	r.ID = newID(r.ID)
	r.RespondedAt = s.now()
	s.responses[r.ID] = *r
	return nil
}

// ---- Users ----

func (s *state) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (s *state) UpsertUser(_ context.Context, u *models.User) error {
	now := s.now()
	if cur, ok := s.users[u.ID]; ok {
		u.CreatedAt = cur.CreatedAt
		if u.DisplayName == nil {
			u.DisplayName = cur.DisplayName
		}
	} else {
		u.CreatedAt = now
	}
	u.LastActiveAt = now
	s.users[u.ID] = *u
	return nil
}

func (s *state) ListUserIDsByRole(_ context.Context, role models.Role, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, u := range s.users {
		if u.Role == role && compareIDs(id, after) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return compareIDs(ids[i], ids[j]) < 0 })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func compareIDs(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// ---- Audit ----

func (s *state) InsertAudit(_ context.Context, entry *models.AuditLog) error {
	entry.ID = newID(entry.ID)
	entry.CreatedAt = s.now()
	s.audit = append(s.audit, *entry)
	return nil
}

func (s *state) ListAudit(_ context.Context, ref models.EntityRef, limit, offset int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	for i := len(s.audit) - 1; i >= 0; i-- {
		e := s.audit[i]
		if e.EntityType == ref.Type && e.EntityID == ref.ID {
			out = append(out, e)
		}
	}
	return page(out, limit, offset), nil
}

// ---- Notifications ----

func (s *state) InsertNotifications(_ context.Context, ns []models.Notification) error {
	now := s.now()
	for i := range ns {
		ns[i].ID = newID(ns[i].ID)
		ns[i].CreatedAt = now
		s.notifications = append(s.notifications, ns[i])
	}
	return nil
}

func (s *state) ListNotifications(_ context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	var out []models.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if n.UserID != userID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		out = append(out, n)
	}
	return page(out, limit, offset), nil
}

func (s *state) MarkNotificationRead(_ context.Context, id, userID uuid.UUID) error {
	for i := range s.notifications {
		n := &s.notifications[i]
		if n.ID == id && n.UserID == userID {
			if n.ReadAt == nil {
				now := s.now()
				n.ReadAt = &now
			}
			return nil
		}
	}
	return storage.ErrNotFound
}
