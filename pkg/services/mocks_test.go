package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kosix-io/datahub/pkg/apperrors"
	"github.com/kosix-io/datahub/pkg/models"
	"github.com/kosix-io/datahub/pkg/repositories"
)

// mockDataSourceRepo implements repositories.DataSourceRepository for testing.
type mockDataSourceRepo struct {
	records   []*models.DataSource
	createErr error
	getErr    error
	updateErr error
	deleteErr error
	listErr   error
}

func (m *mockDataSourceRepo) Create(_ context.Context, ds *models.DataSource) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, r := range m.records {
		if r.Title == ds.Title {
			return apperrors.ErrConflict
		}
	}
	ds.ID = uuid.New()
	now := time.Now().UTC()
	ds.CreatedAt = now
	ds.UpdatedAt = now
	m.records = append(m.records, ds)
	return nil
}

func (m *mockDataSourceRepo) GetByID(_ context.Context, id uuid.UUID) (*models.DataSource, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, r := range m.records {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockDataSourceRepo) TitleExists(_ context.Context, title string, excludeID uuid.UUID) (bool, error) {
	for _, r := range m.records {
		if r.Title == title && r.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockDataSourceRepo) Update(_ context.Context, ds *models.DataSource) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	for i, r := range m.records {
		if r.ID == ds.ID {
			ds.UpdatedAt = time.Now().UTC()
			cp := *ds
			m.records[i] = &cp
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockDataSourceRepo) Delete(_ context.Context, id uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i, r := range m.records {
		if r.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockDataSourceRepo) List(_ context.Context, f repositories.DataSourceFilter) ([]*models.DataSource, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.DataSource
	for _, r := range m.records {
		if f.Type != nil && r.Type != *f.Type {
			continue
		}
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		out = append(out, r)
	}
	return paginate(out, f.Skip, f.Limit), nil
}

func (m *mockDataSourceRepo) ListByCreator(_ context.Context, accountID uuid.UUID, skip, limit int) ([]*models.DataSource, error) {
	var out []*models.DataSource
	for _, r := range m.records {
		if r.CreatedBy != nil && *r.CreatedBy == accountID {
			out = append(out, r)
		}
	}
	return paginate(out, skip, limit), nil
}

func (m *mockDataSourceRepo) ListByTeam(_ context.Context, teamID uuid.UUID, skip, limit int) ([]*models.DataSource, error) {
	var out []*models.DataSource
	for _, r := range m.records {
		if r.TeamID != nil && *r.TeamID == teamID {
			out = append(out, r)
		}
	}
	return paginate(out, skip, limit), nil
}

func (m *mockDataSourceRepo) ListByTeams(_ context.Context, teamIDs []uuid.UUID, skip, limit int) ([]*models.DataSource, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	var out []*models.DataSource
	for _, r := range m.records {
		if r.TeamID == nil {
			continue
		}
		for _, id := range teamIDs {
			if *r.TeamID == id {
				out = append(out, r)
				break
			}
		}
	}
	return paginate(out, skip, limit), nil
}

func (m *mockDataSourceRepo) ListAccessible(_ context.Context, accountID uuid.UUID, teamIDs []uuid.UUID, f repositories.DataSourceFilter) ([]*models.DataSource, error) {
	var out []*models.DataSource
	for _, r := range m.records {
		visible := r.CreatedBy != nil && *r.CreatedBy == accountID
		if !visible && r.TeamID != nil {
			for _, id := range teamIDs {
				if *r.TeamID == id {
					visible = true
					break
				}
			}
		}
		if !visible {
			continue
		}
		if f.Type != nil && r.Type != *f.Type {
			continue
		}
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		out = append(out, r)
	}
	return paginate(out, f.Skip, f.Limit), nil
}

func paginate(in []*models.DataSource, skip, limit int) []*models.DataSource {
	if skip >= len(in) {
		return nil
	}
	in = in[skip:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

// mockAccountRepo implements repositories.AccountRepository for testing.
type mockAccountRepo struct {
	accounts  []*models.Account
	getErr    error
	deleteErr error
}

func (m *mockAccountRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, a := range m.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockAccountRepo) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	for _, a := range m.accounts {
		if a.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAccountRepo) List(_ context.Context, skip, limit int) ([]*models.Account, error) {
	if skip >= len(m.accounts) {
		return nil, nil
	}
	out := m.accounts[skip:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockAccountRepo) UpdateRole(_ context.Context, id uuid.UUID, role models.AccountRole) error {
	for _, a := range m.accounts {
		if a.ID == id {
			a.Role = role
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockAccountRepo) CountByRole(_ context.Context, role models.AccountRole) (int, error) {
	count := 0
	for _, a := range m.accounts {
		if a.Role == role {
			count++
		}
	}
	return count, nil
}

func (m *mockAccountRepo) MarkEmailVerified(_ context.Context, id uuid.UUID) error {
	for _, a := range m.accounts {
		if a.ID == id {
			a.EmailVerified = true
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockAccountRepo) Delete(_ context.Context, id uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i, a := range m.accounts {
		if a.ID == id {
			m.accounts = append(m.accounts[:i], m.accounts[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

// mockTeamRepo implements repositories.TeamRepository for testing.
type mockTeamRepo struct {
	teams    []*models.Team
	members  map[uuid.UUID][]uuid.UUID // team -> accounts
	managers map[uuid.UUID][]uuid.UUID
}

func newMockTeamRepo() *mockTeamRepo {
	return &mockTeamRepo{
		members:  make(map[uuid.UUID][]uuid.UUID),
		managers: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (m *mockTeamRepo) Create(_ context.Context, team *models.Team) error {
	team.ID = uuid.New()
	now := time.Now().UTC()
	team.CreatedAt = now
	team.UpdatedAt = now
	m.teams = append(m.teams, team)
	return nil
}

func (m *mockTeamRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Team, error) {
	for _, t := range m.teams {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockTeamRepo) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	for _, t := range m.teams {
		if t.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTeamRepo) Delete(_ context.Context, id uuid.UUID) error {
	for i, t := range m.teams {
		if t.ID == id {
			m.teams = append(m.teams[:i], m.teams[i+1:]...)
			delete(m.members, id)
			delete(m.managers, id)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockTeamRepo) AddMember(_ context.Context, teamID, accountID uuid.UUID) error {
	return addRelation(m.members, teamID, accountID)
}

func (m *mockTeamRepo) RemoveMember(_ context.Context, teamID, accountID uuid.UUID) error {
	return removeRelation(m.members, teamID, accountID)
}

func (m *mockTeamRepo) AddManager(_ context.Context, teamID, accountID uuid.UUID) error {
	return addRelation(m.managers, teamID, accountID)
}

func (m *mockTeamRepo) RemoveManager(_ context.Context, teamID, accountID uuid.UUID) error {
	return removeRelation(m.managers, teamID, accountID)
}

func (m *mockTeamRepo) OwnedTeamIDs(_ context.Context, accountID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, t := range m.teams {
		if t.OwnerID != nil && *t.OwnerID == accountID {
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

func (m *mockTeamRepo) MemberTeamIDs(_ context.Context, accountID uuid.UUID) ([]uuid.UUID, error) {
	return relationTeams(m.members, accountID), nil
}

func (m *mockTeamRepo) ManagerTeamIDs(_ context.Context, accountID uuid.UUID) ([]uuid.UUID, error) {
	return relationTeams(m.managers, accountID), nil
}

func addRelation(rel map[uuid.UUID][]uuid.UUID, teamID, accountID uuid.UUID) error {
	for _, id := range rel[teamID] {
		if id == accountID {
			return apperrors.ErrConflict
		}
	}
	rel[teamID] = append(rel[teamID], accountID)
	return nil
}

func removeRelation(rel map[uuid.UUID][]uuid.UUID, teamID, accountID uuid.UUID) error {
	for i, id := range rel[teamID] {
		if id == accountID {
			rel[teamID] = append(rel[teamID][:i], rel[teamID][i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func relationTeams(rel map[uuid.UUID][]uuid.UUID, accountID uuid.UUID) []uuid.UUID {
	var ids []uuid.UUID
	for teamID, accounts := range rel {
		for _, id := range accounts {
			if id == accountID {
				ids = append(ids, teamID)
				break
			}
		}
	}
	return ids
}

// mockSessionRepo implements repositories.SessionRepository for testing.
type mockSessionRepo struct {
	sessions []*models.Session
}

func (m *mockSessionRepo) Create(_ context.Context, session *models.Session) error {
	session.ID = uuid.New()
	session.CreatedAt = time.Now().UTC()
	m.sessions = append(m.sessions, session)
	return nil
}

func (m *mockSessionRepo) GetByToken(_ context.Context, token string) (*models.Session, error) {
	for _, s := range m.sessions {
		if s.SessionToken == token && s.IsActive && !s.IsExpired() {
			return s, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockSessionRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	for _, s := range m.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockSessionRepo) ListByAccount(_ context.Context, accountID uuid.UUID) ([]*models.Session, error) {
	var out []*models.Session
	for _, s := range m.sessions {
		if s.AccountID == accountID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSessionRepo) Revoke(_ context.Context, id uuid.UUID) error {
	for _, s := range m.sessions {
		if s.ID == id {
			s.IsActive = false
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	var kept []*models.Session
	var removed int64
	for _, s := range m.sessions {
		if s.IsExpired() {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	m.sessions = kept
	return removed, nil
}

// mockOTPRepo implements repositories.OTPRepository for testing.
type mockOTPRepo struct {
	otps []*models.OTP
}

func (m *mockOTPRepo) Create(_ context.Context, otp *models.OTP) error {
	otp.ID = uuid.New()
	m.otps = append(m.otps, otp)
	return nil
}

func (m *mockOTPRepo) GetLatest(_ context.Context, accountID uuid.UUID) (*models.OTP, error) {
	var latest *models.OTP
	for _, o := range m.otps {
		if o.AccountID != accountID {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) {
			latest = o
		}
	}
	if latest == nil {
		return nil, apperrors.ErrNotFound
	}
	return latest, nil
}

func (m *mockOTPRepo) MarkUsed(_ context.Context, id uuid.UUID) error {
	for _, o := range m.otps {
		if o.ID == id {
			o.IsUsed = true
			return nil
		}
	}
	return apperrors.ErrNotFound
}

// Compile-time interface checks for the mocks.
var (
	_ repositories.DataSourceRepository = (*mockDataSourceRepo)(nil)
	_ repositories.AccountRepository    = (*mockAccountRepo)(nil)
	_ repositories.TeamRepository       = (*mockTeamRepo)(nil)
	_ repositories.SessionRepository    = (*mockSessionRepo)(nil)
	_ repositories.OTPRepository        = (*mockOTPRepo)(nil)
)
