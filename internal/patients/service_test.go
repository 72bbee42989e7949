package patients

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardbook/wardbook/internal/authz"
	"github.com/wardbook/wardbook/internal/shared"
)

type mockRepository struct {
	mu       sync.Mutex
	patients map[uuid.UUID]*Patient
}

func newMockRepository() *mockRepository {
	return &mockRepository{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepository) List(ctx context.Context, filter authz.Filter, limit, offset int) ([]Patient, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := []Patient{}
	for _, p := range m.patients {
		if filter.Matches(p.Authz()) {
			matched = append(matched, *p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (m *mockRepository) Create(ctx context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status authz.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.Status = status
	return nil
}

func (m *mockRepository) UpdatePersonalData(ctx context.Context, id uuid.UUID, data PersonalData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.FirstName = data.FirstName
	p.LastName = data.LastName
	p.DateOfBirth = data.DateOfBirth
	return nil
}

type mockBundleStore struct {
	mu      sync.Mutex
	bundles map[uuid.UUID][]string
}

func (s *mockBundleStore) ActorPermissions(ctx context.Context, actorID uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bundles[actorID]...), nil
}

func (s *mockBundleStore) ReplaceActorPermissions(ctx context.Context, actorID uuid.UUID, permissions []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[actorID] = append([]string(nil), permissions...)
	return nil
}

type serviceFixture struct {
	service *Service
	repo    *mockRepository
	store   *mockBundleStore
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMockRepository()
	store := &mockBundleStore{bundles: make(map[uuid.UUID][]string)}
	cache := authz.NewCache(client, authz.NewCacheMetrics(nil), slog.Default())
	resolver := authz.NewResolver(authz.NewRules(), cache, store, NewDirectory(repo), slog.Default())
	return &serviceFixture{
		service: NewService(repo, resolver, slog.Default()),
		repo:    repo,
		store:   store,
	}
}

func (f *serviceFixture) actor(t *testing.T, role authz.Role) authz.Actor {
	t.Helper()
	actor := authz.Actor{ID: uuid.New(), Role: role}
	require.NoError(t, authz.NewSynchronizer(f.store, slog.Default()).Sync(context.Background(), actor))
	return actor
}

func (f *serviceFixture) addPatient(t *testing.T, status authz.Status) *Patient {
	t.Helper()
	p := &Patient{
		ID:          uuid.New(),
		FirstName:   "Ada",
		LastName:    "Morrow",
		DateOfBirth: time.Date(1980, 5, 12, 0, 0, 0, 0, time.UTC),
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, f.repo.Create(context.Background(), p))
	return p
}

func TestGetRespectsAccessMatrix(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	admitted := f.addPatient(t, authz.StatusAdmitted)
	ambulatory := f.addPatient(t, authz.StatusAmbulatory)

	trainee := f.actor(t, authz.RoleTrainee)
	_, err := f.service.Get(ctx, trainee, admitted.ID)
	assert.ErrorIs(t, err, shared.ErrDenied)

	got, err := f.service.Get(ctx, trainee, ambulatory.ID)
	require.NoError(t, err)
	assert.Equal(t, ambulatory.ID, got.ID)
}

func TestListAppliesRoleFilter(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	for _, status := range authz.Statuses() {
		f.addPatient(t, status)
	}

	items, pg, err := f.service.List(ctx, f.actor(t, authz.RolePhysician), 1, 10)
	require.NoError(t, err)
	assert.Len(t, items, 5)
	assert.Equal(t, 5, pg.Total)

	items, pg, err = f.service.List(ctx, f.actor(t, authz.RoleTrainee), 1, 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, pg.Total)
	for _, p := range items {
		assert.Contains(t, []authz.Status{authz.StatusAmbulatory, authz.StatusDischarged}, p.Status)
	}
}

func TestRegisterRequiresStatusChangeGrant(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	data := PersonalData{FirstName: "Noor", LastName: "Haddad", DateOfBirth: time.Date(1991, 9, 30, 0, 0, 0, 0, time.UTC)}

	_, err := f.service.Register(ctx, f.actor(t, authz.RoleTrainee), data, authz.StatusEmergency)
	assert.ErrorIs(t, err, shared.ErrDenied)

	p, err := f.service.Register(ctx, f.actor(t, authz.RoleNurse), data, authz.StatusEmergency)
	require.NoError(t, err)
	assert.Equal(t, authz.StatusEmergency, p.Status)

	_, err = f.service.Register(ctx, f.actor(t, authz.RoleNurse), data, authz.ParseStatus("cryosleep"))
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestChangeStatusValidatesTransition(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	nurse := f.actor(t, authz.RoleNurse)

	emergency := f.addPatient(t, authz.StatusEmergency)
	got, err := f.service.ChangeStatus(ctx, nurse, emergency.ID, authz.StatusAdmitted)
	require.NoError(t, err)
	assert.Equal(t, authz.StatusAdmitted, got.Status)

	admitted := f.addPatient(t, authz.StatusAdmitted)
	_, err = f.service.ChangeStatus(ctx, nurse, admitted.ID, authz.StatusDischarged)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	stored, err := f.repo.Get(ctx, admitted.ID)
	require.NoError(t, err)
	assert.Equal(t, authz.StatusAdmitted, stored.Status, "rejected transition must not persist")
}

func TestChangeStatusDeniedForTrainee(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	trainee := f.actor(t, authz.RoleTrainee)
	p := f.addPatient(t, authz.StatusAmbulatory)

	_, err := f.service.ChangeStatus(ctx, trainee, p.ID, authz.StatusAdmitted)
	assert.ErrorIs(t, err, shared.ErrDenied)
}

func TestChangeStatusInvalidatesCachedDecisions(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	trainee := f.actor(t, authz.RoleTrainee)
	physician := f.actor(t, authz.RolePhysician)

	p := f.addPatient(t, authz.StatusAmbulatory)

	// Trainee's view is allowed and cached while the patient is ambulatory.
	got, err := f.service.Get(ctx, trainee, p.ID)
	require.NoError(t, err)
	require.Equal(t, authz.StatusAmbulatory, got.Status)

	_, err = f.service.ChangeStatus(ctx, physician, p.ID, authz.StatusAdmitted)
	require.NoError(t, err)

	// Immediately after the mutation completes, the trainee's check must
	// match a fresh evaluation: denied.
	_, err = f.service.Get(ctx, trainee, p.ID)
	assert.ErrorIs(t, err, shared.ErrDenied)
}

func TestUpdatePersonalDataRestrictedToPhysicianTier(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	p := f.addPatient(t, authz.StatusAdmitted)
	data := PersonalData{FirstName: "Edith", LastName: "Vane", DateOfBirth: time.Date(1975, 2, 3, 0, 0, 0, 0, time.UTC)}

	for _, role := range []authz.Role{authz.RoleNurse, authz.RoleTherapist, authz.RoleTrainee} {
		_, err := f.service.UpdatePersonalData(ctx, f.actor(t, role), p.ID, data)
		assert.ErrorIs(t, err, shared.ErrDenied, "role %s", role)
	}

	got, err := f.service.UpdatePersonalData(ctx, f.actor(t, authz.RoleResident), p.ID, data)
	require.NoError(t, err)
	assert.Equal(t, "Edith", got.FirstName)
}
