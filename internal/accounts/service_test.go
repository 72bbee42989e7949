package accounts

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wardbook/wardbook/internal/authz"
	"github.com/wardbook/wardbook/internal/shared"
)

type mockRepository struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*Account
	bundles  map[uuid.UUID][]string
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		accounts: make(map[uuid.UUID]*Account),
		bundles:  make(map[uuid.UUID][]string),
	}
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (m *mockRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		if acc.Email == email {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockRepository) List(ctx context.Context) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		out = append(out, *acc)
	}
	return out, nil
}

func (m *mockRepository) Create(ctx context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Email == a.Email {
			return ErrEmailTaken
		}
	}
	cp := *a
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	m.accounts[a.ID] = &cp
	return nil
}

func (m *mockRepository) UpdateRole(ctx context.Context, id uuid.UUID, role authz.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	acc.Role = role
	return nil
}

func (m *mockRepository) ActorPermissions(ctx context.Context, actorID uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.bundles[actorID]...), nil
}

func (m *mockRepository) ReplaceActorPermissions(ctx context.Context, actorID uuid.UUID, permissions []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundles[actorID] = append([]string(nil), permissions...)
	return nil
}

type mockDirectory struct {
	mu       sync.Mutex
	patients map[uuid.UUID]authz.Patient
}

func (d *mockDirectory) PatientByID(ctx context.Context, id uuid.UUID) (authz.Patient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.patients[id]
	if !ok {
		return authz.Patient{}, shared.ErrNotFound
	}
	return p, nil
}

type accountsFixture struct {
	service   *Service
	repo      *mockRepository
	resolver  *authz.Resolver
	directory *mockDirectory
}

func newAccountsFixture(t *testing.T) *accountsFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &accountsFixture{
		repo:      newMockRepository(),
		directory: &mockDirectory{patients: make(map[uuid.UUID]authz.Patient)},
	}
	rules := &authz.Rules{Now: time.Now}
	cache := authz.NewCache(client, authz.NewCacheMetrics(nil), slog.Default())
	f.resolver = authz.NewResolver(rules, cache, f.repo, f.directory, slog.Default())
	sync := authz.NewSynchronizer(f.repo, slog.Default())
	f.service = NewService(f.repo, f.resolver, sync, slog.Default())
	return f
}

func TestCreateHashesPasswordAndSyncsBundle(t *testing.T) {
	f := newAccountsFixture(t)
	ctx := context.Background()

	acc, err := f.service.Create(ctx, CreateInput{
		Email:    " Nurse.Joy@Example.org ",
		Name:     "Nurse Joy",
		Password: "correct horse battery",
		Role:     authz.RoleNurse,
	})
	require.NoError(t, err)

	assert.Equal(t, "nurse.joy@example.org", acc.Email)
	assert.NotEqual(t, "correct horse battery", acc.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte("correct horse battery")))

	perms, err := f.repo.ActorPermissions(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, authz.BundleFor(authz.RoleNurse), perms)
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	f := newAccountsFixture(t)
	ctx := context.Background()
	in := CreateInput{Email: "dr@example.org", Name: "Dr A", Password: "long enough pass", Role: authz.RolePhysician}

	_, err := f.service.Create(ctx, in)
	require.NoError(t, err)
	_, err = f.service.Create(ctx, in)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthenticate(t *testing.T) {
	f := newAccountsFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, CreateInput{
		Email: "doc@example.org", Name: "Doc", Password: "long enough pass", Role: authz.RolePhysician,
	})
	require.NoError(t, err)

	acc, err := f.service.Authenticate(ctx, "doc@example.org", "long enough pass")
	require.NoError(t, err)
	assert.Equal(t, created.ID, acc.ID)

	_, err = f.service.Authenticate(ctx, "doc@example.org", "wrong pass entirely")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = f.service.Authenticate(ctx, "nobody@example.org", "long enough pass")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateRejectsInactive(t *testing.T) {
	f := newAccountsFixture(t)
	ctx := context.Background()

	acc, err := f.service.Create(ctx, CreateInput{
		Email: "gone@example.org", Name: "Gone", Password: "long enough pass", Role: authz.RoleNurse,
	})
	require.NoError(t, err)

	f.repo.mu.Lock()
	f.repo.accounts[acc.ID].IsActive = false
	f.repo.mu.Unlock()

	_, err = f.service.Authenticate(ctx, "gone@example.org", "long enough pass")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestChangeRoleReplacesBundleAndDropsCachedDecisions(t *testing.T) {
	f := newAccountsFixture(t)
	ctx := context.Background()

	acc, err := f.service.Create(ctx, CreateInput{
		Email: "rn@example.org", Name: "RN", Password: "long enough pass", Role: authz.RoleNurse,
	})
	require.NoError(t, err)

	patient := authz.Patient{ID: uuid.New(), Status: authz.StatusEmergency}
	f.directory.mu.Lock()
	f.directory.patients[patient.ID] = patient
	f.directory.mu.Unlock()

	// Nurses see emergency patients; warm the cache with that decision.
	nurse := authz.Actor{ID: acc.ID, Role: authz.RoleNurse}
	require.Equal(t, authz.Allow, f.resolver.Check(ctx, nurse, shared.PermPatientsView, patient))
	require.Equal(t, authz.Allow, f.resolver.Check(ctx, nurse, shared.PermPatientsView, patient))

	updated, err := f.service.ChangeRole(ctx, acc.ID, authz.RoleTrainee)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleTrainee, updated.Role)

	perms, err := f.repo.ActorPermissions(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, authz.BundleFor(authz.RoleTrainee), perms)

	// The cached allow for the old role must not survive the change.
	trainee := authz.Actor{ID: acc.ID, Role: authz.RoleTrainee}
	assert.Equal(t, authz.Deny, f.resolver.Check(ctx, trainee, shared.PermPatientsView, patient))
}

func TestResyncBundlesRepairsDrift(t *testing.T) {
	f := newAccountsFixture(t)
	ctx := context.Background()

	acc, err := f.service.Create(ctx, CreateInput{
		Email: "pt@example.org", Name: "PT", Password: "long enough pass", Role: authz.RoleTherapist,
	})
	require.NoError(t, err)

	// Simulate drift: the stored bundle was tampered with out of band.
	require.NoError(t, f.repo.ReplaceActorPermissions(ctx, acc.ID, []string{"bogus.permission"}))

	n, err := f.service.ResyncBundles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	perms, err := f.repo.ActorPermissions(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, authz.BundleFor(authz.RoleTherapist), perms)
}
