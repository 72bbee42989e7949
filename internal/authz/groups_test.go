package authz

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardbook/wardbook/internal/shared"
)

type memoryBundleStore struct {
	mu      sync.Mutex
	bundles map[uuid.UUID][]string
	writes  int
}

func newMemoryBundleStore() *memoryBundleStore {
	return &memoryBundleStore{bundles: make(map[uuid.UUID][]string)}
}

func (s *memoryBundleStore) ActorPermissions(ctx context.Context, actorID uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.bundles[actorID]))
	copy(out, s.bundles[actorID])
	return out, nil
}

func (s *memoryBundleStore) ReplaceActorPermissions(ctx context.Context, actorID uuid.UUID, permissions []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]string, len(permissions))
	copy(stored, permissions)
	s.bundles[actorID] = stored
	s.writes++
	return nil
}

func TestSyncAssignsBundleForRole(t *testing.T) {
	store := newMemoryBundleStore()
	sync := NewSynchronizer(store, slog.Default())
	actor := Actor{ID: uuid.New(), Role: RoleTrainee}

	require.NoError(t, sync.Sync(context.Background(), actor))

	perms, err := store.ActorPermissions(context.Background(), actor.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{shared.PermPatientsView, shared.PermRecordsView}, perms)
}

func TestSyncIsIdempotent(t *testing.T) {
	store := newMemoryBundleStore()
	sync := NewSynchronizer(store, slog.Default())
	actor := Actor{ID: uuid.New(), Role: RoleNurse}
	ctx := context.Background()

	require.NoError(t, sync.Sync(ctx, actor))
	first, err := store.ActorPermissions(ctx, actor.ID)
	require.NoError(t, err)

	require.NoError(t, sync.Sync(ctx, actor))
	second, err := store.ActorPermissions(ctx, actor.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second, "two syncs with no role change must produce identical bundle state")
}

func TestSyncReplacesBundleOnRoleChange(t *testing.T) {
	store := newMemoryBundleStore()
	sync := NewSynchronizer(store, slog.Default())
	id := uuid.New()
	ctx := context.Background()

	require.NoError(t, sync.Sync(ctx, Actor{ID: id, Role: RolePhysician}))
	require.NoError(t, sync.Sync(ctx, Actor{ID: id, Role: RoleTrainee}))

	perms, err := store.ActorPermissions(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, BundleFor(RoleTrainee), perms, "prior bundle contents must be fully replaced")
	assert.NotContains(t, perms, shared.PermPatientsChangePersonalData)
}

func TestSyncUnknownRoleGetsEmptyBundle(t *testing.T) {
	store := newMemoryBundleStore()
	sync := NewSynchronizer(store, slog.Default())
	actor := Actor{ID: uuid.New(), Role: Role(99)}
	ctx := context.Background()

	require.NoError(t, sync.Sync(ctx, actor), "bad data must not wedge the caller")
	perms, err := store.ActorPermissions(ctx, actor.ID)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestBundleForIsSortedCopy(t *testing.T) {
	a := BundleFor(RolePhysician)
	b := BundleFor(RolePhysician)
	require.Equal(t, a, b)
	assert.IsIncreasing(t, a)

	a[0] = "tampered"
	assert.NotEqual(t, a, BundleFor(RolePhysician), "callers must not be able to mutate the table")
}
