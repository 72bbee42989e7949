package authz

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotDumpsStaticTables(t *testing.T) {
	f := newResolverFixture(t)
	report := f.resolver.Snapshot(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	assert.Len(t, report.AccessMatrix, len(Roles())*len(Statuses()))
	assert.Len(t, report.Transitions, len(Roles())*len(Statuses())*(len(Statuses())-1))
	assert.Len(t, report.Bundles, len(Roles()))

	var traineeAdmitted *AccessEntry
	for i := range report.AccessMatrix {
		e := &report.AccessMatrix[i]
		if e.Role == "trainee" && e.Status == "admitted" {
			traineeAdmitted = e
		}
	}
	require.NotNil(t, traineeAdmitted)
	assert.False(t, traineeAdmitted.Allowed)
}

func TestReportEndpointRequiresInspectPermission(t *testing.T) {
	f := newResolverFixture(t)
	mw := Middleware{Resolver: f.resolver}
	handler := NewReportHandler(slog.Default(), f.resolver, mw)

	router := chi.NewRouter()
	router.Route("/ops/authz", handler.MountRoutes)

	physician := f.syncedActor(t, RolePhysician)
	nurse := f.syncedActor(t, RoleNurse)

	get := func(actor Actor) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ops/authz/report", nil)
		req = req.WithContext(ContextWithActor(req.Context(), actor))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := get(physician)
	require.Equal(t, http.StatusOK, rec.Code)
	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.NotEmpty(t, report.Transitions)

	assert.Equal(t, http.StatusForbidden, get(nurse).Code)

	// No actor in context at all.
	req := httptest.NewRequest(http.MethodGet, "/ops/authz/report", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
