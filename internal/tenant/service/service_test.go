package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/rentflow/internal/audit/domain"
	auditrepo "github.com/smallbiznis/rentflow/internal/audit/repository"
	auditservice "github.com/smallbiznis/rentflow/internal/audit/service"
	"github.com/smallbiznis/rentflow/internal/clock"
	"github.com/smallbiznis/rentflow/internal/lock"
	"github.com/smallbiznis/rentflow/internal/orgcontext"
	"github.com/smallbiznis/rentflow/internal/tenant/domain"
	"github.com/smallbiznis/rentflow/internal/tenant/repository"
	"github.com/smallbiznis/rentflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	svc     domain.Service
	repo    domain.Repository
	history auditdomain.Service
	ctx     context.Context
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	ar := auditrepo.Provide()
	repo := repository.Provide()

	return fixture{
		db: db,
		svc: New(Params{
			DB:     db,
			Log:    zap.NewNop(),
			GenID:  node,
			Clock:  fake,
			Repo:   repo,
			Audit:  auditservice.NewRecorder(auditservice.RecorderParams{DB: db, Log: zap.NewNop(), GenID: node, Clock: fake, Repo: ar}),
			Locker: lock.NewLocal(),
		}),
		repo:    repo,
		history: auditservice.NewService(auditservice.Params{DB: db, Log: zap.NewNop(), Repo: ar}),
		ctx:     orgcontext.WithOrgID(context.Background(), snowflake.ID(1)),
	}
}

func TestCreateNormalizesAndValidates(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(f.ctx, domain.CreateRequest{FirstName: "Ana"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	for _, email := range []string{"not-an-email", "Ana Lima <ana@example.com>", "ana@"} {
		_, err = f.svc.Create(f.ctx, domain.CreateRequest{FirstName: "Ana", LastName: "Lima", Email: email})
		assert.ErrorIs(t, err, domain.ErrInvalidEmail, email)
	}

	tn, err := f.svc.Create(f.ctx, domain.CreateRequest{FirstName: " Ana ", LastName: "Lima", Email: "Ana@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Ana Lima", tn.FullName())
	assert.Equal(t, "ana@example.com", tn.Email)
	assert.False(t, tn.Housed())

	resp, err := f.history.List(f.ctx, auditdomain.ListRequest{EntityKind: "tenant", EntityID: tn.ID.String()})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "Ana Lima", resp.Entries[0].EntityName)
}

func TestDeleteRejectsHousedTenant(t *testing.T) {
	f := newFixture(t)
	tn, err := f.svc.Create(f.ctx, domain.CreateRequest{FirstName: "Ana", LastName: "Lima"})
	require.NoError(t, err)

	propertyID := snowflake.ID(42)
	require.NoError(t, f.repo.SetCurrentProperty(f.ctx, f.db, tn.ID, &propertyID, time.Now()))
	assert.ErrorIs(t, f.svc.Delete(f.ctx, tn.ID.String()), domain.ErrHoused)

	housed := true
	list, err := f.svc.List(f.ctx, domain.ListRequest{Housed: &housed})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, f.repo.SetCurrentProperty(f.ctx, f.db, tn.ID, nil, time.Now()))
	require.NoError(t, f.svc.Delete(f.ctx, tn.ID.String()))

	_, err = f.svc.Get(f.ctx, tn.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateUnknownTenant(t *testing.T) {
	f := newFixture(t)
	phone := "+33 6 00 00 00 00"
	_, err := f.svc.Update(f.ctx, domain.UpdateRequest{ID: "12345", Phone: &phone})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
