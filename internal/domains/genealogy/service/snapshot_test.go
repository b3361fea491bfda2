package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"family-registry-backend/internal/config"
	"family-registry-backend/internal/domains/genealogy/engine"
	"family-registry-backend/internal/domains/genealogy/model"
	"family-registry-backend/internal/domains/genealogy/repository"
)

// gatedStore giữ LoadSnapshot lại cho tới khi release được đóng
type gatedStore struct {
	repository.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) LoadSnapshot(ctx context.Context, groupID int64) (*repository.Snapshot, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.Store.LoadSnapshot(ctx, groupID)
}

func TestLoadGraph_CanceledCallerDoesNotFailSharedLoad(t *testing.T) {
	mem := repository.NewMemoryStore()
	mem.Seed(
		[]model.FamilyGroup{{ID: 1, Name: "Họ S", CodePrefix: "S"}},
		[]model.Member{
			{ID: 1, GroupID: 1, FullName: "Cha", Sex: model.SexMale},
			{ID: 2, GroupID: 1, FullName: "Con", Sex: model.SexMale},
		},
		[]model.ParentLink{{ID: 3, GroupID: 1, ParentID: 1, ChildID: 2, Role: model.RoleFather}},
	)
	store := &gatedStore{Store: mem, entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(store, engine.New(engine.DefaultOptions()), nil, nil, nil,
		Config{AutoRenumber: config.AutoRenumberSync, RenumberTimeout: time.Minute})

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.VerifyGroup(firstCtx, 1)
		firstErr <- err
	}()
	<-store.entered

	type result struct {
		report *model.CodeReport
		err    error
	}
	second := make(chan result, 1)
	go func() {
		report, err := svc.VerifyGroup(context.Background(), 1)
		second <- result{report, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("canceled caller still waiting for the shared load")
	}

	close(store.release)
	select {
	case r := <-second:
		require.NoError(t, r.err)
		assert.Equal(t, 2, r.report.Members)
	case <-time.After(time.Second):
		t.Fatal("second caller never received the snapshot")
	}
}
