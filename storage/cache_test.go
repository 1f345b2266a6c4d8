package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"trellis-api/domain"
)

type stubGateway struct {
	listFn   func(ctx context.Context, projectID string) ([]domain.Task, error)
	createFn func(ctx context.Context, projectID string, fields domain.Fields) (domain.Task, error)
	patchFn  func(ctx context.Context, projectID, taskID string, fields domain.Fields) (domain.Task, error)
	deleteFn func(ctx context.Context, projectID, taskID string) error
}

func (s *stubGateway) List(ctx context.Context, projectID string) ([]domain.Task, error) {
	if s.listFn == nil {
		return nil, errors.New("unexpected List call")
	}
	return s.listFn(ctx, projectID)
}

func (s *stubGateway) Create(ctx context.Context, projectID string, fields domain.Fields) (domain.Task, error) {
	if s.createFn == nil {
		return domain.Task{}, errors.New("unexpected Create call")
	}
	return s.createFn(ctx, projectID, fields)
}

func (s *stubGateway) Patch(ctx context.Context, projectID, taskID string, fields domain.Fields) (domain.Task, error) {
	if s.patchFn == nil {
		return domain.Task{}, errors.New("unexpected Patch call")
	}
	return s.patchFn(ctx, projectID, taskID, fields)
}

func (s *stubGateway) Delete(ctx context.Context, projectID, taskID string) error {
	if s.deleteFn == nil {
		return errors.New("unexpected Delete call")
	}
	return s.deleteFn(ctx, projectID, taskID)
}

func newCacheUnderTest(t *testing.T, base *stubGateway) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(base, client, time.Minute), mr
}

func TestCacheListMissThenHit(t *testing.T) {
	ctx := context.Background()
	expected := []domain.Task{{ID: "t1", Title: "Write code", Status: domain.StatusTodo}}

	var calls int
	cache, _ := newCacheUnderTest(t, &stubGateway{
		listFn: func(ctx context.Context, projectID string) ([]domain.Task, error) {
			calls++
			return expected, nil
		},
	})

	for i := 0; i < 2; i++ {
		tasks, err := cache.List(ctx, "proj-1")
		if err != nil {
			t.Fatalf("list %d: %v", i, err)
		}
		if !reflect.DeepEqual(tasks, expected) {
			t.Fatalf("list %d: unexpected tasks %+v", i, tasks)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one backing call, got %d", calls)
	}
}

func TestCacheMutationEvictsProject(t *testing.T) {
	ctx := context.Background()
	statusDone := domain.StatusDone

	var listCalls int
	cache, _ := newCacheUnderTest(t, &stubGateway{
		listFn: func(ctx context.Context, projectID string) ([]domain.Task, error) {
			listCalls++
			return []domain.Task{{ID: "t1", Title: "a", Status: domain.StatusTodo}}, nil
		},
		patchFn: func(ctx context.Context, projectID, taskID string, fields domain.Fields) (domain.Task, error) {
			return domain.Task{ID: taskID, Title: "a", Status: *fields.Status}, nil
		},
	})

	if _, err := cache.List(ctx, "proj-1"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if _, err := cache.Patch(ctx, "proj-1", "t1", domain.Fields{Status: &statusDone}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if _, err := cache.List(ctx, "proj-1"); err != nil {
		t.Fatalf("list after evict: %v", err)
	}
	if listCalls != 2 {
		t.Fatalf("expected eviction to force a backing reload, got %d calls", listCalls)
	}
}

func TestCacheEvictionIsPerProject(t *testing.T) {
	ctx := context.Background()

	listCalls := map[string]int{}
	cache, _ := newCacheUnderTest(t, &stubGateway{
		listFn: func(ctx context.Context, projectID string) ([]domain.Task, error) {
			listCalls[projectID]++
			return []domain.Task{{ID: "t-" + projectID, Title: "x", Status: domain.StatusTodo}}, nil
		},
		deleteFn: func(ctx context.Context, projectID, taskID string) error { return nil },
	})

	for _, p := range []string{"proj-1", "proj-2"} {
		if _, err := cache.List(ctx, p); err != nil {
			t.Fatalf("prime %s: %v", p, err)
		}
	}
	if err := cache.Delete(ctx, "proj-1", "t-proj-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, p := range []string{"proj-1", "proj-2"} {
		if _, err := cache.List(ctx, p); err != nil {
			t.Fatalf("reload %s: %v", p, err)
		}
	}
	if listCalls["proj-1"] != 2 {
		t.Fatalf("expected proj-1 reloaded, got %d calls", listCalls["proj-1"])
	}
	if listCalls["proj-2"] != 1 {
		t.Fatalf("expected proj-2 untouched, got %d calls", listCalls["proj-2"])
	}
}

func TestCacheFailedMutationKeepsCache(t *testing.T) {
	ctx := context.Background()

	var listCalls int
	cache, _ := newCacheUnderTest(t, &stubGateway{
		listFn: func(ctx context.Context, projectID string) ([]domain.Task, error) {
			listCalls++
			return []domain.Task{{ID: "t1", Title: "a", Status: domain.StatusTodo}}, nil
		},
		deleteFn: func(ctx context.Context, projectID, taskID string) error {
			return errors.New("remote delete failed")
		},
	})

	if _, err := cache.List(ctx, "proj-1"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := cache.Delete(ctx, "proj-1", "t1"); err == nil {
		t.Fatal("expected delete failure")
	}
	if _, err := cache.List(ctx, "proj-1"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if listCalls != 1 {
		t.Fatalf("failed mutation must not evict, got %d backing calls", listCalls)
	}
}

func TestCacheFallsBackWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	expected := []domain.Task{{ID: "t1", Title: "a", Status: domain.StatusTodo}}

	var calls int
	cache, mr := newCacheUnderTest(t, &stubGateway{
		listFn: func(ctx context.Context, projectID string) ([]domain.Task, error) {
			calls++
			return expected, nil
		},
	})
	mr.Close()

	for i := 0; i < 2; i++ {
		tasks, err := cache.List(ctx, "proj-1")
		if err != nil {
			t.Fatalf("list %d: %v", i, err)
		}
		if !reflect.DeepEqual(tasks, expected) {
			t.Fatalf("list %d: unexpected tasks %+v", i, tasks)
		}
	}
	if calls != 2 {
		t.Fatalf("expected every call to hit the backing gateway, got %d", calls)
	}
}
