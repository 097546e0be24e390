package attribution_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/retracehq/retrace/internal/attribution"
	"github.com/retracehq/retrace/internal/models"
)

func TestRunAs_NestingInnermostWins(t *testing.T) {
	outer := models.NewActorRef("user", "A")
	inner := models.NewActorRef("user", "B")
	root := context.Background()

	var seen []string

	err := attribution.RunAs(root, outer, func(ctx context.Context) error {
		actor, _ := attribution.ActorFrom(ctx)
		seen = append(seen, actor.ID)

		return attribution.RunAs(ctx, inner, func(ctx context.Context) error {
			actor, _ := attribution.ActorFrom(ctx)
			seen = append(seen, actor.ID)

			return nil
		})
	})
	if err != nil {
		t.Fatalf("RunAs: %v", err)
	}

	if len(seen) != 2 || seen[0] != "A" || seen[1] != "B" {
		t.Errorf("seen = %v, want [A B]", seen)
	}

	if _, ok := attribution.ActorFrom(root); ok {
		t.Error("actor leaked onto the root context after both scopes exited")
	}
}

func TestRunAs_ErrorPropagatesAndScopeRestores(t *testing.T) {
	boom := errors.New("boom")
	root := context.Background()

	err := attribution.RunAs(root, models.NewActorName("batch"), func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom unchanged", err)
	}

	if _, ok := attribution.ActorFrom(root); ok {
		t.Error("actor still bound after error exit")
	}
}

func TestRunAsGroup(t *testing.T) {
	err := attribution.RunAsGroup(context.Background(), "release-42", "batch fix", func(ctx context.Context) error {
		group, ok := attribution.GroupFrom(ctx)
		if !ok {
			t.Fatal("GroupFrom: no group bound inside RunAsGroup")
		}
		if group.Tag != "release-42" || group.Comment != "batch fix" {
			t.Errorf("group = %+v, want release-42 / batch fix", group)
		}

		return nil
	})
	if err != nil {
		t.Fatalf("RunAsGroup: %v", err)
	}
}

func TestConcurrentContextsAreIsolated(t *testing.T) {
	var wg sync.WaitGroup

	for _, id := range []string{"1", "2", "3", "4"} {
		wg.Add(1)

		go func() {
			defer wg.Done()

			err := attribution.RunAs(context.Background(), models.NewActorRef("user", id), func(ctx context.Context) error {
				for range 100 {
					actor, ok := attribution.ActorFrom(ctx)
					if !ok || actor.ID != id {
						t.Errorf("goroutine %s observed actor %+v", id, actor)

						return nil
					}
				}

				return nil
			})
			if err != nil {
				t.Errorf("RunAs: %v", err)
			}
		}()
	}

	wg.Wait()
}

func TestResolve(t *testing.T) {
	t.Run("empty context", func(t *testing.T) {
		at := attribution.Resolve(context.Background())
		if at.Actor != nil || at.GroupTag != nil || at.GroupComment != nil {
			t.Errorf("Resolve = %+v, want all nil", at)
		}
	})

	t.Run("actor and group bound", func(t *testing.T) {
		ctx := attribution.WithActor(context.Background(), models.NewActorRef("user", "7"))
		ctx = attribution.WithGroup(ctx, "release-42", "batch fix")

		at := attribution.Resolve(ctx)
		if at.Actor == nil || at.Actor.ID != "7" {
			t.Errorf("Actor = %+v, want user 7", at.Actor)
		}
		if at.GroupTag == nil || *at.GroupTag != "release-42" {
			t.Errorf("GroupTag = %v, want release-42", at.GroupTag)
		}
		if at.GroupComment == nil || *at.GroupComment != "batch fix" {
			t.Errorf("GroupComment = %v, want batch fix", at.GroupComment)
		}
	})
}
