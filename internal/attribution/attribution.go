// Package attribution carries the current actor and change-group through a
// unit of work via context.Context, so save paths never thread them as
// explicit parameters. Bindings are consulted exactly once, when an audit
// record is created.
//
// Because bindings live on derived contexts, restoration on exit is
// structural: the parent context is never mutated, nested bindings shadow
// outer ones, and independent goroutines with separate contexts cannot
// observe each other's bindings.
package attribution

import (
	"context"

	"github.com/retracehq/retrace/internal/models"
)

type actorKey struct{}

type groupKey struct{}

// Group is a change-group binding: a tag and a human comment, always set
// together.
type Group struct {
	Tag     string
	Comment string
}

// WithActor returns a context with the given actor bound as the current actor.
func WithActor(ctx context.Context, actor models.ActorRef) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the innermost bound actor, if any.
func ActorFrom(ctx context.Context) (models.ActorRef, bool) {
	actor, ok := ctx.Value(actorKey{}).(models.ActorRef)

	return actor, ok
}

// WithGroup returns a context with the given change-group bound.
func WithGroup(ctx context.Context, tag, comment string) context.Context {
	return context.WithValue(ctx, groupKey{}, Group{Tag: tag, Comment: comment})
}

// GroupFrom returns the innermost bound change-group, if any.
func GroupFrom(ctx context.Context) (Group, bool) {
	group, ok := ctx.Value(groupKey{}).(Group)

	return group, ok
}

// RunAs executes fn with actor bound for its dynamic extent. The binding is
// scoped to the derived context handed to fn; errors from fn propagate
// unchanged and the caller's context is untouched on every exit path.
func RunAs(ctx context.Context, actor models.ActorRef, fn func(context.Context) error) error {
	return fn(WithActor(ctx, actor))
}

// RunAsGroup executes fn with the (tag, comment) change-group bound for its
// dynamic extent, under the same scoping contract as RunAs.
func RunAsGroup(ctx context.Context, tag, comment string, fn func(context.Context) error) error {
	return fn(WithGroup(ctx, tag, comment))
}

// Resolve snapshots the current bindings into the form stamped onto audit
// records. Unbound values come back nil.
func Resolve(ctx context.Context) models.Attribution {
	var at models.Attribution

	if actor, ok := ActorFrom(ctx); ok && !actor.IsZero() {
		at.Actor = &actor
	}

	if group, ok := GroupFrom(ctx); ok {
		tag, comment := group.Tag, group.Comment
		at.GroupTag = &tag
		at.GroupComment = &comment
	}

	return at
}
