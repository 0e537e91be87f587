package perm

import (
	"context"
	"strings"

	"contentsort/internal/model"
)

type securityDisabledKey struct{}

// WithSecurityDisabled returns a context in which write checks are skipped.
//
// The elevation lives only as long as the derived context is in use; the caller's
// original ctx is never modified, so the previous state is back as soon as the
// elevated scope returns, whichever way it returns.
func WithSecurityDisabled(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, securityDisabledKey{}, true)
}

// SecurityDisabled reports whether ctx carries an elevated security scope.
func SecurityDisabled(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(securityDisabledKey{}).(bool)
	return v
}

// RunWithSecurityDisabled runs fn inside an elevated scope.
func RunWithSecurityDisabled(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(WithSecurityDisabled(ctx))
}

// CanWriteItem enforces write access for an actor.
//
// Rules:
// - Admins can write everything.
// - The owner can write.
// - Actors listed in Editors can write.
func CanWriteItem(actor *model.Actor, it *model.Item) bool {
	if actor == nil || it == nil {
		return false
	}
	actorID := strings.TrimSpace(actor.ID)
	if actorID == "" {
		return false
	}
	if actor.Admin {
		return true
	}
	if it.OwnerActorID == actorID {
		return true
	}
	for _, e := range it.Editors {
		if strings.TrimSpace(e) == actorID {
			return true
		}
	}
	return false
}

// IsLockedForActor reports whether it is locked by somebody other than actorID.
// A lock without a recorded holder counts as held by somebody else.
func IsLockedForActor(it *model.Item, actorID string) bool {
	if it == nil || !it.Locked {
		return false
	}
	if it.LockedBy == nil {
		return true
	}
	return strings.TrimSpace(*it.LockedBy) != strings.TrimSpace(actorID)
}

// IsEditable is the editor-facing flag: not locked by someone else, not read-only,
// and writable by the actor.
func IsEditable(actor *model.Actor, it *model.Item) bool {
	if actor == nil || it == nil {
		return false
	}
	if it.ReadOnly {
		return false
	}
	if IsLockedForActor(it, actor.ID) {
		return false
	}
	return CanWriteItem(actor, it)
}
