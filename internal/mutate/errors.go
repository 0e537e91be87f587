package mutate

import "fmt"

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

type OwnerOnlyError struct {
	ActorID      string
	OwnerActorID string
	ItemID       string
}

func (e OwnerOnlyError) Error() string {
	// Keep this generic; CLI/TUI can wrap with more specific phrasing.
	return "owner-only"
}

type LockedError struct {
	ItemID   string
	LockedBy string
}

func (e LockedError) Error() string {
	if e.LockedBy == "" {
		return fmt.Sprintf("item %s is locked", e.ItemID)
	}
	return fmt.Sprintf("item %s is locked by %s", e.ItemID, e.LockedBy)
}
