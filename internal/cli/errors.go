package cli

import (
	"errors"
	"fmt"

	"contentsort/internal/mutate"
	"contentsort/internal/store"
)

func errNotFound(kind, id string) error {
	return mutate.NotFoundError{Kind: kind, ID: id}
}

// describeError rewrites domain errors into CLI phrasing.
func describeError(err error) string {
	var ownerOnly mutate.OwnerOnlyError
	var denied store.WriteDeniedError
	switch {
	case errors.As(err, &ownerOnly):
		return fmt.Sprintf("permission denied: actor %s is not owner %s for item %s", ownerOnly.ActorID, ownerOnly.OwnerActorID, ownerOnly.ItemID)
	case errors.As(err, &denied):
		return fmt.Sprintf("permission denied: actor %s cannot write item %s", denied.ActorID, denied.ItemID)
	}
	return err.Error()
}
