package service

import (
	"context"

	"familytrack/internal/core/apperr"
	"familytrack/internal/core/repository"
)

// validateFamilyAccess allows callerID to read or manage targetID's data when both belong to
// the same family. An empty callerID means the request was not authenticated and is trusted.
func validateFamilyAccess(ctx context.Context, families repository.FamilyRepository, op, callerID, targetID string) error {
	if targetID == "" {
		return apperr.Validation(op, "user id is required")
	}
	if callerID == "" || callerID == targetID {
		return nil
	}

	caller, err := families.FindByUserID(ctx, callerID)
	if err != nil {
		return apperr.Storage(op, err)
	}
	if caller == nil {
		return apperr.Unauthorized(op, "caller belongs to no family")
	}

	target, err := families.FindByUserID(ctx, targetID)
	if err != nil {
		return apperr.Storage(op, err)
	}
	if target == nil || target.FamilyID != caller.FamilyID {
		return apperr.Unauthorized(op, "user %s is not in the caller's family", targetID)
	}
	return nil
}
