package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/housesplit/internal/auth"
	"github.com/mmynk/housesplit/internal/calculator"
	"github.com/mmynk/housesplit/internal/middleware"
	"github.com/mmynk/housesplit/internal/models"
	"github.com/mmynk/housesplit/internal/storage"
)

var (
	errNotMember       = errors.New("not a member of this household")
	errNotOwner        = errors.New("only the household owner can do this")
	errNothingToSettle = errors.New("no active expenses to settle")
	errSettleRaced     = errors.New("expenses changed while settling, try again")
)

// toConnectError maps domain and storage errors to Connect codes.
// Errors that are already *connect.Error pass through unchanged.
func toConnectError(err error) error {
	var connectErr *connect.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &connectErr):
		return err
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, calculator.ErrInvalidExpense),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrMissingName):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken):
		return connect.NewError(connect.CodeUnauthenticated, err)
	case errors.Is(err, auth.ErrEmailExists),
		errors.Is(err, storage.ErrConflict):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func invalidArgument(err error) error {
	return connect.NewError(connect.CodeInvalidArgument, err)
}

// currentUser returns the authenticated caller or an Unauthenticated error.
func currentUser(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return userID, nil
}

// householdForMember loads a household and checks that userID belongs to it.
func householdForMember(ctx context.Context, store storage.HouseholdStore, householdID, userID string) (*models.Household, error) {
	if householdID == "" {
		return nil, invalidArgument(errors.New("household_id is required"))
	}
	household, err := store.GetHousehold(ctx, householdID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if !household.HasMember(userID) {
		return nil, connect.NewError(connect.CodePermissionDenied, errNotMember)
	}
	return household, nil
}
