package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/housesplit/internal/auth"
	"github.com/mmynk/housesplit/internal/models"
	"github.com/mmynk/housesplit/internal/rpc"
	"github.com/mmynk/housesplit/internal/storage"
)

// joinCodeAttempts bounds retries when a generated join code is already taken.
const joinCodeAttempts = 5

var _ rpc.HouseholdServiceHandler = (*HouseholdService)(nil)

// HouseholdService implements the HouseholdService RPC interface.
type HouseholdService struct {
	store  storage.Store
	logger *slog.Logger
}

// NewHouseholdService creates a new HouseholdService with the given storage backend.
func NewHouseholdService(store storage.Store, logger *slog.Logger) *HouseholdService {
	return &HouseholdService{store: store, logger: logger}
}

// CreateHousehold creates a household owned by the caller.
func (s *HouseholdService) CreateHousehold(ctx context.Context, req *connect.Request[rpc.CreateHouseholdRequest]) (*connect.Response[rpc.CreateHouseholdResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, invalidArgument(errors.New("household name is required"))
	}

	var household *models.Household
	for attempt := 1; ; attempt++ {
		code, err := auth.GenerateJoinCode(auth.JoinCodeLength)
		if err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}

		household = &models.Household{Name: name, JoinCode: code, OwnerID: userID}
		err = s.store.CreateHousehold(ctx, household)
		if err == nil {
			break
		}
		if !errors.Is(err, storage.ErrConflict) || attempt == joinCodeAttempts {
			s.logger.Error("CreateHousehold failed", "user_id", userID, "error", err)
			return nil, toConnectError(err)
		}
	}

	s.logger.Info("Household created", "household_id", household.ID, "user_id", userID)

	out, err := s.toRPCHousehold(ctx, household)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&rpc.CreateHouseholdResponse{Household: out}), nil
}

// JoinHousehold adds the caller to the household with the given join code.
// Joining a household twice is not an error.
func (s *HouseholdService) JoinHousehold(ctx context.Context, req *connect.Request[rpc.JoinHouseholdRequest]) (*connect.Response[rpc.JoinHouseholdResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	code := strings.ToUpper(strings.TrimSpace(req.Msg.JoinCode))
	if code == "" {
		return nil, invalidArgument(errors.New("join code is required"))
	}

	household, err := s.store.GetHouseholdByJoinCode(ctx, code)
	if err != nil {
		s.logger.Warn("JoinHousehold failed", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	if !household.HasMember(userID) {
		if err := s.store.AddMember(ctx, household.ID, userID); err != nil {
			s.logger.Error("AddMember failed", "household_id", household.ID, "user_id", userID, "error", err)
			return nil, toConnectError(err)
		}
		if household, err = s.store.GetHousehold(ctx, household.ID); err != nil {
			return nil, toConnectError(err)
		}
		s.logger.Info("Member joined household", "household_id", household.ID, "user_id", userID)
	}

	out, err := s.toRPCHousehold(ctx, household)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&rpc.JoinHouseholdResponse{Household: out}), nil
}

// GetHousehold returns a household the caller belongs to.
func (s *HouseholdService) GetHousehold(ctx context.Context, req *connect.Request[rpc.GetHouseholdRequest]) (*connect.Response[rpc.GetHouseholdResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	household, err := householdForMember(ctx, s.store, req.Msg.HouseholdID, userID)
	if err != nil {
		return nil, err
	}

	out, err := s.toRPCHousehold(ctx, household)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&rpc.GetHouseholdResponse{Household: out}), nil
}

// ListHouseholds returns every household the caller belongs to.
func (s *HouseholdService) ListHouseholds(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[rpc.ListHouseholdsResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	households, err := s.store.ListHouseholdsForUser(ctx, userID)
	if err != nil {
		s.logger.Error("ListHouseholds failed", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	out := make([]*rpc.Household, 0, len(households))
	for _, h := range households {
		converted, err := s.toRPCHousehold(ctx, h)
		if err != nil {
			return nil, err
		}
		out = append(out, converted)
	}

	return connect.NewResponse(&rpc.ListHouseholdsResponse{Households: out}), nil
}

// RegenerateJoinCode replaces the join code. Only the owner may do this.
func (s *HouseholdService) RegenerateJoinCode(ctx context.Context, req *connect.Request[rpc.RegenerateJoinCodeRequest]) (*connect.Response[rpc.RegenerateJoinCodeResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	household, err := householdForMember(ctx, s.store, req.Msg.HouseholdID, userID)
	if err != nil {
		return nil, err
	}
	if household.OwnerID != userID {
		return nil, connect.NewError(connect.CodePermissionDenied, errNotOwner)
	}

	for attempt := 1; ; attempt++ {
		code, err := auth.GenerateJoinCode(auth.JoinCodeLength)
		if err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		err = s.store.UpdateJoinCode(ctx, household.ID, code)
		if err == nil {
			s.logger.Info("Join code regenerated", "household_id", household.ID)
			return connect.NewResponse(&rpc.RegenerateJoinCodeResponse{JoinCode: code}), nil
		}
		if !errors.Is(err, storage.ErrConflict) || attempt == joinCodeAttempts {
			s.logger.Error("RegenerateJoinCode failed", "household_id", household.ID, "error", err)
			return nil, toConnectError(err)
		}
	}
}

// toRPCHousehold resolves member display names.
func (s *HouseholdService) toRPCHousehold(ctx context.Context, h *models.Household) (*rpc.Household, error) {
	names, err := memberNames(ctx, s.store, h.Members)
	if err != nil {
		return nil, err
	}

	members := make([]*rpc.Member, 0, len(h.Members))
	for _, id := range h.Members {
		members = append(members, &rpc.Member{ID: id, DisplayName: names[id]})
	}

	return &rpc.Household{
		ID:        h.ID,
		Name:      h.Name,
		JoinCode:  h.JoinCode,
		OwnerID:   h.OwnerID,
		Members:   members,
		CreatedAt: h.CreatedAt,
	}, nil
}

// memberNames maps user IDs to display names. Unknown IDs map to themselves.
func memberNames(ctx context.Context, users storage.UserStore, ids []string) (map[string]string, error) {
	found, err := users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, toConnectError(fmt.Errorf("resolve members: %w", err))
	}
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		if u, ok := found[id]; ok {
			names[id] = u.Name
		} else {
			names[id] = id
		}
	}
	return names, nil
}
