package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mmynk/housesplit/internal/calculator"
	"github.com/mmynk/housesplit/internal/events"
	"github.com/mmynk/housesplit/internal/metrics"
	"github.com/mmynk/housesplit/internal/models"
	"github.com/mmynk/housesplit/internal/rpc"
	"github.com/mmynk/housesplit/internal/storage"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

var _ rpc.ExpenseServiceHandler = (*ExpenseService)(nil)

// ExpenseService implements the ExpenseService RPC interface. Balances and
// settlement plans are recomputed from the active expenses on every call.
type ExpenseService struct {
	store     storage.Store
	metrics   *metrics.Metrics
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
	settle    func(members []string, expenses []calculator.Expense) (*calculator.Plan, error)
}

// NewExpenseService creates a new ExpenseService.
func NewExpenseService(store storage.Store, m *metrics.Metrics, publisher events.Publisher, logger *slog.Logger) *ExpenseService {
	return &ExpenseService{
		store:     store,
		metrics:   m,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		settle:    calculator.Settle,
	}
}

// AddExpense records a payment made by a household member.
func (s *ExpenseService) AddExpense(ctx context.Context, req *connect.Request[rpc.AddExpenseRequest]) (*connect.Response[rpc.AddExpenseResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("AddExpense request received",
		"household_id", req.Msg.HouseholdID,
		"user_id", userID,
		"amount", req.Msg.Amount,
		"participants_count", len(req.Msg.Participants),
	)

	household, err := householdForMember(ctx, s.store, req.Msg.HouseholdID, userID)
	if err != nil {
		return nil, err
	}

	expense := &models.Expense{
		HouseholdID:  household.ID,
		PayerID:      req.Msg.PayerID,
		Title:        strings.TrimSpace(req.Msg.Title),
		Amount:       req.Msg.Amount,
		ExpenseDate:  req.Msg.ExpenseDate,
		Participants: dedupe(req.Msg.Participants),
	}
	if expense.PayerID == "" {
		expense.PayerID = userID
	}
	if expense.ExpenseDate == "" {
		expense.ExpenseDate = s.now().UTC().Format(dateLayout)
	}
	if len(expense.Participants) == 0 {
		expense.Participants = append([]string(nil), household.Members...)
	}

	if expense.Title == "" {
		return nil, invalidArgument(errors.New("title is required"))
	}
	if _, err := time.Parse(dateLayout, expense.ExpenseDate); err != nil {
		return nil, invalidArgument(fmt.Errorf("expense date %q must be YYYY-MM-DD", expense.ExpenseDate))
	}
	// Run the expense through the calculator alongside the active ones so
	// anything stored is guaranteed to be accepted when balances are computed.
	active, err := s.store.ListActiveExpenses(ctx, household.ID)
	if err != nil {
		return nil, toConnectError(err)
	}
	input := make([]calculator.Expense, 0, len(active)+1)
	for _, e := range active {
		input = append(input, toCalculatorExpense(e))
	}
	input = append(input, toCalculatorExpense(expense))
	if _, err := calculator.CalculateNetBalances(household.Members, input); err != nil {
		return nil, toConnectError(err)
	}

	if err := s.store.CreateExpense(ctx, expense); err != nil {
		s.logger.Error("AddExpense failed", "household_id", household.ID, "error", err)
		return nil, toConnectError(err)
	}

	s.logger.Info("Expense added", "household_id", household.ID, "expense_id", expense.ID)
	return connect.NewResponse(&rpc.AddExpenseResponse{Expense: toRPCExpense(expense)}), nil
}

// DeleteExpense removes an active expense. Archived expenses cannot be deleted.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[rpc.DeleteExpenseRequest]) (*connect.Response[rpc.DeleteExpenseResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	expense, err := s.store.GetExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if _, err := householdForMember(ctx, s.store, expense.HouseholdID, userID); err != nil {
		return nil, err
	}
	if expense.IsArchived {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errors.New("archived expenses cannot be deleted"))
	}

	if err := s.store.DeleteExpense(ctx, expense.ID); err != nil {
		s.logger.Error("DeleteExpense failed", "expense_id", expense.ID, "error", err)
		return nil, toConnectError(err)
	}

	s.logger.Info("Expense deleted", "household_id", expense.HouseholdID, "expense_id", expense.ID)
	return connect.NewResponse(&rpc.DeleteExpenseResponse{}), nil
}

// ListExpenses lists active expenses, or archived ones by month or settle session.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[rpc.ListExpensesRequest]) (*connect.Response[rpc.ListExpensesResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	household, err := householdForMember(ctx, s.store, req.Msg.HouseholdID, userID)
	if err != nil {
		return nil, err
	}

	var expenses []*models.Expense
	switch {
	case req.Msg.Month != "" && req.Msg.SettleID != "":
		return nil, invalidArgument(errors.New("month and settle_id are mutually exclusive"))
	case req.Msg.Month != "":
		if err := validateMonth(req.Msg.Month); err != nil {
			return nil, err
		}
		expenses, err = s.store.ListExpensesByMonth(ctx, household.ID, req.Msg.Month)
	case req.Msg.SettleID != "":
		expenses, err = s.store.ListExpensesBySettle(ctx, household.ID, req.Msg.SettleID)
	default:
		expenses, err = s.store.ListActiveExpenses(ctx, household.ID)
	}
	if err != nil {
		s.logger.Error("ListExpenses failed", "household_id", household.ID, "error", err)
		return nil, toConnectError(err)
	}

	resp := &rpc.ListExpensesResponse{Expenses: make([]*rpc.Expense, 0, len(expenses))}
	for _, e := range expenses {
		resp.Expenses = append(resp.Expenses, toRPCExpense(e))
		resp.Total += e.Amount
	}
	resp.TotalFormatted = calculator.FormatIQD(resp.Total)

	return connect.NewResponse(resp), nil
}

// GetBalances computes net balances and the settlement plan for the active expenses.
func (s *ExpenseService) GetBalances(ctx context.Context, req *connect.Request[rpc.GetBalancesRequest]) (*connect.Response[rpc.GetBalancesResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	household, err := householdForMember(ctx, s.store, req.Msg.HouseholdID, userID)
	if err != nil {
		return nil, err
	}

	expenses, plan, err := s.computePlan(ctx, household)
	if err != nil {
		return nil, err
	}

	names, err := memberNames(ctx, s.store, household.Members)
	if err != nil {
		return nil, err
	}

	balances := make([]*rpc.Balance, 0, len(plan.Balances))
	for _, b := range plan.Balances {
		balances = append(balances, &rpc.Balance{
			MemberID:     b.MemberID,
			DisplayName:  names[b.MemberID],
			Paid:         b.Paid,
			Consumed:     b.Consumed,
			Net:          b.Net,
			NetFormatted: calculator.FormatIQD(b.Net),
		})
	}

	return connect.NewResponse(&rpc.GetBalancesResponse{
		Balances:       balances,
		Transfers:      toRPCTransfers(plan.Transfers, names),
		ExpenseCount:   len(expenses),
		Total:          plan.Total,
		TotalFormatted: calculator.FormatIQD(plan.Total),
	}), nil
}

// SettleUp computes the plan for the active expenses and archives exactly
// those expenses under a new settle session.
func (s *ExpenseService) SettleUp(ctx context.Context, req *connect.Request[rpc.SettleUpRequest]) (*connect.Response[rpc.SettleUpResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	household, err := householdForMember(ctx, s.store, req.Msg.HouseholdID, userID)
	if err != nil {
		return nil, err
	}

	expenses, plan, err := s.computePlan(ctx, household)
	if err != nil {
		return nil, err
	}
	if len(expenses) == 0 {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errNothingToSettle)
	}

	ids := make([]string, len(expenses))
	for i, e := range expenses {
		ids[i] = e.ID
	}

	settleID := uuid.New().String()
	settledAt := s.now()

	n, err := s.store.MarkSettled(ctx, household.ID, ids, settleID, settledAt.Unix())
	if errors.Is(err, storage.ErrConflict) {
		s.logger.Warn("SettleUp raced with another change", "household_id", household.ID, "error", err)
		return nil, connect.NewError(connect.CodeAborted, errSettleRaced)
	}
	if err != nil {
		s.logger.Error("SettleUp failed", "household_id", household.ID, "error", err)
		return nil, toConnectError(err)
	}
	s.metrics.ObserveSettleSession(n)

	s.logger.Info("Household settled",
		"household_id", household.ID,
		"settle_id", settleID,
		"user_id", userID,
		"expenses", n,
		"transfers", len(plan.Transfers),
	)

	event := &events.SettlementRecorded{
		SettleID:     settleID,
		HouseholdID:  household.ID,
		SettledBy:    userID,
		SettledAt:    settledAt.UTC(),
		ExpenseCount: n,
		Total:        plan.Total,
		Transfers:    make([]events.TransferRecord, 0, len(plan.Transfers)),
	}
	for _, t := range plan.Transfers {
		event.Transfers = append(event.Transfers, events.TransferRecord{From: t.From, To: t.To, Amount: t.Amount})
	}
	// The settle session is already committed; a lost event is logged, not returned.
	if err := s.publisher.PublishSettlement(ctx, event); err != nil {
		s.logger.Error("Failed to publish settlement", "settle_id", settleID, "error", err)
	}

	names, err := memberNames(ctx, s.store, household.Members)
	if err != nil {
		return nil, err
	}

	return connect.NewResponse(&rpc.SettleUpResponse{
		SettleID:       settleID,
		SettledAt:      settledAt.Unix(),
		ExpenseCount:   n,
		Total:          plan.Total,
		TotalFormatted: calculator.FormatIQD(plan.Total),
		Transfers:      toRPCTransfers(plan.Transfers, names),
	}), nil
}

// ArchiveMonth archives every active expense dated in the given month without settling.
func (s *ExpenseService) ArchiveMonth(ctx context.Context, req *connect.Request[rpc.ArchiveMonthRequest]) (*connect.Response[rpc.ArchiveMonthResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	household, err := householdForMember(ctx, s.store, req.Msg.HouseholdID, userID)
	if err != nil {
		return nil, err
	}
	if err := validateMonth(req.Msg.Month); err != nil {
		return nil, err
	}

	n, err := s.store.ArchiveMonth(ctx, household.ID, req.Msg.Month)
	if err != nil {
		s.logger.Error("ArchiveMonth failed", "household_id", household.ID, "month", req.Msg.Month, "error", err)
		return nil, toConnectError(err)
	}

	s.logger.Info("Month archived", "household_id", household.ID, "month", req.Msg.Month, "expenses", n)
	return connect.NewResponse(&rpc.ArchiveMonthResponse{Archived: n}), nil
}

// ListSettleSessions returns past settle sessions, newest first.
func (s *ExpenseService) ListSettleSessions(ctx context.Context, req *connect.Request[rpc.ListSettleSessionsRequest]) (*connect.Response[rpc.ListSettleSessionsResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	household, err := householdForMember(ctx, s.store, req.Msg.HouseholdID, userID)
	if err != nil {
		return nil, err
	}

	sessions, err := s.store.ListSettleSessions(ctx, household.ID)
	if err != nil {
		s.logger.Error("ListSettleSessions failed", "household_id", household.ID, "error", err)
		return nil, toConnectError(err)
	}

	out := make([]*rpc.SettleSession, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, &rpc.SettleSession{
			ID:             session.ID,
			SettledAt:      session.SettledAt,
			ExpenseCount:   session.ExpenseCount,
			Total:          session.Total,
			TotalFormatted: calculator.FormatIQD(session.Total),
		})
	}

	return connect.NewResponse(&rpc.ListSettleSessionsResponse{Sessions: out}), nil
}

// computePlan loads the active expenses and runs the settlement engine over them.
// Invariant violations are logged at ERROR, counted, and surfaced as Internal.
func (s *ExpenseService) computePlan(ctx context.Context, household *models.Household) ([]*models.Expense, *calculator.Plan, error) {
	expenses, err := s.store.ListActiveExpenses(ctx, household.ID)
	if err != nil {
		s.logger.Error("Failed to load active expenses", "household_id", household.ID, "error", err)
		return nil, nil, toConnectError(err)
	}

	input := make([]calculator.Expense, len(expenses))
	for i, e := range expenses {
		input[i] = toCalculatorExpense(e)
	}

	start := time.Now()
	plan, err := s.settle(household.Members, input)
	if err != nil {
		var invariant *calculator.InvariantError
		if errors.As(err, &invariant) {
			s.metrics.ObserveInvariantViolation(invariant.Check)
			s.logger.Error("Settlement invariant violated",
				"household_id", household.ID,
				"check", invariant.Check,
				"error", err,
			)
			return nil, nil, connect.NewError(connect.CodeInternal, errors.New("settlement could not be computed"))
		}
		// Stored expenses were validated on insert; failing here means the
		// data changed underneath, e.g. a payer is no longer a member.
		s.logger.Error("Settlement rejected stored expenses", "household_id", household.ID, "error", err)
		return nil, nil, connect.NewError(connect.CodeFailedPrecondition, err)
	}
	s.metrics.ObservePlan(len(plan.Transfers))

	s.logger.Debug("Settlement plan computed",
		"household_id", household.ID,
		"expenses", len(expenses),
		"transfers", len(plan.Transfers),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return expenses, plan, nil
}

func validateMonth(month string) error {
	if _, err := time.Parse(monthLayout, month); err != nil {
		return invalidArgument(fmt.Errorf("month %q must be YYYY-MM", month))
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func toCalculatorExpense(e *models.Expense) calculator.Expense {
	return calculator.Expense{
		ID:           e.ID,
		PayerID:      e.PayerID,
		Amount:       e.Amount,
		Participants: e.Participants,
	}
}

func toRPCExpense(e *models.Expense) *rpc.Expense {
	return &rpc.Expense{
		ID:              e.ID,
		HouseholdID:     e.HouseholdID,
		PayerID:         e.PayerID,
		Title:           e.Title,
		Amount:          e.Amount,
		AmountFormatted: calculator.FormatIQD(e.Amount),
		ExpenseDate:     e.ExpenseDate,
		Participants:    e.Participants,
		IsArchived:      e.IsArchived,
		ArchivedMonth:   e.ArchivedMonth,
		SettleID:        e.SettleID,
		SettledAt:       e.SettledAt,
		CreatedAt:       e.CreatedAt,
	}
}

func toRPCTransfers(transfers []calculator.Transfer, names map[string]string) []*rpc.Transfer {
	out := make([]*rpc.Transfer, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, &rpc.Transfer{
			From:            t.From,
			FromName:        names[t.From],
			To:              t.To,
			ToName:          names[t.To],
			Amount:          t.Amount,
			AmountFormatted: calculator.FormatIQD(t.Amount),
		})
	}
	return out
}
