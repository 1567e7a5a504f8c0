package rpc

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// ExpenseServiceName is the fully-qualified name of the ExpenseService service.
const ExpenseServiceName = "housesplit.v1.ExpenseService"

const (
	ExpenseServiceAddExpenseProcedure         = "/housesplit.v1.ExpenseService/AddExpense"
	ExpenseServiceDeleteExpenseProcedure      = "/housesplit.v1.ExpenseService/DeleteExpense"
	ExpenseServiceListExpensesProcedure       = "/housesplit.v1.ExpenseService/ListExpenses"
	ExpenseServiceGetBalancesProcedure        = "/housesplit.v1.ExpenseService/GetBalances"
	ExpenseServiceSettleUpProcedure           = "/housesplit.v1.ExpenseService/SettleUp"
	ExpenseServiceArchiveMonthProcedure       = "/housesplit.v1.ExpenseService/ArchiveMonth"
	ExpenseServiceListSettleSessionsProcedure = "/housesplit.v1.ExpenseService/ListSettleSessions"
)

// Amounts are integer IQD. Every *Formatted field carries the same amount
// rendered for display, e.g. "1,250 IQD".

type Expense struct {
	ID              string   `json:"id"`
	HouseholdID     string   `json:"householdId"`
	PayerID         string   `json:"payerId"`
	Title           string   `json:"title"`
	Amount          int64    `json:"amount"`
	AmountFormatted string   `json:"amountFormatted"`
	ExpenseDate     string   `json:"expenseDate"`
	Participants    []string `json:"participants"`
	IsArchived      bool     `json:"isArchived"`
	ArchivedMonth   string   `json:"archivedMonth,omitempty"`
	SettleID        string   `json:"settleId,omitempty"`
	SettledAt       int64    `json:"settledAt,omitempty"`
	CreatedAt       int64    `json:"createdAt"`
}

type Balance struct {
	MemberID     string `json:"memberId"`
	DisplayName  string `json:"displayName"`
	Paid         int64  `json:"paid"`
	Consumed     int64  `json:"consumed"`
	Net          int64  `json:"net"`
	NetFormatted string `json:"netFormatted"`
}

type Transfer struct {
	From            string `json:"from"`
	FromName        string `json:"fromName"`
	To              string `json:"to"`
	ToName          string `json:"toName"`
	Amount          int64  `json:"amount"`
	AmountFormatted string `json:"amountFormatted"`
}

type SettleSession struct {
	ID             string `json:"id"`
	SettledAt      int64  `json:"settledAt"`
	ExpenseCount   int    `json:"expenseCount"`
	Total          int64  `json:"total"`
	TotalFormatted string `json:"totalFormatted"`
}

// AddExpenseRequest records a payment. PayerID defaults to the caller,
// ExpenseDate to today (UTC) and an empty Participants list to every member.
type AddExpenseRequest struct {
	HouseholdID  string   `json:"householdId"`
	PayerID      string   `json:"payerId"`
	Title        string   `json:"title"`
	Amount       int64    `json:"amount"`
	ExpenseDate  string   `json:"expenseDate"`
	Participants []string `json:"participants"`
}

type AddExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expenseId"`
}

type DeleteExpenseResponse struct{}

// ListExpensesRequest selects active expenses by default, archived expenses of
// Month (YYYY-MM) or of one settle session. Month and SettleID are exclusive.
type ListExpensesRequest struct {
	HouseholdID string `json:"householdId"`
	Month       string `json:"month,omitempty"`
	SettleID    string `json:"settleId,omitempty"`
}

type ListExpensesResponse struct {
	Expenses       []*Expense `json:"expenses"`
	Total          int64      `json:"total"`
	TotalFormatted string     `json:"totalFormatted"`
}

type GetBalancesRequest struct {
	HouseholdID string `json:"householdId"`
}

type GetBalancesResponse struct {
	Balances       []*Balance  `json:"balances"`
	Transfers      []*Transfer `json:"transfers"`
	ExpenseCount   int         `json:"expenseCount"`
	Total          int64       `json:"total"`
	TotalFormatted string      `json:"totalFormatted"`
}

type SettleUpRequest struct {
	HouseholdID string `json:"householdId"`
}

type SettleUpResponse struct {
	SettleID       string      `json:"settleId"`
	SettledAt      int64       `json:"settledAt"`
	ExpenseCount   int         `json:"expenseCount"`
	Total          int64       `json:"total"`
	TotalFormatted string      `json:"totalFormatted"`
	Transfers      []*Transfer `json:"transfers"`
}

type ArchiveMonthRequest struct {
	HouseholdID string `json:"householdId"`
	Month       string `json:"month"`
}

type ArchiveMonthResponse struct {
	Archived int `json:"archived"`
}

type ListSettleSessionsRequest struct {
	HouseholdID string `json:"householdId"`
}

type ListSettleSessionsResponse struct {
	Sessions []*SettleSession `json:"sessions"`
}

// ExpenseServiceHandler is implemented by the server side of ExpenseService.
type ExpenseServiceHandler interface {
	AddExpense(context.Context, *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error)
	DeleteExpense(context.Context, *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error)
	ListExpenses(context.Context, *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error)
	GetBalances(context.Context, *connect.Request[GetBalancesRequest]) (*connect.Response[GetBalancesResponse], error)
	SettleUp(context.Context, *connect.Request[SettleUpRequest]) (*connect.Response[SettleUpResponse], error)
	ArchiveMonth(context.Context, *connect.Request[ArchiveMonthRequest]) (*connect.Response[ArchiveMonthResponse], error)
	ListSettleSessions(context.Context, *connect.Request[ListSettleSessionsRequest]) (*connect.Response[ListSettleSessionsResponse], error)
}

// NewExpenseServiceHandler builds an HTTP handler from the service implementation.
func NewExpenseServiceHandler(svc ExpenseServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	handlers := map[string]http.Handler{
		ExpenseServiceAddExpenseProcedure:         connect.NewUnaryHandler(ExpenseServiceAddExpenseProcedure, svc.AddExpense, opts...),
		ExpenseServiceDeleteExpenseProcedure:      connect.NewUnaryHandler(ExpenseServiceDeleteExpenseProcedure, svc.DeleteExpense, opts...),
		ExpenseServiceListExpensesProcedure:       connect.NewUnaryHandler(ExpenseServiceListExpensesProcedure, svc.ListExpenses, opts...),
		ExpenseServiceGetBalancesProcedure:        connect.NewUnaryHandler(ExpenseServiceGetBalancesProcedure, svc.GetBalances, opts...),
		ExpenseServiceSettleUpProcedure:           connect.NewUnaryHandler(ExpenseServiceSettleUpProcedure, svc.SettleUp, opts...),
		ExpenseServiceArchiveMonthProcedure:       connect.NewUnaryHandler(ExpenseServiceArchiveMonthProcedure, svc.ArchiveMonth, opts...),
		ExpenseServiceListSettleSessionsProcedure: connect.NewUnaryHandler(ExpenseServiceListSettleSessionsProcedure, svc.ListSettleSessions, opts...),
	}
	return servicePath(ExpenseServiceName), route(handlers)
}

// ExpenseServiceClient is a client for ExpenseService.
type ExpenseServiceClient struct {
	addExpense         *connect.Client[AddExpenseRequest, AddExpenseResponse]
	deleteExpense      *connect.Client[DeleteExpenseRequest, DeleteExpenseResponse]
	listExpenses       *connect.Client[ListExpensesRequest, ListExpensesResponse]
	getBalances        *connect.Client[GetBalancesRequest, GetBalancesResponse]
	settleUp           *connect.Client[SettleUpRequest, SettleUpResponse]
	archiveMonth       *connect.Client[ArchiveMonthRequest, ArchiveMonthResponse]
	listSettleSessions *connect.Client[ListSettleSessionsRequest, ListSettleSessionsResponse]
}

// NewExpenseServiceClient constructs a client for ExpenseService.
func NewExpenseServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ExpenseServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &ExpenseServiceClient{
		addExpense:         connect.NewClient[AddExpenseRequest, AddExpenseResponse](httpClient, baseURL+ExpenseServiceAddExpenseProcedure, opts...),
		deleteExpense:      connect.NewClient[DeleteExpenseRequest, DeleteExpenseResponse](httpClient, baseURL+ExpenseServiceDeleteExpenseProcedure, opts...),
		listExpenses:       connect.NewClient[ListExpensesRequest, ListExpensesResponse](httpClient, baseURL+ExpenseServiceListExpensesProcedure, opts...),
		getBalances:        connect.NewClient[GetBalancesRequest, GetBalancesResponse](httpClient, baseURL+ExpenseServiceGetBalancesProcedure, opts...),
		settleUp:           connect.NewClient[SettleUpRequest, SettleUpResponse](httpClient, baseURL+ExpenseServiceSettleUpProcedure, opts...),
		archiveMonth:       connect.NewClient[ArchiveMonthRequest, ArchiveMonthResponse](httpClient, baseURL+ExpenseServiceArchiveMonthProcedure, opts...),
		listSettleSessions: connect.NewClient[ListSettleSessionsRequest, ListSettleSessionsResponse](httpClient, baseURL+ExpenseServiceListSettleSessionsProcedure, opts...),
	}
}

func (c *ExpenseServiceClient) AddExpense(ctx context.Context, req *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error) {
	return c.addExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) GetBalances(ctx context.Context, req *connect.Request[GetBalancesRequest]) (*connect.Response[GetBalancesResponse], error) {
	return c.getBalances.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) SettleUp(ctx context.Context, req *connect.Request[SettleUpRequest]) (*connect.Response[SettleUpResponse], error) {
	return c.settleUp.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ArchiveMonth(ctx context.Context, req *connect.Request[ArchiveMonthRequest]) (*connect.Response[ArchiveMonthResponse], error) {
	return c.archiveMonth.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ListSettleSessions(ctx context.Context, req *connect.Request[ListSettleSessionsRequest]) (*connect.Response[ListSettleSessionsResponse], error) {
	return c.listSettleSessions.CallUnary(ctx, req)
}
