package rpc

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
)

// HouseholdServiceName is the fully-qualified name of the HouseholdService service.
const HouseholdServiceName = "housesplit.v1.HouseholdService"

const (
	HouseholdServiceCreateHouseholdProcedure    = "/housesplit.v1.HouseholdService/CreateHousehold"
	HouseholdServiceJoinHouseholdProcedure      = "/housesplit.v1.HouseholdService/JoinHousehold"
	HouseholdServiceGetHouseholdProcedure       = "/housesplit.v1.HouseholdService/GetHousehold"
	HouseholdServiceListHouseholdsProcedure     = "/housesplit.v1.HouseholdService/ListHouseholds"
	HouseholdServiceRegenerateJoinCodeProcedure = "/housesplit.v1.HouseholdService/RegenerateJoinCode"
)

type Member struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type Household struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	JoinCode  string    `json:"joinCode"`
	OwnerID   string    `json:"ownerId"`
	Members   []*Member `json:"members"`
	CreatedAt int64     `json:"createdAt"`
}

type CreateHouseholdRequest struct {
	Name string `json:"name"`
}

type CreateHouseholdResponse struct {
	Household *Household `json:"household"`
}

type JoinHouseholdRequest struct {
	JoinCode string `json:"joinCode"`
}

type JoinHouseholdResponse struct {
	Household *Household `json:"household"`
}

type GetHouseholdRequest struct {
	HouseholdID string `json:"householdId"`
}

type GetHouseholdResponse struct {
	Household *Household `json:"household"`
}

type ListHouseholdsResponse struct {
	Households []*Household `json:"households"`
}

type RegenerateJoinCodeRequest struct {
	HouseholdID string `json:"householdId"`
}

type RegenerateJoinCodeResponse struct {
	JoinCode string `json:"joinCode"`
}

// HouseholdServiceHandler is implemented by the server side of HouseholdService.
type HouseholdServiceHandler interface {
	CreateHousehold(context.Context, *connect.Request[CreateHouseholdRequest]) (*connect.Response[CreateHouseholdResponse], error)
	JoinHousehold(context.Context, *connect.Request[JoinHouseholdRequest]) (*connect.Response[JoinHouseholdResponse], error)
	GetHousehold(context.Context, *connect.Request[GetHouseholdRequest]) (*connect.Response[GetHouseholdResponse], error)
	ListHouseholds(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[ListHouseholdsResponse], error)
	RegenerateJoinCode(context.Context, *connect.Request[RegenerateJoinCodeRequest]) (*connect.Response[RegenerateJoinCodeResponse], error)
}

// NewHouseholdServiceHandler builds an HTTP handler from the service implementation.
func NewHouseholdServiceHandler(svc HouseholdServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	handlers := map[string]http.Handler{
		HouseholdServiceCreateHouseholdProcedure:    connect.NewUnaryHandler(HouseholdServiceCreateHouseholdProcedure, svc.CreateHousehold, opts...),
		HouseholdServiceJoinHouseholdProcedure:      connect.NewUnaryHandler(HouseholdServiceJoinHouseholdProcedure, svc.JoinHousehold, opts...),
		HouseholdServiceGetHouseholdProcedure:       connect.NewUnaryHandler(HouseholdServiceGetHouseholdProcedure, svc.GetHousehold, opts...),
		HouseholdServiceListHouseholdsProcedure:     connect.NewUnaryHandler(HouseholdServiceListHouseholdsProcedure, svc.ListHouseholds, opts...),
		HouseholdServiceRegenerateJoinCodeProcedure: connect.NewUnaryHandler(HouseholdServiceRegenerateJoinCodeProcedure, svc.RegenerateJoinCode, opts...),
	}
	return servicePath(HouseholdServiceName), route(handlers)
}

// HouseholdServiceClient is a client for HouseholdService.
type HouseholdServiceClient struct {
	createHousehold    *connect.Client[CreateHouseholdRequest, CreateHouseholdResponse]
	joinHousehold      *connect.Client[JoinHouseholdRequest, JoinHouseholdResponse]
	getHousehold       *connect.Client[GetHouseholdRequest, GetHouseholdResponse]
	listHouseholds     *connect.Client[emptypb.Empty, ListHouseholdsResponse]
	regenerateJoinCode *connect.Client[RegenerateJoinCodeRequest, RegenerateJoinCodeResponse]
}

// NewHouseholdServiceClient constructs a client for HouseholdService.
func NewHouseholdServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *HouseholdServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &HouseholdServiceClient{
		createHousehold:    connect.NewClient[CreateHouseholdRequest, CreateHouseholdResponse](httpClient, baseURL+HouseholdServiceCreateHouseholdProcedure, opts...),
		joinHousehold:      connect.NewClient[JoinHouseholdRequest, JoinHouseholdResponse](httpClient, baseURL+HouseholdServiceJoinHouseholdProcedure, opts...),
		getHousehold:       connect.NewClient[GetHouseholdRequest, GetHouseholdResponse](httpClient, baseURL+HouseholdServiceGetHouseholdProcedure, opts...),
		listHouseholds:     connect.NewClient[emptypb.Empty, ListHouseholdsResponse](httpClient, baseURL+HouseholdServiceListHouseholdsProcedure, opts...),
		regenerateJoinCode: connect.NewClient[RegenerateJoinCodeRequest, RegenerateJoinCodeResponse](httpClient, baseURL+HouseholdServiceRegenerateJoinCodeProcedure, opts...),
	}
}

func (c *HouseholdServiceClient) CreateHousehold(ctx context.Context, req *connect.Request[CreateHouseholdRequest]) (*connect.Response[CreateHouseholdResponse], error) {
	return c.createHousehold.CallUnary(ctx, req)
}

func (c *HouseholdServiceClient) JoinHousehold(ctx context.Context, req *connect.Request[JoinHouseholdRequest]) (*connect.Response[JoinHouseholdResponse], error) {
	return c.joinHousehold.CallUnary(ctx, req)
}

func (c *HouseholdServiceClient) GetHousehold(ctx context.Context, req *connect.Request[GetHouseholdRequest]) (*connect.Response[GetHouseholdResponse], error) {
	return c.getHousehold.CallUnary(ctx, req)
}

func (c *HouseholdServiceClient) ListHouseholds(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[ListHouseholdsResponse], error) {
	return c.listHouseholds.CallUnary(ctx, req)
}

func (c *HouseholdServiceClient) RegenerateJoinCode(ctx context.Context, req *connect.Request[RegenerateJoinCodeRequest]) (*connect.Response[RegenerateJoinCodeResponse], error) {
	return c.regenerateJoinCode.CallUnary(ctx, req)
}
