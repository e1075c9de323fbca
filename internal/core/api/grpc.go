package api

import (
	"context"

	"google.golang.org/grpc"

	"github.com/solatis/quotekeeper/internal/rules"
	"github.com/solatis/quotekeeper/internal/types"
)

/*
 * gRPC binding for QuoteService.
 *
 * There is no .proto file: payloads are the Go structs below, carried by
 * the JSON codec (content-subtype "json"). Clients must dial with
 * grpc.CallContentSubtype(CodecName); NewQuoteAPIClient does this.
 *
 * Method set mirrors the HTTP gateway:
 *   CalculateQuote, TestRule, ListRules, GetRule, SaveRule, DeleteRule,
 *   ListFields, FieldOptions, GetQuote, ListQuotes
 */

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "quotekeeper.v1.QuoteAPI"

type CalculateQuoteRequest struct {
	Input types.QuoteInput `json:"input"`
}

type TestRuleRequest struct {
	Rule   types.RuleRecord `json:"rule"`
	Quotes []types.Record   `json:"quotes,omitempty"`
}

type TestRuleResponse struct {
	Traces []rules.RuleTrace `json:"traces"`
}

type ListRulesRequest struct{}

type ListRulesResponse struct {
	Rules []RuleView `json:"rules"`
}

type GetRuleRequest struct {
	ID string `json:"id"`
}

type SaveRuleRequest struct {
	Rule types.RuleRecord `json:"rule"`
}

type RuleResponse struct {
	Rule RuleView `json:"rule"`
}

type DeleteRuleRequest struct {
	ID string `json:"id"`
}

type DeleteRuleResponse struct{}

type ListFieldsRequest struct{}

type FieldOptionsRequest struct {
	FieldType string `json:"field_type"`
}

type FieldOptionsResponse struct {
	FieldType string               `json:"field_type"`
	Options   []types.LookupOption `json:"options"`
}

type GetQuoteRequest struct {
	ID string `json:"id"`
}

type QuoteResponse struct {
	Quote types.QuoteRecord `json:"quote"`
}

type ListQuotesRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

type ListQuotesResponse struct {
	Quotes []types.QuoteRecord `json:"quotes"`
}

// QuoteAPIServer is the server API for the QuoteAPI service.
type QuoteAPIServer interface {
	CalculateQuote(context.Context, *CalculateQuoteRequest) (*CalculateResult, error)
	TestRule(context.Context, *TestRuleRequest) (*TestRuleResponse, error)
	ListRules(context.Context, *ListRulesRequest) (*ListRulesResponse, error)
	GetRule(context.Context, *GetRuleRequest) (*RuleResponse, error)
	SaveRule(context.Context, *SaveRuleRequest) (*RuleResponse, error)
	DeleteRule(context.Context, *DeleteRuleRequest) (*DeleteRuleResponse, error)
	ListFields(context.Context, *ListFieldsRequest) (*FieldCatalog, error)
	FieldOptions(context.Context, *FieldOptionsRequest) (*FieldOptionsResponse, error)
	GetQuote(context.Context, *GetQuoteRequest) (*QuoteResponse, error)
	ListQuotes(context.Context, *ListQuotesRequest) (*ListQuotesResponse, error)
}

// QuoteAPIServiceDesc describes QuoteAPI for grpc.Server.RegisterService.
var QuoteAPIServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*QuoteAPIServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CalculateQuote", QuoteAPIServer.CalculateQuote),
		unary("TestRule", QuoteAPIServer.TestRule),
		unary("ListRules", QuoteAPIServer.ListRules),
		unary("GetRule", QuoteAPIServer.GetRule),
		unary("SaveRule", QuoteAPIServer.SaveRule),
		unary("DeleteRule", QuoteAPIServer.DeleteRule),
		unary("ListFields", QuoteAPIServer.ListFields),
		unary("FieldOptions", QuoteAPIServer.FieldOptions),
		unary("GetQuote", QuoteAPIServer.GetQuote),
		unary("ListQuotes", QuoteAPIServer.ListQuotes),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "quotekeeper/v1/quote_api",
}

// RegisterQuoteAPIServer registers srv on s.
func RegisterQuoteAPIServer(s grpc.ServiceRegistrar, srv QuoteAPIServer) {
	s.RegisterService(&QuoteAPIServiceDesc, srv)
}

// unary builds the method descriptor generated code would emit for one
// unary method.
func unary[Req, Resp any](name string, call func(QuoteAPIServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(QuoteAPIServer), ctx, req.(*Req))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// GRPCHandler serves QuoteAPI from a QuoteService, converting errors to
// gRPC statuses.
type GRPCHandler struct {
	svc *QuoteService
}

// NewGRPCHandler wraps svc.
func NewGRPCHandler(svc *QuoteService) *GRPCHandler {
	return &GRPCHandler{svc: svc}
}

var _ QuoteAPIServer = (*GRPCHandler)(nil)

func (h *GRPCHandler) CalculateQuote(ctx context.Context, req *CalculateQuoteRequest) (*CalculateResult, error) {
	res, err := h.svc.CalculateQuote(ctx, req.Input)
	if err != nil {
		return nil, ToStatus(err)
	}
	return &res, nil
}

func (h *GRPCHandler) TestRule(ctx context.Context, req *TestRuleRequest) (*TestRuleResponse, error) {
	traces, err := h.svc.TestRule(ctx, req.Rule, req.Quotes)
	if err != nil {
		return nil, ToStatus(err)
	}
	return &TestRuleResponse{Traces: traces}, nil
}

func (h *GRPCHandler) ListRules(ctx context.Context, _ *ListRulesRequest) (*ListRulesResponse, error) {
	rs, err := h.svc.ListRules(ctx)
	if err != nil {
		return nil, ToStatus(err)
	}
	return &ListRulesResponse{Rules: rs}, nil
}

func (h *GRPCHandler) GetRule(ctx context.Context, req *GetRuleRequest) (*RuleResponse, error) {
	r, err := h.svc.GetRule(ctx, req.ID)
	if err != nil {
		return nil, ToStatus(err)
	}
	return &RuleResponse{Rule: r}, nil
}

func (h *GRPCHandler) SaveRule(ctx context.Context, req *SaveRuleRequest) (*RuleResponse, error) {
	r, err := h.svc.SaveRule(ctx, req.Rule)
	if err != nil {
		return nil, ToStatus(err)
	}
	return &RuleResponse{Rule: r}, nil
}

func (h *GRPCHandler) DeleteRule(ctx context.Context, req *DeleteRuleRequest) (*DeleteRuleResponse, error) {
	if err := h.svc.DeleteRule(ctx, req.ID); err != nil {
		return nil, ToStatus(err)
	}
	return &DeleteRuleResponse{}, nil
}

func (h *GRPCHandler) ListFields(context.Context, *ListFieldsRequest) (*FieldCatalog, error) {
	catalog := h.svc.Fields()
	return &catalog, nil
}

func (h *GRPCHandler) FieldOptions(ctx context.Context, req *FieldOptionsRequest) (*FieldOptionsResponse, error) {
	opts, err := h.svc.FieldOptions(ctx, req.FieldType)
	if err != nil {
		return nil, ToStatus(err)
	}
	return &FieldOptionsResponse{FieldType: req.FieldType, Options: opts}, nil
}

func (h *GRPCHandler) GetQuote(ctx context.Context, req *GetQuoteRequest) (*QuoteResponse, error) {
	q, err := h.svc.GetQuote(ctx, req.ID)
	if err != nil {
		return nil, ToStatus(err)
	}
	return &QuoteResponse{Quote: q}, nil
}

func (h *GRPCHandler) ListQuotes(ctx context.Context, req *ListQuotesRequest) (*ListQuotesResponse, error) {
	qs, err := h.svc.ListQuotes(ctx, req.Limit, req.Offset)
	if err != nil {
		return nil, ToStatus(err)
	}
	return &ListQuotesResponse{Quotes: qs}, nil
}

// QuoteAPIClient is a client for QuoteAPI.
type QuoteAPIClient struct {
	cc grpc.ClientConnInterface
}

// NewQuoteAPIClient wraps cc.
func NewQuoteAPIClient(cc grpc.ClientConnInterface) *QuoteAPIClient {
	return &QuoteAPIClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, req any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *QuoteAPIClient) CalculateQuote(ctx context.Context, req *CalculateQuoteRequest, opts ...grpc.CallOption) (*CalculateResult, error) {
	return invoke[CalculateResult](ctx, c.cc, "CalculateQuote", req, opts)
}

func (c *QuoteAPIClient) TestRule(ctx context.Context, req *TestRuleRequest, opts ...grpc.CallOption) (*TestRuleResponse, error) {
	return invoke[TestRuleResponse](ctx, c.cc, "TestRule", req, opts)
}

func (c *QuoteAPIClient) ListRules(ctx context.Context, req *ListRulesRequest, opts ...grpc.CallOption) (*ListRulesResponse, error) {
	return invoke[ListRulesResponse](ctx, c.cc, "ListRules", req, opts)
}

func (c *QuoteAPIClient) GetRule(ctx context.Context, req *GetRuleRequest, opts ...grpc.CallOption) (*RuleResponse, error) {
	return invoke[RuleResponse](ctx, c.cc, "GetRule", req, opts)
}

func (c *QuoteAPIClient) SaveRule(ctx context.Context, req *SaveRuleRequest, opts ...grpc.CallOption) (*RuleResponse, error) {
	return invoke[RuleResponse](ctx, c.cc, "SaveRule", req, opts)
}

func (c *QuoteAPIClient) DeleteRule(ctx context.Context, req *DeleteRuleRequest, opts ...grpc.CallOption) (*DeleteRuleResponse, error) {
	return invoke[DeleteRuleResponse](ctx, c.cc, "DeleteRule", req, opts)
}

func (c *QuoteAPIClient) ListFields(ctx context.Context, req *ListFieldsRequest, opts ...grpc.CallOption) (*FieldCatalog, error) {
	return invoke[FieldCatalog](ctx, c.cc, "ListFields", req, opts)
}

func (c *QuoteAPIClient) FieldOptions(ctx context.Context, req *FieldOptionsRequest, opts ...grpc.CallOption) (*FieldOptionsResponse, error) {
	return invoke[FieldOptionsResponse](ctx, c.cc, "FieldOptions", req, opts)
}

func (c *QuoteAPIClient) GetQuote(ctx context.Context, req *GetQuoteRequest, opts ...grpc.CallOption) (*QuoteResponse, error) {
	return invoke[QuoteResponse](ctx, c.cc, "GetQuote", req, opts)
}

func (c *QuoteAPIClient) ListQuotes(ctx context.Context, req *ListQuotesRequest, opts ...grpc.CallOption) (*ListQuotesResponse, error) {
	return invoke[ListQuotesResponse](ctx, c.cc, "ListQuotes", req, opts)
}
