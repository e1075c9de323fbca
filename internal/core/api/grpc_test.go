package api

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/solatis/quotekeeper/internal/core/config"
	"github.com/solatis/quotekeeper/internal/types"
)

func newTestClient(t *testing.T, f *fixture) (*QuoteAPIClient, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterQuoteAPIServer(srv, NewGRPCHandler(f.svc))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, healthServer)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewQuoteAPIClient(conn), conn
}

func TestGRPC_CalculateQuote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.QuotesConfig{Save: true, EnforceRuleDates: true})
	seedPrice(t, f, "cert-iv", "1000")
	client, _ := newTestClient(t, f)

	saved, err := client.SaveRule(ctx, &SaveRuleRequest{Rule: vetUplift()})
	require.NoError(t, err)
	require.NotEmpty(t, saved.Rule.ID)

	res, err := client.CalculateQuote(ctx, &CalculateQuoteRequest{Input: vetInput()})
	require.NoError(t, err)
	assert.Equal(t, "1100", res.Quote.TotalPrice.String())
	require.NotEmpty(t, res.QuoteID)

	got, err := client.GetQuote(ctx, &GetQuoteRequest{ID: string(res.QuoteID)})
	require.NoError(t, err)
	assert.Equal(t, res.QuoteID, got.Quote.ID)

	list, err := client.ListQuotes(ctx, &ListQuotesRequest{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, list.Quotes, 1)
}

func TestGRPC_RuleLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.QuotesConfig{})
	client, _ := newTestClient(t, f)

	saved, err := client.SaveRule(ctx, &SaveRuleRequest{Rule: enrolmentFee()})
	require.NoError(t, err)

	rules, err := client.ListRules(ctx, &ListRulesRequest{})
	require.NoError(t, err)
	require.Len(t, rules.Rules, 1)
	assert.Equal(t, types.RuleActive, rules.Rules[0].Status)

	traces, err := client.TestRule(ctx, &TestRuleRequest{
		Rule:   enrolmentFee(),
		Quotes: []types.Record{{"duration_weeks": 12}},
	})
	require.NoError(t, err)
	require.Len(t, traces.Traces, 1)
	assert.True(t, traces.Traces[0].Applies)

	_, err = client.DeleteRule(ctx, &DeleteRuleRequest{ID: saved.Rule.ID})
	require.NoError(t, err)

	_, err = client.GetRule(ctx, &GetRuleRequest{ID: saved.Rule.ID})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPC_ErrorCodes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.QuotesConfig{})
	client, _ := newTestClient(t, f)

	in := vetInput()
	in.CourseDetails = nil
	_, err := client.CalculateQuote(ctx, &CalculateQuoteRequest{Input: in})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.FieldOptions(ctx, &FieldOptionsRequest{FieldType: "boolean"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.GetQuote(ctx, &GetQuoteRequest{ID: "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPC_FieldsAndOptions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.QuotesConfig{})
	require.NoError(t, f.store.SaveLookupOption(ctx, "region", types.LookupOption{ID: "asia", Name: "Asia"}))
	client, _ := newTestClient(t, f)

	catalog, err := client.ListFields(ctx, &ListFieldsRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, catalog.Fields)

	opts, err := client.FieldOptions(ctx, &FieldOptionsRequest{FieldType: "region"})
	require.NoError(t, err)
	assert.Equal(t, "region", opts.FieldType)
	assert.Equal(t, []types.LookupOption{{ID: "asia", Name: "Asia"}}, opts.Options)
}

func TestGRPC_HealthOverJSONCodec(t *testing.T) {
	f := newFixture(t, config.QuotesConfig{})
	_, conn := newTestClient(t, f)

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(),
		&grpc_health_v1.HealthCheckRequest{}, grpc.CallContentSubtype(CodecName))
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestJSONCodec(t *testing.T) {
	c := jsonCodec{}
	assert.Equal(t, "json", c.Name())

	data, err := c.Marshal(&grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"SERVING"}`, string(data))

	data, err = c.Marshal(&GetRuleRequest{ID: "r1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"r1"}`, string(data))

	var req GetRuleRequest
	require.NoError(t, c.Unmarshal([]byte(`{"id":"r2"}`), &req))
	assert.Equal(t, "r2", req.ID)
}
