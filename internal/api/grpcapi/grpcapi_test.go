package grpcapi

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/BearBump/trackgen/internal/cache/memcache"
	"github.com/BearBump/trackgen/internal/metrics"
	"github.com/BearBump/trackgen/internal/models"
	"github.com/BearBump/trackgen/internal/services/trackingnumbers"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func startServer(t *testing.T, gen Generator, opts ...grpc.ServerOption) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(opts...)
	RegisterTrackingNumbersServer(srv, New(gen, nil))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func validRequest(t *testing.T) *structpb.Struct {
	t.Helper()
	in, err := structpb.NewStruct(map[string]any{
		"origin_country":      "MY",
		"destination_country": "ID",
		"weight":              "1.234",
		"customer_id":         "de619854-b59b-425e-9db4-943979e1bd49",
		"customer_name":       "RedBox Logistics",
		"customer_slug":       "redbox-logistics",
	})
	require.NoError(t, err)
	return in
}

func TestGenerate_OK_AndIdempotent(t *testing.T) {
	c := startServer(t, trackingnumbers.New(memcache.New(), time.Hour))
	ctx := context.Background()

	first, err := c.Generate(ctx, validRequest(t))
	require.NoError(t, err)
	tn := first.GetFields()["tracking_number"].GetStringValue()
	require.True(t, trackingnumbers.ValidTrackingNumber(tn), tn)
	_, err = time.Parse(time.RFC3339Nano, first.GetFields()["created_at"].GetStringValue())
	require.NoError(t, err)

	// число вместо строки для веса тоже принимаем
	in := validRequest(t)
	in.Fields["weight"] = structpb.NewNumberValue(1.234)
	second, err := c.Generate(ctx, in)
	require.NoError(t, err)
	require.Equal(t, tn, second.GetFields()["tracking_number"].GetStringValue())
}

func TestGenerate_InvalidArgument(t *testing.T) {
	gen := &stubGenerator{}
	c := startServer(t, gen)

	in := validRequest(t)
	in.Fields["origin_country"] = structpb.NewStringValue("malaysia")
	in.Fields["customer_slug"] = structpb.NewBoolValue(true)
	delete(in.Fields, "customer_id")

	_, err := c.Generate(context.Background(), in)
	st, ok := status.FromError(err)
	require.True(t, ok)
	require.Equal(t, codes.InvalidArgument, st.Code())
	require.Zero(t, gen.calls)

	var fields []string
	for _, d := range st.Details() {
		br, ok := d.(*errdetails.BadRequest)
		require.True(t, ok)
		for _, v := range br.GetFieldViolations() {
			fields = append(fields, v.GetField())
		}
	}
	require.Equal(t, []string{models.FieldOriginCountry, models.FieldCustomerID, models.FieldCustomerSlug}, fields)
}

func TestGenerate_ErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
		msg  string
	}{
		{err: errors.Join(trackingnumbers.ErrCacheUnavailable, errors.New("dial tcp")), code: codes.Unavailable, msg: "cache unavailable"},
		{err: trackingnumbers.ErrCacheCorruption, code: codes.Internal, msg: "internal error"},
		{err: errors.New("boom"), code: codes.Internal, msg: "internal error"},
	}
	for _, c := range cases {
		client := startServer(t, &stubGenerator{err: c.err})
		_, err := client.Generate(context.Background(), validRequest(t))
		st, ok := status.FromError(err)
		require.True(t, ok)
		require.Equal(t, c.code, st.Code(), c.err.Error())
		require.Equal(t, c.msg, st.Message(), c.err.Error())
	}
}

func TestMetricsInterceptor(t *testing.T) {
	m := metrics.New("trackgen")
	c := startServer(t, &stubGenerator{}, grpc.UnaryInterceptor(MetricsInterceptor(m)))

	_, err := c.Generate(context.Background(), validRequest(t))
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), &structpb.Struct{})
	require.Error(t, err)

	series, err := testutil.GatherAndCount(m.Registry(), "trackgen_requests_total")
	require.NoError(t, err)
	require.Equal(t, 2, series, "OK and InvalidArgument")
	series, err = testutil.GatherAndCount(m.Registry(), "trackgen_request_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, series)
}

type stubGenerator struct {
	calls int
	err   error
}

func (g *stubGenerator) Generate(ctx context.Context, req models.TrackingRequest) (*models.IssuedTracking, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &models.IssuedTracking{
		TrackingNumber: "3F2A9C1E" + req.OriginCountry + req.DestinationCountry,
		CreatedAt:      time.Date(2026, 10, 17, 8, 30, 0, 0, time.UTC),
	}, nil
}
