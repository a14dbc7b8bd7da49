package grpcapi

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/BearBump/trackgen/internal/models"
	"github.com/BearBump/trackgen/internal/services/trackingnumbers"
	"github.com/BearBump/trackgen/internal/validation"
	"github.com/pkg/errors"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type Generator interface {
	Generate(ctx context.Context, req models.TrackingRequest) (*models.IssuedTracking, error)
}

type Recorder interface {
	ObserveRequest(transport, route, status string, d time.Duration)
}

type TrackingNumbersAPI struct {
	svc Generator
	log *slog.Logger
}

var _ TrackingNumbersServer = (*TrackingNumbersAPI)(nil)

func New(svc Generator, log *slog.Logger) *TrackingNumbersAPI {
	if log == nil {
		log = slog.Default()
	}
	return &TrackingNumbersAPI{svc: svc, log: log}
}

func (a *TrackingNumbersAPI) Generate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	raw, typeErrs := rawFromStruct(in)
	req, err := validation.Validate(raw)
	if err != nil || typeErrs.Len() > 0 {
		var verr *validation.Errors
		if !errors.As(err, &verr) {
			verr = &validation.Errors{}
		}
		for f, msgs := range typeErrs.Fields {
			delete(verr.Fields, f)
			for _, m := range msgs {
				verr.Add(f, m)
			}
		}
		return nil, invalidArgument(verr)
	}

	out, err := a.svc.Generate(ctx, req)
	if err != nil {
		a.log.Error("generate tracking number", "err", err)
		if errors.Is(err, trackingnumbers.ErrCacheUnavailable) {
			return nil, status.Error(codes.Unavailable, "cache unavailable")
		}
		return nil, status.Error(codes.Internal, "internal error")
	}

	resp, err := structpb.NewStruct(map[string]any{
		"tracking_number": out.TrackingNumber,
		"created_at":      out.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return resp, nil
}

// rawFromStruct accepts strings and, for convenience, numbers (weight). Other kinds are type errors.
func rawFromStruct(in *structpb.Struct) (models.RawTrackingRequest, *validation.Errors) {
	raw := make(models.RawTrackingRequest, len(models.RequestFields))
	typeErrs := &validation.Errors{}
	for _, f := range models.RequestFields {
		v, ok := in.GetFields()[f]
		if !ok {
			continue
		}
		switch k := v.GetKind().(type) {
		case *structpb.Value_StringValue:
			raw[f] = k.StringValue
		case *structpb.Value_NumberValue:
			raw[f] = strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
		case *structpb.Value_NullValue:
		default:
			typeErrs.Add(f, "Must be a string.")
		}
	}
	return raw, typeErrs
}

func invalidArgument(verr *validation.Errors) error {
	st := status.New(codes.InvalidArgument, verr.Error())
	br := &errdetails.BadRequest{}
	for _, f := range models.RequestFields {
		for _, msg := range verr.Fields[f] {
			br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
				Field:       f,
				Description: msg,
			})
		}
	}
	if withDetails, err := st.WithDetails(br); err == nil {
		st = withDetails
	}
	return st.Err()
}

// MetricsInterceptor records every unary call by full method and status code.
func MetricsInterceptor(rec Recorder) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		rec.ObserveRequest("grpc", info.FullMethod, status.Code(err).String(), time.Since(start))
		return resp, err
	}
}
