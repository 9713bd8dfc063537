package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/document-extractor/internal/common"
)

// GRPCServiceName is the fully qualified name of the extraction service.
const GRPCServiceName = "docextract.v1.Extractor"

// ExtractorServer is the gRPC surface. Payloads are google.protobuf.Struct
// values carrying the same JSON shapes as the HTTP API.
type ExtractorServer interface {
	// Extract takes {filename, content_base64, document_type}.
	Extract(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	// GetDocument takes {document_id}.
	GetDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListTemplates(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var extractorServiceDesc = grpc.ServiceDesc{
	ServiceName: GRPCServiceName,
	HandlerType: (*ExtractorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Extract", Handler: unary("Extract", ExtractorServer.Extract)},
		{MethodName: "GetDocument", Handler: unary("GetDocument", ExtractorServer.GetDocument)},
		{MethodName: "ListTemplates", Handler: unary("ListTemplates", ExtractorServer.ListTemplates)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docextract/v1/extractor.proto",
}

func unary(method string, call func(ExtractorServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + GRPCServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ExtractorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ExtractorServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterExtractorServer attaches impl to s.
func RegisterExtractorServer(s grpc.ServiceRegistrar, impl ExtractorServer) {
	s.RegisterService(&extractorServiceDesc, impl)
}

// NewGRPCServer builds a server with the extractor and health services
// registered and marked SERVING.
func NewGRPCServer(svc *Service, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	s := grpc.NewServer(opts...)
	RegisterExtractorServer(s, NewExtractorService(svc, logger))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(GRPCServiceName, healthpb.HealthCheckResponse_SERVING)
	return s, hs
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Warn("grpc.failed", "method", info.FullMethod, "code", status.Code(err), "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		} else {
			logger.Info("grpc.ok", "method", info.FullMethod, "elapsed_ms", time.Since(start).Milliseconds())
		}
		return resp, err
	}
}

// ExtractorService adapts Service to ExtractorServer.
type ExtractorService struct {
	svc    *Service
	logger *slog.Logger
}

func NewExtractorService(svc *Service, logger *slog.Logger) *ExtractorService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractorService{svc: svc, logger: logger}
}

func (e *ExtractorService) Extract(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	filename := fields["filename"].GetStringValue()
	content, err := base64.StdEncoding.DecodeString(fields["content_base64"].GetStringValue())
	if err != nil {
		return nil, common.ToGRPCError(common.NewAppError("INVALID_REQUEST", "content_base64 is not valid base64", common.ErrInvalidInput))
	}
	resp, err := e.svc.Extract(ctx, filename, content, fields["document_type"].GetStringValue())
	if err != nil {
		return nil, common.ToGRPCError(err)
	}
	return toStruct(resp)
}

func (e *ExtractorService) GetDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	resp, err := e.svc.GetDocument(ctx, in.GetFields()["document_id"].GetStringValue())
	if err != nil {
		return nil, common.ToGRPCError(err)
	}
	return toStruct(resp)
}

func (e *ExtractorService) ListTemplates(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string]any{"templates": e.svc.ListTemplates()})
}

// toStruct converts v through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, common.ToGRPCError(fmt.Errorf("encode response: %w", err))
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, common.ToGRPCError(fmt.Errorf("encode response: %w", err))
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.ToGRPCError(fmt.Errorf("encode response: %w", err))
	}
	return s, nil
}
