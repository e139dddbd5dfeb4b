package ml

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/forest-guardian/wooded-mask/internal/raster"
	"github.com/forest-guardian/wooded-mask/internal/tiling"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	inferenceServiceName = "wooded.v1.InferenceService"
	inferMethod          = "/" + inferenceServiceName + "/Infer"
	batchShapeKey        = "x-batch-shape"
	maxMessageSize       = 64 * 1024 * 1024
	defaultInferTimeout  = 15 * time.Minute
)

// GRPCClassifier sends each batch to a remote inference service. Tensors are
// carried as raw float32 bytes in a BytesValue; the batch shape rides in the
// request metadata.
type GRPCClassifier struct {
	conn     *grpc.ClientConn
	channels int
	Timeout  time.Duration
}

func NewGRPCClassifier(addr string, channels int, opts ...grpc.DialOption) (*GRPCClassifier, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMessageSize),
			grpc.MaxCallSendMsgSize(maxMessageSize),
		),
	}, opts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gRPC server: %w", err)
	}
	return &GRPCClassifier{conn: conn, channels: channels, Timeout: defaultInferTimeout}, nil
}

func (g *GRPCClassifier) Close() error {
	return g.conn.Close()
}

func (g *GRPCClassifier) ExpectedChannels() int {
	return g.channels
}

func (g *GRPCClassifier) Infer(ctx context.Context, batch []tiling.Patch) ([]raster.Plane, error) {
	payload, shape, err := encodePatches(batch)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, batchShapeKey, formatShape(shape))

	resp := &wrapperspb.BytesValue{}
	if err := g.conn.Invoke(ctx, inferMethod, wrapperspb.Bytes(payload), resp); err != nil {
		return nil, fmt.Errorf("error calling Infer: %w", err)
	}

	probabilities, err := decodeProbabilities(resp.GetValue(), shape[0], shape[2])
	if err != nil {
		return nil, fmt.Errorf("invalid Infer response: %w", err)
	}
	return probabilities, nil
}

// inferenceServer is the handler type registered with grpc.Server.
type inferenceServer interface {
	infer(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

type classifierServer struct {
	classifier Classifier
}

func (s *classifierServer) infer(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get(batchShapeKey)
	if len(values) == 0 {
		return nil, status.Errorf(codes.InvalidArgument, "missing %s metadata", batchShapeKey)
	}
	shape, err := parseShape(values[0])
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	batch, err := decodePatches(req.GetValue(), shape)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if expected := ExpectedChannels(s.classifier); expected > 0 && expected != shape[1] {
		return nil, status.Errorf(codes.FailedPrecondition, "model expects %d channels, got %d", expected, shape[1])
	}

	probabilities, err := s.classifier.Infer(ctx, batch)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	if err := CheckBatch(batch, probabilities); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.Bytes(encodeProbabilities(probabilities)), nil
}

func inferHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(inferenceServer).infer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: inferMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(inferenceServer).infer(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

var inferenceServiceDesc = grpc.ServiceDesc{
	ServiceName: inferenceServiceName,
	HandlerType: (*inferenceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Infer", Handler: inferHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterInferenceServer exposes classifier on s.
func RegisterInferenceServer(s *grpc.Server, classifier Classifier) {
	s.RegisterService(&inferenceServiceDesc, &classifierServer{classifier: classifier})
}

// Serve hosts classifier on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, classifier Classifier) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	server := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMessageSize),
		grpc.MaxSendMsgSize(maxMessageSize),
	)
	RegisterInferenceServer(server, classifier)

	go func() {
		<-ctx.Done()
		server.GracefulStop()
	}()

	fmt.Printf("Inference service listening on %s\n", lis.Addr())
	if err := server.Serve(lis); err != nil {
		return fmt.Errorf("inference server stopped: %w", err)
	}
	return nil
}
