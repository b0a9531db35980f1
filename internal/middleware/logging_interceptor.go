package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// levelFor picks the log level of a finished call from its status code.
func levelFor(code codes.Code) zapcore.Level {
	switch code {
	case codes.OK:
		return zapcore.InfoLevel
	case codes.Canceled, codes.DeadlineExceeded, codes.Unavailable, codes.ResourceExhausted, codes.Aborted,
		codes.InvalidArgument, codes.NotFound, codes.AlreadyExists, codes.PermissionDenied,
		codes.Unauthenticated, codes.FailedPrecondition, codes.OutOfRange:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func requestID(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if ids := md.Get("x-request-id"); len(ids) > 0 {
		return ids[0]
	}
	return ""
}

// UnaryLoggingInterceptor logs unary RPC calls with timing and errors
func UnaryLoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		if ce := logger.Check(levelFor(code), "unary RPC"); ce != nil {
			ce.Write(
				zap.String("method", info.FullMethod),
				zap.String("request_id", requestID(ctx)),
				zap.Duration("duration", time.Since(start)),
				zap.String("code", code.String()),
				zap.Error(err),
			)
		}
		return resp, err
	}
}

// StreamLoggingInterceptor logs streaming RPC calls with timing and errors
func StreamLoggingInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		reqID := requestID(ss.Context())

		logger.Debug("stream RPC started",
			zap.String("method", info.FullMethod),
			zap.String("request_id", reqID),
			zap.Bool("is_client_stream", info.IsClientStream),
			zap.Bool("is_server_stream", info.IsServerStream),
		)

		err := handler(srv, ss)
		code := status.Code(err)

		if ce := logger.Check(levelFor(code), "stream RPC"); ce != nil {
			ce.Write(
				zap.String("method", info.FullMethod),
				zap.String("request_id", reqID),
				zap.Duration("duration", time.Since(start)),
				zap.String("code", code.String()),
				zap.Error(err),
			)
		}
		return err
	}
}
