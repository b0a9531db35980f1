package middleware

import (
	"context"

	"google.golang.org/grpc"
)

// ChainUnaryInterceptors runs interceptors in order; the first one listed is
// the outermost.
func ChainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		var next func(i int) grpc.UnaryHandler
		next = func(i int) grpc.UnaryHandler {
			if i == len(interceptors) {
				return handler
			}
			return func(ctx context.Context, req interface{}) (interface{}, error) {
				return interceptors[i](ctx, req, info, next(i+1))
			}
		}
		return next(0)(ctx, req)
	}
}

// ChainStreamInterceptors is the streaming counterpart of
// ChainUnaryInterceptors.
func ChainStreamInterceptors(interceptors ...grpc.StreamServerInterceptor) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		var next func(i int) grpc.StreamHandler
		next = func(i int) grpc.StreamHandler {
			if i == len(interceptors) {
				return handler
			}
			return func(srv interface{}, ss grpc.ServerStream) error {
				return interceptors[i](srv, ss, info, next(i+1))
			}
		}
		return next(0)(srv, ss)
	}
}
