package galleryv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	GalleryService_UploadImages_FullMethodName = "/carlot.gallery.v1.GalleryService/UploadImages"
	GalleryService_ListImages_FullMethodName   = "/carlot.gallery.v1.GalleryService/ListImages"
	GalleryService_GetImage_FullMethodName     = "/carlot.gallery.v1.GalleryService/GetImage"
	GalleryService_DeleteImage_FullMethodName  = "/carlot.gallery.v1.GalleryService/DeleteImage"
)

// GalleryServiceClient is the client API for GalleryService.
type GalleryServiceClient interface {
	UploadImages(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[UploadImagesRequest, UploadImagesResponse], error)
	ListImages(ctx context.Context, in *ListImagesRequest, opts ...grpc.CallOption) (*ListImagesResponse, error)
	GetImage(ctx context.Context, in *GetImageRequest, opts ...grpc.CallOption) (*GetImageResponse, error)
	DeleteImage(ctx context.Context, in *DeleteImageRequest, opts ...grpc.CallOption) (*DeleteImageResponse, error)
}

type galleryServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewGalleryServiceClient(cc grpc.ClientConnInterface) GalleryServiceClient {
	return &galleryServiceClient{cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func (c *galleryServiceClient) UploadImages(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[UploadImagesRequest, UploadImagesResponse], error) {
	stream, err := c.cc.NewStream(ctx, &GalleryService_ServiceDesc.Streams[0], GalleryService_UploadImages_FullMethodName, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[UploadImagesRequest, UploadImagesResponse]{ClientStream: stream}
	return x, nil
}

// GalleryService_UploadImagesClient is the client side of the UploadImages stream.
type GalleryService_UploadImagesClient = grpc.ClientStreamingClient[UploadImagesRequest, UploadImagesResponse]

func (c *galleryServiceClient) ListImages(ctx context.Context, in *ListImagesRequest, opts ...grpc.CallOption) (*ListImagesResponse, error) {
	out := new(ListImagesResponse)
	if err := c.cc.Invoke(ctx, GalleryService_ListImages_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *galleryServiceClient) GetImage(ctx context.Context, in *GetImageRequest, opts ...grpc.CallOption) (*GetImageResponse, error) {
	out := new(GetImageResponse)
	if err := c.cc.Invoke(ctx, GalleryService_GetImage_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *galleryServiceClient) DeleteImage(ctx context.Context, in *DeleteImageRequest, opts ...grpc.CallOption) (*DeleteImageResponse, error) {
	out := new(DeleteImageResponse)
	if err := c.cc.Invoke(ctx, GalleryService_DeleteImage_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// GalleryServiceServer is the server API for GalleryService.
// Implementations must embed UnimplementedGalleryServiceServer.
type GalleryServiceServer interface {
	UploadImages(grpc.ClientStreamingServer[UploadImagesRequest, UploadImagesResponse]) error
	ListImages(context.Context, *ListImagesRequest) (*ListImagesResponse, error)
	GetImage(context.Context, *GetImageRequest) (*GetImageResponse, error)
	DeleteImage(context.Context, *DeleteImageRequest) (*DeleteImageResponse, error)
	mustEmbedUnimplementedGalleryServiceServer()
}

type UnimplementedGalleryServiceServer struct{}

func (UnimplementedGalleryServiceServer) UploadImages(grpc.ClientStreamingServer[UploadImagesRequest, UploadImagesResponse]) error {
	return status.Error(codes.Unimplemented, "method UploadImages not implemented")
}
func (UnimplementedGalleryServiceServer) ListImages(context.Context, *ListImagesRequest) (*ListImagesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListImages not implemented")
}
func (UnimplementedGalleryServiceServer) GetImage(context.Context, *GetImageRequest) (*GetImageResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetImage not implemented")
}
func (UnimplementedGalleryServiceServer) DeleteImage(context.Context, *DeleteImageRequest) (*DeleteImageResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteImage not implemented")
}
func (UnimplementedGalleryServiceServer) mustEmbedUnimplementedGalleryServiceServer() {}

// GalleryService_UploadImagesServer is the server side of the UploadImages stream.
type GalleryService_UploadImagesServer = grpc.ClientStreamingServer[UploadImagesRequest, UploadImagesResponse]

func RegisterGalleryServiceServer(s grpc.ServiceRegistrar, srv GalleryServiceServer) {
	s.RegisterService(&GalleryService_ServiceDesc, srv)
}

func _GalleryService_UploadImages_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(GalleryServiceServer).UploadImages(&grpc.GenericServerStream[UploadImagesRequest, UploadImagesResponse]{ServerStream: stream})
}

func _GalleryService_ListImages_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListImagesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GalleryServiceServer).ListImages(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GalleryService_ListImages_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GalleryServiceServer).ListImages(ctx, req.(*ListImagesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _GalleryService_GetImage_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetImageRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GalleryServiceServer).GetImage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GalleryService_GetImage_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GalleryServiceServer).GetImage(ctx, req.(*GetImageRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _GalleryService_DeleteImage_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeleteImageRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GalleryServiceServer).DeleteImage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GalleryService_DeleteImage_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GalleryServiceServer).DeleteImage(ctx, req.(*DeleteImageRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// GalleryService_ServiceDesc is the grpc.ServiceDesc for GalleryService.
var GalleryService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "carlot.gallery.v1.GalleryService",
	HandlerType: (*GalleryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListImages",
			Handler:    _GalleryService_ListImages_Handler,
		},
		{
			MethodName: "GetImage",
			Handler:    _GalleryService_GetImage_Handler,
		},
		{
			MethodName: "DeleteImage",
			Handler:    _GalleryService_DeleteImage_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "UploadImages",
			Handler:       _GalleryService_UploadImages_Handler,
			ClientStreams: true,
		},
	},
	Metadata: "api/gallery/v1",
}
