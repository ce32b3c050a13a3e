package visionrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/dynamicpb"
)

// LandmarkClient is the client API for the landmark service.
type LandmarkClient interface {
	// StreamBlendshapes opens a server stream of analysed frames.
	StreamBlendshapes(ctx context.Context, in *StreamRequest, opts ...grpc.CallOption) (LandmarkStreamClient, error)
}

// LandmarkStreamClient receives frames from the sidecar.
type LandmarkStreamClient interface {
	Recv() (*BlendshapeFrame, error)
	grpc.ClientStream
}

type landmarkClient struct {
	cc grpc.ClientConnInterface
}

// NewLandmarkClient returns a client bound to cc.
func NewLandmarkClient(cc grpc.ClientConnInterface) LandmarkClient {
	return &landmarkClient{cc: cc}
}

func (c *landmarkClient) StreamBlendshapes(ctx context.Context, in *StreamRequest, opts ...grpc.CallOption) (LandmarkStreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], StreamBlendshapesMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &landmarkStreamClient{stream}
	if err := x.ClientStream.SendMsg(in.message()); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type landmarkStreamClient struct {
	grpc.ClientStream
}

func (x *landmarkStreamClient) Recv() (*BlendshapeFrame, error) {
	m := dynamicpb.NewMessage(blendshapeFrameDesc)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return blendshapeFrameFrom(m), nil
}

// LandmarkServer is the server API for the landmark service. The real
// sidecar is not written in Go; this side exists for tests and the replay
// tooling.
type LandmarkServer interface {
	StreamBlendshapes(*StreamRequest, LandmarkStreamServer) error
}

// LandmarkStreamServer sends frames to a connected client.
type LandmarkStreamServer interface {
	Send(*BlendshapeFrame) error
	grpc.ServerStream
}

// RegisterLandmarkServer attaches srv to s.
func RegisterLandmarkServer(s grpc.ServiceRegistrar, srv LandmarkServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func streamBlendshapesHandler(srv any, stream grpc.ServerStream) error {
	m := dynamicpb.NewMessage(streamRequestDesc)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(LandmarkServer).StreamBlendshapes(streamRequestFrom(m), &landmarkStreamServer{stream})
}

type landmarkStreamServer struct {
	grpc.ServerStream
}

func (x *landmarkStreamServer) Send(m *BlendshapeFrame) error {
	return x.ServerStream.SendMsg(m.message())
}

// ServiceDesc describes the landmark service for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LandmarkServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamBlendshapes",
			Handler:       streamBlendshapesHandler,
			ServerStreams: true,
		},
	},
	Metadata: "blinkguard/vision/v1/landmark.proto",
}
