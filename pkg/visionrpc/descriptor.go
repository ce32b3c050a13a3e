package visionrpc

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// File is landmark.proto, built in code so the package carries no protoc
// step. Keep the two in sync.
var File = mustBuildFile()

var (
	streamRequestDesc   = File.Messages().ByName("StreamRequest")
	blendshapeFrameDesc = File.Messages().ByName("BlendshapeFrame")
)

func mustBuildFile() protoreflect.FileDescriptor {
	fd, err := protodesc.NewFile(fileProto(), nil)
	if err != nil {
		panic("visionrpc: invalid landmark.proto descriptor: " + err.Error())
	}
	return fd
}

func fileProto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("blinkguard/vision/v1/landmark.proto"),
		Package: proto.String("blinkguard.vision.v1"),
		Syntax:  proto.String("proto3"),
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("github.com/GriffinCanCode/blinkguard/pkg/visionrpc"),
		},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("StreamRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("camera_id", "cameraId", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalar("max_fps", "maxFps", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				},
			},
			{
				Name: proto.String("BlendshapeFrame"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("eye_blink_left", "eyeBlinkLeft", 1, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
					scalar("eye_blink_right", "eyeBlinkRight", 2, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
					scalar("face_detected", "faceDetected", 3, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
					scalar("timestamp_ns", "timestampNs", 4, descriptorpb.FieldDescriptorProto_TYPE_INT64),
					scalar("thumbnail", "thumbnail", 5, descriptorpb.FieldDescriptorProto_TYPE_BYTES),
				},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{
			{
				Name: proto.String("LandmarkService"),
				Method: []*descriptorpb.MethodDescriptorProto{
					{
						Name:            proto.String("StreamBlendshapes"),
						InputType:       proto.String(".blinkguard.vision.v1.StreamRequest"),
						OutputType:      proto.String(".blinkguard.vision.v1.BlendshapeFrame"),
						ServerStreaming: proto.Bool(true),
					},
				},
			},
		},
	}
}

func scalar(name, jsonName string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(jsonName),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     typ.Enum(),
	}
}
