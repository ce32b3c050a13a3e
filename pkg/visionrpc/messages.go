// Package visionrpc is the wire contract with the landmark sidecar, the
// process that owns the camera and runs face landmarking. The contract is
// landmark.proto; messages travel as protobuf with the default gRPC codec.
package visionrpc

import (
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Service and method names as seen on the wire.
const (
	ServiceName             = "blinkguard.vision.v1.LandmarkService"
	StreamBlendshapesMethod = "/" + ServiceName + "/StreamBlendshapes"
)

// StreamRequest asks the sidecar to start emitting frames for one camera.
type StreamRequest struct {
	CameraId string
	MaxFps   int32
}

func (x *StreamRequest) GetCameraId() string {
	if x != nil {
		return x.CameraId
	}
	return ""
}

func (x *StreamRequest) GetMaxFps() int32 {
	if x != nil {
		return x.MaxFps
	}
	return 0
}

func (x *StreamRequest) message() proto.Message {
	m := dynamicpb.NewMessage(streamRequestDesc)
	set(m, "camera_id", protoreflect.ValueOfString(x.GetCameraId()))
	set(m, "max_fps", protoreflect.ValueOfInt32(x.GetMaxFps()))
	return m
}

func streamRequestFrom(m protoreflect.Message) *StreamRequest {
	return &StreamRequest{
		CameraId: get(m, "camera_id").String(),
		MaxFps:   int32(get(m, "max_fps").Int()),
	}
}

// BlendshapeFrame is one analysed camera frame. Scores are only meaningful
// when FaceDetected is set. Thumbnail is a small PNG or JPEG of the frame,
// sent occasionally for frozen-feed detection.
type BlendshapeFrame struct {
	EyeBlinkLeft  float64
	EyeBlinkRight float64
	FaceDetected  bool
	TimestampNs   int64
	Thumbnail     []byte
}

func (x *BlendshapeFrame) GetEyeBlinkLeft() float64 {
	if x != nil {
		return x.EyeBlinkLeft
	}
	return 0
}

func (x *BlendshapeFrame) GetEyeBlinkRight() float64 {
	if x != nil {
		return x.EyeBlinkRight
	}
	return 0
}

func (x *BlendshapeFrame) GetFaceDetected() bool {
	if x != nil {
		return x.FaceDetected
	}
	return false
}

func (x *BlendshapeFrame) GetTimestampNs() int64 {
	if x != nil {
		return x.TimestampNs
	}
	return 0
}

func (x *BlendshapeFrame) GetThumbnail() []byte {
	if x != nil {
		return x.Thumbnail
	}
	return nil
}

// Time returns the capture timestamp, or the zero time when unset.
func (x *BlendshapeFrame) Time() time.Time {
	if x.GetTimestampNs() == 0 {
		return time.Time{}
	}
	return time.Unix(0, x.TimestampNs)
}

func (x *BlendshapeFrame) message() proto.Message {
	m := dynamicpb.NewMessage(blendshapeFrameDesc)
	set(m, "eye_blink_left", protoreflect.ValueOfFloat64(x.GetEyeBlinkLeft()))
	set(m, "eye_blink_right", protoreflect.ValueOfFloat64(x.GetEyeBlinkRight()))
	set(m, "face_detected", protoreflect.ValueOfBool(x.GetFaceDetected()))
	set(m, "timestamp_ns", protoreflect.ValueOfInt64(x.GetTimestampNs()))
	if len(x.GetThumbnail()) > 0 {
		set(m, "thumbnail", protoreflect.ValueOfBytes(x.Thumbnail))
	}
	return m
}

func blendshapeFrameFrom(m protoreflect.Message) *BlendshapeFrame {
	f := &BlendshapeFrame{
		EyeBlinkLeft:  get(m, "eye_blink_left").Float(),
		EyeBlinkRight: get(m, "eye_blink_right").Float(),
		FaceDetected:  get(m, "face_detected").Bool(),
		TimestampNs:   get(m, "timestamp_ns").Int(),
	}
	if b := get(m, "thumbnail").Bytes(); len(b) > 0 {
		f.Thumbnail = b
	}
	return f
}

// Marshal encodes a frame exactly as the sidecar puts it on the wire.
func (x *BlendshapeFrame) Marshal() ([]byte, error) {
	return proto.Marshal(x.message())
}

// UnmarshalBlendshapeFrame decodes one wire frame. Unknown fields from a
// newer sidecar are ignored.
func UnmarshalBlendshapeFrame(b []byte) (*BlendshapeFrame, error) {
	m := dynamicpb.NewMessage(blendshapeFrameDesc)
	if err := proto.Unmarshal(b, m); err != nil {
		return nil, err
	}
	return blendshapeFrameFrom(m), nil
}

func set(m *dynamicpb.Message, name string, v protoreflect.Value) {
	m.Set(m.Descriptor().Fields().ByName(protoreflect.Name(name)), v)
}

func get(m protoreflect.Message, name string) protoreflect.Value {
	return m.Get(m.Descriptor().Fields().ByName(protoreflect.Name(name)))
}
