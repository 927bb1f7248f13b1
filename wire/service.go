package wire

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// wireMessage is satisfied by *Message and *ControlMessage; it's the minimal
// surface protoCodec needs, in place of the generated proto.Message
// interface a protoc-gen-go run would otherwise produce.
type wireMessage interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

// protoCodec implements grpc/encoding.Codec directly against wireMessage,
// registered under the name "proto" so it replaces grpc-go's built-in codec
// (which expects google.golang.org/protobuf's proto.Message) — every type
// that crosses this module's gRPC boundary is a *Message or *ControlMessage,
// never a generated proto.Message.
type protoCodec struct{}

func (protoCodec) Name() string { return "proto" }

func (protoCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, errUnsupportedType{v}
	}
	return m.Marshal()
}

func (protoCodec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(wireMessage)
	if !ok {
		return errUnsupportedType{v}
	}
	return m.Unmarshal(data)
}

type errUnsupportedType struct{ v interface{} }

func (e errUnsupportedType) Error() string {
	return "wire: type does not implement wireMessage"
}

func init() {
	encoding.RegisterCodec(protoCodec{})
}

const serviceName = "networkobservability.NetworkConnectionInfo"
const pushMethodName = "PushNetworkConnectionInfo"

// ServiceDesc is the bidirectional-streaming service: the aggregator side
// implements PushNetworkConnectionInfoHandler, the agent side drives it
// through NewPushNetworkConnectionInfoClient. There's a single bidi-stream
// method, so this is written directly against grpc.ServiceDesc rather than
// through protoc-gen-go-grpc.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PushNetworkConnectionInfoHandler)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    pushMethodName,
			Handler:       pushNetworkConnectionInfoHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
}

// PushNetworkConnectionInfoHandler is implemented by the aggregator-side
// server.
type PushNetworkConnectionInfoHandler interface {
	PushNetworkConnectionInfo(Stream) error
}

// Stream is the bidirectional-streaming surface both ends of the RPC drive:
// the agent's notifier sends Messages and receives ControlMessages; the
// aggregator's handler does the reverse. It has notifier.StreamSink's
// Send/Recv methods (without Close), duplicated here so wire has no
// dependency on notifier.
type Stream interface {
	Send(*Message) error
	Recv() (*ControlMessage, error)
}

func pushNetworkConnectionInfoHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(PushNetworkConnectionInfoHandler).PushNetworkConnectionInfo(&serverStream{stream})
}

type serverStream struct {
	grpc.ServerStream
}

func (s *serverStream) Send(m *Message) error {
	return s.ServerStream.SendMsg(m)
}

func (s *serverStream) Recv() (*ControlMessage, error) {
	cm := new(ControlMessage)
	if err := s.ServerStream.RecvMsg(cm); err != nil {
		return nil, err
	}
	return cm, nil
}

// clientStream adapts a grpc.ClientStream to Stream, with Send/Recv in the
// roles the agent side needs: it sends Messages and receives
// ControlMessages.
type clientStream struct {
	grpc.ClientStream
}

func (c *clientStream) Send(m *Message) error {
	return c.ClientStream.SendMsg(m)
}

func (c *clientStream) Recv() (*ControlMessage, error) {
	cm := new(ControlMessage)
	if err := c.ClientStream.RecvMsg(cm); err != nil {
		return nil, err
	}
	return cm, nil
}

// NewPushNetworkConnectionInfoClient opens the bidi stream on cc.
func NewPushNetworkConnectionInfoClient(ctx context.Context, cc grpc.ClientConnInterface) (Stream, error) {
	stream, err := cc.NewStream(ctx, &ServiceDesc.Streams[0], "/"+serviceName+"/"+pushMethodName)
	if err != nil {
		return nil, err
	}
	return &clientStream{stream}, nil
}
