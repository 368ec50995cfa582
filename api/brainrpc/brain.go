// File: api/brainrpc/brain.go
// Hand-maintained client and server bindings for the brain.Brain service.
// The message layout mirrors api/brainrpc/brain.proto; payloads travel as
// JSON (see codec.go), which keeps the module free of generated code while
// preserving the gRPC method surface and status-code semantics.
package brainrpc

import (
	"context"

	"google.golang.org/grpc"
)

// Fully qualified method names for the Brain service.
const (
	ProcessVisionMethod = "/brain.Brain/ProcessVision"
	QueryMemoryMethod   = "/brain.Brain/QueryMemory"
)

// VisionRequest asks the backend to ground a natural-language command
// against a screenshot.
type VisionRequest struct {
	Screenshot  []byte `json:"screenshot"`
	Context     string `json:"context,omitempty"`
	TextCommand string `json:"text_command,omitempty"`
}

// VisionResponse carries the grounding result. X/Y are only meaningful when
// Found is true; Confidence is in [0, 1].
type VisionResponse struct {
	Found       bool    `json:"found"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description,omitempty"`
}

// MemoryRequest performs a semantic search over recorded experiences.
type MemoryRequest struct {
	Query          string `json:"query"`
	TopK           int32  `json:"top_k"`
	AXTreeSummary  string `json:"ax_tree_summary,omitempty"`
	ScreenshotHash string `json:"screenshot_hash,omitempty"`
}

// MemoryResult is one scored candidate. Similarity is in [0, 1]; the payload
// is an opaque plan blob interpreted by the caller.
type MemoryResult struct {
	Similarity float64 `json:"similarity"`
	Payload    string  `json:"payload,omitempty"`
}

// MemoryResponse holds candidates ordered best-first by the backend.
type MemoryResponse struct {
	Results []MemoryResult `json:"results"`
}

// BrainClient is the client surface of the brain.Brain service.
type BrainClient interface {
	ProcessVision(ctx context.Context, in *VisionRequest, opts ...grpc.CallOption) (*VisionResponse, error)
	QueryMemory(ctx context.Context, in *MemoryRequest, opts ...grpc.CallOption) (*MemoryResponse, error)
}

type brainClient struct {
	cc grpc.ClientConnInterface
}

// NewBrainClient returns a BrainClient backed by the given connection. The
// JSON content-subtype is forced on every call so the connection does not
// need to be configured with a default codec.
func NewBrainClient(cc grpc.ClientConnInterface) BrainClient {
	return &brainClient{cc: cc}
}

func (c *brainClient) ProcessVision(ctx context.Context, in *VisionRequest, opts ...grpc.CallOption) (*VisionResponse, error) {
	out := new(VisionResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, ProcessVisionMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *brainClient) QueryMemory(ctx context.Context, in *MemoryRequest, opts ...grpc.CallOption) (*MemoryResponse, error) {
	out := new(MemoryResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, QueryMemoryMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// BrainServer is the server surface of the brain.Brain service. The worker
// itself never serves it; tests and in-process fakes do.
type BrainServer interface {
	ProcessVision(ctx context.Context, in *VisionRequest) (*VisionResponse, error)
	QueryMemory(ctx context.Context, in *MemoryRequest) (*MemoryResponse, error)
}

// RegisterBrainServer registers srv with the given gRPC registrar.
func RegisterBrainServer(s grpc.ServiceRegistrar, srv BrainServer) {
	s.RegisterService(&BrainServiceDesc, srv)
}

func _Brain_ProcessVision_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(VisionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BrainServer).ProcessVision(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ProcessVisionMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(BrainServer).ProcessVision(ctx, req.(*VisionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Brain_QueryMemory_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(MemoryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BrainServer).QueryMemory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: QueryMemoryMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(BrainServer).QueryMemory(ctx, req.(*MemoryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// BrainServiceDesc is the grpc.ServiceDesc for the Brain service.
var BrainServiceDesc = grpc.ServiceDesc{
	ServiceName: "brain.Brain",
	HandlerType: (*BrainServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProcessVision", Handler: _Brain_ProcessVision_Handler},
		{MethodName: "QueryMemory", Handler: _Brain_QueryMemory_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/brainrpc/brain.proto",
}
