package handler

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/nvinayak/pharmanet/internal/core/service"
)

// InvokeRequest mirrors the original contract surface: one named
// transaction with positional string arguments.
type InvokeRequest struct {
	Caller   string   `json:"caller"`
	Function string   `json:"function"`
	Args     []string `json:"args"`
}

type InvokeResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// jsonCodec carries the Invoke surface over gRPC without generated
// bindings; both ends exchange JSON frames. Clients dial with
// grpc.CallContentSubtype(codecName) or force the codec the same way the
// server does.
type jsonCodec struct{}

const codecName = "json"

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type GRPCHandler struct {
	svc *service.PharmaService
}

func NewGRPCHandler(svc *service.PharmaService) *GRPCHandler {
	return &GRPCHandler{svc: svc}
}

func (h *GRPCHandler) Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResponse, error) {
	result, err := h.svc.Invoke(ctx, req.Caller, req.Function, req.Args)
	if err != nil {
		_, message := statusForError(err)
		return &InvokeResponse{Message: message}, nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return &InvokeResponse{Message: "internal error"}, nil
	}
	return &InvokeResponse{Success: true, Payload: payload}, nil
}

type ledgerInvoker interface {
	Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResponse, error)
}

// ledgerServiceDesc is written by hand: with a JSON codec there is nothing
// for protoc to generate.
var ledgerServiceDesc = grpc.ServiceDesc{
	ServiceName: "pharmanet.Ledger",
	HandlerType: (*ledgerInvoker)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Invoke", Handler: invokeUnaryHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func invokeUnaryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(InvokeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ledgerInvoker).Invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/pharmanet.Ledger/Invoke"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ledgerInvoker).Invoke(ctx, req.(*InvokeRequest))
	})
}

// NewGRPCServer returns a server that speaks the JSON codec.
func NewGRPCServer() *grpc.Server {
	return grpc.NewServer(grpc.ForceServerCodec(jsonCodec{}))
}

// RegisterLedgerServer attaches the Invoke surface to a server created with
// NewGRPCServer.
func RegisterLedgerServer(s *grpc.Server, h *GRPCHandler) {
	s.RegisterService(&ledgerServiceDesc, h)
}
