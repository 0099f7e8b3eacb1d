package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Service and method names of condfields.v1.FormStates. Every message is a
// google.protobuf.Struct; the field layout is documented on each handler.
const (
	FormStatesServiceName = "condfields.v1.FormStates"

	MethodBuildStates        = "/condfields.v1.FormStates/BuildStates"
	MethodValidateSubmission = "/condfields.v1.FormStates/ValidateSubmission"
	MethodAddDependency      = "/condfields.v1.FormStates/AddDependency"
	MethodListDependencies   = "/condfields.v1.FormStates/ListDependencies"
	MethodDeleteDependency   = "/condfields.v1.FormStates/DeleteDependency"
)

// MutatingMethods lists the methods that change stored rules.
var MutatingMethods = []string{MethodAddDependency, MethodDeleteDependency}

// FormStatesServer is the server API for the FormStates service.
type FormStatesServer interface {
	BuildStates(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ValidateSubmission(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddDependency(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListDependencies(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteDependency(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterFormStatesServer registers srv with s.
func RegisterFormStatesServer(s grpc.ServiceRegistrar, srv FormStatesServer) {
	s.RegisterService(&FormStatesServiceDesc, srv)
}

type structCall func(FormStatesServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call structCall) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FormStatesServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(FormStatesServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// FormStatesServiceDesc is the grpc.ServiceDesc for the FormStates service.
var FormStatesServiceDesc = grpc.ServiceDesc{
	ServiceName: FormStatesServiceName,
	HandlerType: (*FormStatesServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "BuildStates", Handler: unaryHandler(MethodBuildStates, FormStatesServer.BuildStates)},
		{MethodName: "ValidateSubmission", Handler: unaryHandler(MethodValidateSubmission, FormStatesServer.ValidateSubmission)},
		{MethodName: "AddDependency", Handler: unaryHandler(MethodAddDependency, FormStatesServer.AddDependency)},
		{MethodName: "ListDependencies", Handler: unaryHandler(MethodListDependencies, FormStatesServer.ListDependencies)},
		{MethodName: "DeleteDependency", Handler: unaryHandler(MethodDeleteDependency, FormStatesServer.DeleteDependency)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "condfields/v1/formstates.proto",
}

// FormStatesClient is the client API for the FormStates service.
type FormStatesClient struct {
	cc grpc.ClientConnInterface
}

// NewFormStatesClient creates a client over cc.
func NewFormStatesClient(cc grpc.ClientConnInterface) *FormStatesClient {
	return &FormStatesClient{cc: cc}
}

func (c *FormStatesClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// BuildStates calls FormStates.BuildStates.
func (c *FormStatesClient) BuildStates(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodBuildStates, in, opts...)
}

// ValidateSubmission calls FormStates.ValidateSubmission.
func (c *FormStatesClient) ValidateSubmission(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodValidateSubmission, in, opts...)
}

// AddDependency calls FormStates.AddDependency.
func (c *FormStatesClient) AddDependency(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodAddDependency, in, opts...)
}

// ListDependencies calls FormStates.ListDependencies.
func (c *FormStatesClient) ListDependencies(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListDependencies, in, opts...)
}

// DeleteDependency calls FormStates.DeleteDependency.
func (c *FormStatesClient) DeleteDependency(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodDeleteDependency, in, opts...)
}
