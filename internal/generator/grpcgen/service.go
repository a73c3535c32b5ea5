// Package grpcgen carries generator requests over a server-streaming gRPC
// method. Messages are google.protobuf.Struct values so the patch shape
// stays open: a request struct goes up, then any number of
// {"progress": {...}} frames and exactly one {"patch": {...}} frame come down.
package grpcgen

import (
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"Chronicle/internal/generator"
)

const (
	ServiceName    = "chronicle.generator.v1.Generator"
	MethodGenerate = "/" + ServiceName + "/Generate"

	fieldProgress = "progress"
	fieldPatch    = "patch"
)

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*generator.Generator)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Generate",
			Handler:       generateHandler,
			ServerStreams: true,
		},
	},
	Metadata: "chronicle/generator/v1/generator.proto",
}

// Register exposes g on s.
func Register(s grpc.ServiceRegistrar, g generator.Generator) {
	s.RegisterService(&ServiceDesc, g)
}

func frame(field string, body map[string]any) (*structpb.Struct, error) {
	inner, err := structpb.NewStruct(body)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		field: structpb.NewStructValue(inner),
	}}, nil
}
