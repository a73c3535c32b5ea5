package grpcgen

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"Chronicle/internal/generator"
	"Chronicle/internal/shared/logs"
)

func generateHandler(srv any, stream grpc.ServerStream) error {
	g := srv.(generator.Generator)

	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	req, err := generator.DecodeRequest(in.AsMap())
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}

	var sendErr error
	progress := func(p generator.Progress) {
		if sendErr != nil {
			return
		}
		msg, err := frame(fieldProgress, map[string]any{"stage": p.Stage, "text": p.Text})
		if err != nil {
			sendErr = err
			return
		}
		sendErr = stream.SendMsg(msg)
	}

	patch, err := g.Generate(stream.Context(), req, progress)
	if err != nil {
		if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
			return err
		}
		if ctxErr := stream.Context().Err(); ctxErr != nil {
			return status.FromContextError(ctxErr).Err()
		}
		logs.Warn("generate failed", zap.Error(err))
		return status.Error(codes.Internal, err.Error())
	}
	if sendErr != nil {
		return sendErr
	}

	body, err := generator.EncodePatch(patch)
	if err != nil {
		return status.Errorf(codes.Internal, "encode patch: %v", err)
	}
	msg, err := frame(fieldPatch, body)
	if err != nil {
		return status.Errorf(codes.Internal, "encode patch: %v", err)
	}
	return stream.SendMsg(msg)
}
