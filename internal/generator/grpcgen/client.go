package grpcgen

import (
	"context"
	"errors"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/generator"
	"Chronicle/modules/kit/tracex"
)

var errNoPatch = errors.New("generator stream ended without a patch")

// Client implements generator.Generator against a remote service.
type Client struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
}

// NewClient wraps conn. A non-positive timeout leaves the deadline to ctx.
func NewClient(conn grpc.ClientConnInterface, timeout time.Duration) *Client {
	return &Client{conn: conn, timeout: timeout}
}

func (c *Client) Generate(ctx context.Context, req generator.Request, progress generator.ProgressFunc) (*entity.Patch, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ctx = tracex.WithSessionID(ctx, req.SessionID)

	body, err := generator.EncodeRequest(req)
	if err != nil {
		return nil, err
	}
	in, err := structpb.NewStruct(body)
	if err != nil {
		return nil, err
	}

	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], MethodGenerate)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	var patch *entity.Patch
	for {
		out := new(structpb.Struct)
		err := stream.RecvMsg(out)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}
		if v, ok := out.Fields[fieldProgress]; ok && progress != nil {
			m := v.GetStructValue().AsMap()
			stage, _ := m["stage"].(string)
			text, _ := m["text"].(string)
			progress(generator.Progress{Stage: stage, Text: text})
		}
		if v, ok := out.Fields[fieldPatch]; ok {
			patch, err = generator.DecodePatch(v.GetStructValue().AsMap())
			if err != nil {
				return nil, err
			}
		}
	}
	if patch == nil {
		return nil, errNoPatch
	}
	return patch, nil
}
