package grpc

import (
	"fmt"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"Chronicle/modules/kit/logx"
)

// DialGenerator opens a client connection to the generator service. The
// connection is made lazily on the first stream.
func DialGenerator(addr string, extra ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
	opts := []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithChainStreamInterceptor(StreamClientInterceptor()),
	}
	conn, err := gogrpc.NewClient(addr, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("dial generator %s: %w", addr, err)
	}
	return conn, nil
}

// NewServer returns a grpc server whose streams carry the caller's trace and
// session ids and are access-logged to l.
func NewServer(l logx.Logger, extra ...gogrpc.ServerOption) *gogrpc.Server {
	opts := []gogrpc.ServerOption{
		gogrpc.ChainStreamInterceptor(StreamServerInterceptor(l)),
	}
	return gogrpc.NewServer(append(opts, extra...)...)
}
