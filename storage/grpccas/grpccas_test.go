package grpccas

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/storage"
	"xdao.co/agentchain/storage/localfs"
	"xdao.co/agentchain/storage/testkit"
)

func serve(t *testing.T, cas storage.CAS) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterCASServer(srv, &Server{CAS: cas})
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	client, err := Dial("bufnet", DialOptions{Extra: []grpc.DialOption{grpc.WithContextDialer(dialer)}})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	client.Timeout = 2 * time.Second
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGRPCCASConformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return serve(t, storage.NewMemCAS())
	})
}

func TestGRPCCAS_LocalFS_RoundTrip(t *testing.T) {
	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	client := serve(t, cas)

	blk := testkit.Block(t, hashing.TypeEntry, []byte("hello grpccas"), nil)
	id, err := client.Put(blk)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !client.Has(id) || !cas.Has(id) {
		t.Fatalf("Has: expected true on client and backend")
	}
	got, err := client.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(blk) {
		t.Fatalf("payload mismatch")
	}
}

func TestErrorMapping(t *testing.T) {
	for _, sentinel := range []error{storage.ErrNotFound, storage.ErrInvalidCID, storage.ErrCIDMismatch, storage.ErrImmutable} {
		if got := mapRPC(mapErr(sentinel)); !errors.Is(got, sentinel) {
			t.Fatalf("round trip of %v = %v", sentinel, got)
		}
	}
	if st, _ := status.FromError(mapErr(errors.New("disk on fire"))); st.Code() != codes.Internal {
		t.Fatalf("unknown error code = %v", st.Code())
	}
}
