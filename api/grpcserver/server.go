// Package grpcserver exposes the table service over gRPC.
//
// The service descriptor is assembled by hand against the wire
// package, so no protoc step is needed to build or change the API.
package grpcserver

import (
	"context"
	"log"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"darr/api/wire"
	"darr/pathparse"
	"darr/service"
)

const serviceName = "darr.v1.Table"

// Server adapts TableService to the gRPC surface. gRPC dispatches
// handlers on arbitrary goroutines, so mutations are serialized under
// wmu to preserve the service's single-writer contract; queries take
// their own reader handles and need no coordination here.
type Server struct {
	svc *service.TableService
	wmu sync.Mutex
}

func New(svc *service.TableService) *Server {
	return &Server{svc: svc}
}

// Register installs the service on s. The caller must have created s
// with grpc.ForceServerCodec(wire.Codec{}).
func Register(s *grpc.Server, srv *Server) {
	s.RegisterService(&serviceDesc, srv)
}

//
// ──────────────────────────────────────────────────────────
// Handlers
// ──────────────────────────────────────────────────────────
//

func (s *Server) Put(ctx context.Context, req *wire.PutRequest) (*wire.PutResponse, error) {
	if req.Key == "" {
		return nil, status.Error(codes.InvalidArgument, "empty key")
	}

	s.wmu.Lock()
	seq, err := s.svc.Put(req.Key, req.Value)
	if err == nil {
		s.svc.Collect()
	}
	s.wmu.Unlock()

	if err != nil {
		log.Printf("[gRPC] put %q failed: %v", req.Key, err)
		return nil, status.Error(codes.Internal, "put failed")
	}
	return &wire.PutResponse{Seq: seq}, nil
}

func (s *Server) Delete(ctx context.Context, req *wire.DeleteRequest) (*wire.DeleteResponse, error) {
	if req.Key == "" {
		return nil, status.Error(codes.InvalidArgument, "empty key")
	}

	s.wmu.Lock()
	seq, err := s.svc.Delete(req.Key)
	if err == nil {
		s.svc.Collect()
	}
	s.wmu.Unlock()

	if err != nil {
		log.Printf("[gRPC] delete %q failed: %v", req.Key, err)
		return nil, status.Error(codes.Internal, "delete failed")
	}
	return &wire.DeleteResponse{Seq: seq}, nil
}

// lookupTarget is the bound form of "/entries/<key>".
type lookupTarget struct {
	Key string
}

func (s *Server) Lookup(ctx context.Context, req *wire.LookupRequest) (*wire.LookupResponse, error) {
	var target lookupTarget
	ok := pathparse.Parse(req.Path, &target, "/entries/",
		pathparse.String(func(t *lookupTarget) *string { return &t.Key }),
	)
	if !ok || target.Key == "" {
		return nil, status.Errorf(codes.InvalidArgument, "bad path %q", req.Path)
	}

	v, found := s.svc.Get(target.Key)
	if !found {
		return &wire.LookupResponse{}, nil
	}
	return &wire.LookupResponse{Found: true, Key: target.Key, Value: v}, nil
}

func (s *Server) Snapshot(ctx context.Context, req *wire.SnapshotRequest) (*wire.SnapshotResponse, error) {
	views := s.svc.Snapshot()
	resp := &wire.SnapshotResponse{Entries: make([]wire.Entry, len(views))}
	for i, v := range views {
		resp.Entries[i] = wire.Entry{Key: v.Key, Value: v.Value}
	}
	return resp, nil
}

func (s *Server) Status(ctx context.Context, req *wire.StatusRequest) (*wire.StatusResponse, error) {
	return &wire.StatusResponse{
		Generation:     s.svc.Generation(),
		PendingGarbage: uint64(s.svc.PendingGarbage()),
		TableSize:      uint64(s.svc.Len()),
	}, nil
}

// CollectNow runs one reclamation pass under the write lock. Wired to
// a timer so garbage retired by the last mutation of a burst does not
// linger until the next one.
func (s *Server) CollectNow() {
	s.wmu.Lock()
	s.svc.Collect()
	s.wmu.Unlock()
}

//
// ──────────────────────────────────────────────────────────
// Service descriptor
// ──────────────────────────────────────────────────────────
//

func unary[Req any, Resp any](
	method string,
	call func(*Server, context.Context, *Req) (*Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(*Server), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(*Server), ctx, req.(*Req))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unary("Put", (*Server).Put),
		unary("Delete", (*Server).Delete),
		unary("Lookup", (*Server).Lookup),
		unary("Snapshot", (*Server).Snapshot),
		unary("Status", (*Server).Status),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "darr/api/wire",
}
