// Package redologserver exposes a redo log writer over gRPC.
package redologserver

import (
	"bytes"
	"context"

	"github.com/chn0318/redolog/distlog"
	"github.com/chn0318/redolog/redolog"
	"github.com/chn0318/redolog/redolog/record"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Writer is what the server needs from a log writer.
type Writer interface {
	redolog.LogWriter
	Stats() distlog.Stats
}

type Server struct {
	writer Writer
	logger *zap.Logger
}

var _ RedologServer = (*Server)(nil)

func NewServer(writer Writer, log *zap.Logger) *Server {
	return &Server{
		writer: writer,
		logger: log,
	}
}

func (s *Server) Log(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	op, payload, sync, err := record.UnmarshalOperation(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.writer.Log(ctx, op, bytes.NewReader(payload), sync); err != nil {
		s.logger.Warn("Rejected redo op", zap.Stringer("txnId", op.Txn), zap.Stringer("op", op.Code), zap.Error(err))
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) IsEmpty(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	ok, err := s.writer.IsEmpty(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bool(ok), nil
}

func (s *Server) Exists(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	ok, err := s.writer.Exists(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bool(ok), nil
}

func (s *Server) Delete(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	ok, err := s.writer.Delete(ctx)
	if err != nil {
		s.logger.Error("Deleting redo log streams failed", zap.Bool("result", ok), zap.Error(err))
		return nil, toStatus(err)
	}
	s.logger.Info("Deleted redo log streams", zap.Bool("result", ok))
	return wrapperspb.Bool(ok), nil
}

func (s *Server) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := s.writer.Stats()
	shards := make([]interface{}, 0, len(st.Shards))
	for _, sh := range st.Shards {
		shards = append(shards, map[string]interface{}{
			"index":   sh.Index,
			"stream":  sh.Stream,
			"acked":   sh.Acked,
			"failed":  sh.Failed,
			"last_id": sh.Last.ID,
		})
	}
	res, err := structpb.NewStruct(map[string]interface{}{
		"pending_transactions": st.PendingTransactions,
		"shards":               shards,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return res, nil
}

func toStatus(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, record.ErrMalformed):
		code = codes.InvalidArgument
	case errors.Is(err, redolog.ErrNotSupported):
		code = codes.Unimplemented
	case errors.Is(err, redolog.ErrOrderingTimeout):
		code = codes.DeadlineExceeded
	case errors.Is(err, redolog.ErrTransactionInFlight):
		code = codes.AlreadyExists
	case errors.Is(err, redolog.ErrWriterClosed):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	}
	return status.Error(code, err.Error())
}
