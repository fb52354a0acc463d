package interceptors

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/hrm-auth/internal/pkg/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// MetadataRequestID — ключ metadata с идентификатором запроса.
const MetadataRequestID = "x-request-id"

// Logging кладёт в контекст логгер с request_id, методом и peer и пишет одну
// запись "grpc_request" с кодом ответа и длительностью.
//
// request_id берётся из metadata x-request-id или генерируется и возвращается
// клиенту в header. Уровень записи зависит от кода: отказы аутентификации
// пишутся как Warn, серверные сбои как Error.
func Logging(base *slog.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = slog.Default()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		rid := requestID(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(MetadataRequestID, rid))

		peerStr := "-"
		if p, ok := peer.FromContext(ctx); ok && p != nil && p.Addr != nil {
			peerStr = p.Addr.String()
		}

		ctx, l := log.With(log.Into(ctx, base),
			slog.String("request_id", rid),
			slog.String("method", info.FullMethod),
			slog.String("peer", peerStr),
		)

		resp, err := handler(ctx, req)

		code := status.Code(err)
		l.LogAttrs(ctx, levelFor(code), "grpc_request",
			slog.String("code", code.String()),
			slog.Duration("dur", time.Since(start)),
		)

		return resp, err
	}
}

func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(MetadataRequestID); len(v) > 0 && v[0] != "" && len(v[0]) <= 128 {
			return v[0]
		}
	}

	return uuid.NewString()
}

func levelFor(c codes.Code) slog.Level {
	switch c {
	case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
		return slog.LevelError
	case codes.Unauthenticated, codes.PermissionDenied:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
