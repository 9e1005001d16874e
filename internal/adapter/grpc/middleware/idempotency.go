package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/iho/kasa/internal/usecase"
)

const (
	// IdempotencyKeyHeader is the metadata key for idempotency
	IdempotencyKeyHeader = "x-idempotency-key"

	defaultIdempotencyTTL = 24 * time.Hour
	pendingMarker         = "processing"
)

// storedCall is kept under the idempotency key once the call succeeded.
type storedCall struct {
	RequestHash string          `json:"request_hash"`
	Response    json.RawMessage `json:"response"`
}

// IdempotencyInterceptor replays the stored response of mutating methods
// called again with the same x-idempotency-key. Replays are returned as
// json.RawMessage, which the JSON codec writes unchanged.
func IdempotencyInterceptor(store usecase.IdempotencyStore, ttl time.Duration, mutating map[string]bool) grpc.UnaryServerInterceptor {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}

	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if !mutating[info.FullMethod] {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		keys := md.Get(IdempotencyKeyHeader)
		if len(keys) == 0 {
			return handler(ctx, req)
		}

		idempotencyKey := keys[0]
		if idempotencyKey == "" {
			return nil, status.Error(codes.InvalidArgument, "idempotency key cannot be empty")
		}

		cacheKey := fmt.Sprintf("grpc:%s:%s", info.FullMethod, idempotencyKey)

		requestHash, err := hashRequest(req)
		if err != nil {
			return nil, status.Error(codes.Internal, "failed to generate request hash")
		}

		exists, cached, err := store.CheckAndSet(ctx, cacheKey, []byte(pendingMarker), ttl)
		if err != nil {
			// Degraded mode without idempotency
			return handler(ctx, req)
		}

		// A pending call that failed left only the marker behind; run again.
		if exists && string(cached) != pendingMarker {
			var stored storedCall
			if err := json.Unmarshal(cached, &stored); err != nil {
				return handler(ctx, req)
			}
			if stored.RequestHash != requestHash {
				return nil, status.Error(codes.InvalidArgument, "idempotency key reused with different request body")
			}
			return stored.Response, nil
		}

		resp, err := handler(ctx, req)
		if err != nil {
			return resp, err
		}

		if body, err := json.Marshal(resp); err == nil {
			if data, err := json.Marshal(storedCall{RequestHash: requestHash, Response: body}); err == nil {
				_ = store.Update(ctx, cacheKey, data, ttl)
			}
		}

		return resp, nil
	}
}

// hashRequest generates a SHA-256 hash of the request for fingerprinting
func hashRequest(req any) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
