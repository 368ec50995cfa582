// File: internal/brain/client.go
// Description: Resilient RPC client for the remote inference backend. A
// Session owns one logical connection; the endpoint it was resolved against
// never changes, only the underlying channel is swapped on reconnect.
package brain

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/xkilldash9x/wraith/api/brainrpc"
)

// HealthProbeCommand is the sentinel instruction carried by health probes.
// The backend treats it like any other vision command, which is the point:
// a probe exercises the exact code path of a real inference call.
const HealthProbeCommand = "health_check"

// dialReadyTimeout bounds a single connection-readiness wait. One dial
// attempt from the retry loop, not the whole loop. Variable for tests.
var dialReadyTimeout = 5 * time.Second

// healthProbePNG is a minimal valid 1x1 transparent PNG (67 bytes). Small
// enough to be free, valid enough that the backend's image decoder accepts it.
var healthProbePNG = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
	0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
	0x54, 0x08, 0xD7, 0x63, 0x60, 0x00, 0x00, 0x00,
	0x02, 0x00, 0x01, 0xE2, 0x21, 0xBC, 0x33, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44,
	0xAE, 0x42, 0x60, 0x82,
}

// Session wraps one live connection to the backend plus the endpoint it was
// built from. It performs no internal locking: the connection supervisor owns
// the session and serializes all access to it.
type Session struct {
	endpoint string
	policy   RetryPolicy
	logger   *zap.Logger
	dialOpts []grpc.DialOption

	conn   *grpc.ClientConn
	client brainrpc.BrainClient
}

// Connect resolves a Session against the endpoint, retrying establishment
// under the policy. Exhaustion here is a fatal-startup condition for the
// caller. Extra dial options are appended after the defaults (tests use this
// to dial in-process backends).
func Connect(ctx context.Context, endpoint string, policy RetryPolicy, logger *zap.Logger, opts ...grpc.DialOption) (*Session, error) {
	s := &Session{
		endpoint: endpoint,
		policy:   policy,
		logger:   logger.With(zap.String("component", "brain"), zap.String("endpoint", endpoint)),
		dialOpts: opts,
	}
	if err := s.establish(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Endpoint returns the resolved backend address this session is bound to.
func (s *Session) Endpoint() string { return s.endpoint }

// establish dials the endpoint under the retry policy and installs the
// resulting channel. Used for both initial connect and reconnect.
func (s *Session) establish(ctx context.Context) error {
	target := dialTarget(s.endpoint)
	return s.policy.Do(ctx, s.logger, "connect", func(ctx context.Context) error {
		opts := append([]grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(grpc.CallContentSubtype(brainrpc.CodecName)),
		}, s.dialOpts...)

		conn, err := grpc.NewClient(target, opts...)
		if err != nil {
			// NewClient only rejects malformed targets; that is terminal.
			return err
		}
		if err := waitReady(ctx, conn); err != nil {
			_ = conn.Close()
			return status.Errorf(codes.Unavailable, "backend not ready: %v", err)
		}

		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.conn = conn
		s.client = brainrpc.NewBrainClient(conn)
		s.logger.Info("Connected to inference backend")
		return nil
	})
}

// Reconnect tears down the current channel and re-establishes it against the
// same endpoint with the same policy as the initial connect. The Session
// identity (and its endpoint) is preserved.
func (s *Session) Reconnect(ctx context.Context) error {
	s.logger.Info("Reconnecting to inference backend")
	return s.establish(ctx)
}

// Close releases the underlying channel.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// ProcessVision grounds a command against a screenshot, retrying transient
// failures under the session policy.
func (s *Session) ProcessVision(ctx context.Context, req *brainrpc.VisionRequest) (*brainrpc.VisionResponse, error) {
	start := time.Now()
	var resp *brainrpc.VisionResponse
	err := s.policy.Do(ctx, s.logger, "process_vision", func(ctx context.Context) error {
		r, err := s.client.ProcessVision(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if resp.Found {
		s.logger.Info("Backend resolved target coordinates",
			zap.Float64("x", resp.X),
			zap.Float64("y", resp.Y),
			zap.Float64("confidence", resp.Confidence),
			zap.Duration("latency", time.Since(start)),
		)
	} else {
		s.logger.Debug("Backend found no actionable target",
			zap.Duration("latency", time.Since(start)),
		)
	}
	return resp, nil
}

// QueryMemory searches recorded experiences. A zero TopK is promoted to the
// contract default of 5.
func (s *Session) QueryMemory(ctx context.Context, req *brainrpc.MemoryRequest) (*brainrpc.MemoryResponse, error) {
	if req.TopK <= 0 {
		req.TopK = 5
	}

	start := time.Now()
	var resp *brainrpc.MemoryResponse
	err := s.policy.Do(ctx, s.logger, "query_memory", func(ctx context.Context) error {
		r, err := s.client.QueryMemory(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Memory query completed",
		zap.Int("results", len(resp.Results)),
		zap.Duration("latency", time.Since(start)),
	)
	return resp, nil
}

// HealthCheck sends a minimal vision request down the real call path. A nil
// return means the backend answered, regardless of what it answered; found
// or not-found are both healthy outcomes for a 1x1 probe image.
func (s *Session) HealthCheck(ctx context.Context) error {
	_, err := s.ProcessVision(ctx, &brainrpc.VisionRequest{
		Screenshot:  healthProbePNG,
		TextCommand: HealthProbeCommand,
	})
	return err
}

// dialTarget strips the URL scheme from a resolved endpoint. The endpoint is
// carried with a scheme for parity with the backend's own configuration, but
// gRPC targets name an authority, not a URL.
func dialTarget(endpoint string) string {
	target := strings.TrimPrefix(endpoint, "https://")
	target = strings.TrimPrefix(target, "http://")
	return target
}

// waitReady drives the channel to READY or reports why it could not get
// there within the per-attempt window.
func waitReady(ctx context.Context, conn *grpc.ClientConn) error {
	ctx, cancel := context.WithTimeout(ctx, dialReadyTimeout)
	defer cancel()

	conn.Connect()
	for {
		st := conn.GetState()
		if st == connectivity.Ready {
			return nil
		}
		if !conn.WaitForStateChange(ctx, st) {
			return ctx.Err()
		}
	}
}
