package detector

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"argus-worker-go/internal/config"
	"argus-worker-go/internal/helpers"
	"argus-worker-go/internal/models"
)

const detectMethod = "/argus.Detector/Detect"

// jsonCodec serializes detector RPC messages as JSON. The remote detector
// speaks a JSON-over-gRPC contract, so there is no generated message code.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

type detectRequest struct {
	CameraID string `json:"camera_id"`
	FrameNum int64  `json:"frame_num"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	JPEG     []byte `json:"jpeg"` // base64 on the wire via encoding/json
}

type detectResponse struct {
	Detections []struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
		X          float64 `json:"x"`
		Y          float64 `json:"y"`
		W          float64 `json:"w"`
		H          float64 `json:"h"`
	} `json:"detections"`
}

// GRPCDetector calls a remote detection service over gRPC with automatic
// reconnect and exponential retry backoff
type GRPCDetector struct {
	cfg *config.Config

	mu       sync.RWMutex
	conn     *grpc.ClientConn
	endpoint string

	lastFailTime     time.Time
	consecutiveFails int
	maxRetryBackoff  time.Duration
}

// NewGRPCDetector creates a remote detector client. The connection is
// established lazily on the first Detect call.
func NewGRPCDetector(cfg *config.Config) *GRPCDetector {
	return &GRPCDetector{
		cfg:             cfg,
		maxRetryBackoff: 30 * time.Second,
	}
}

// Name returns the backend name
func (d *GRPCDetector) Name() string { return "grpc" }

// Close shuts down the connection
func (d *GRPCDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		err := d.conn.Close()
		d.conn = nil
		return err
	}
	return nil
}

// Detect encodes the frame as JPEG and asks the remote service
func (d *GRPCDetector) Detect(ctx context.Context, frame *models.Frame) ([]models.Detection, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDetectorUnavailable, err)
	}

	jpeg, err := helpers.EncodeJPEG(frame, d.cfg.InferenceJPEGQuality)
	if err != nil {
		return nil, err
	}

	req := &detectRequest{
		CameraID: frame.CameraID,
		FrameNum: frame.Seq,
		Width:    frame.Width,
		Height:   frame.Height,
		JPEG:     jpeg,
	}
	resp := &detectResponse{}

	d.mu.RLock()
	conn := d.conn
	d.mu.RUnlock()
	if conn == nil {
		return nil, models.ErrDetectorUnavailable
	}

	if err := conn.Invoke(ctx, detectMethod, req, resp, grpc.ForceCodec(jsonCodec{})); err != nil {
		d.recordFailure()
		return nil, fmt.Errorf("detector rpc failed: %w", err)
	}

	d.mu.Lock()
	d.consecutiveFails = 0
	d.mu.Unlock()

	out := make([]models.Detection, 0, len(resp.Detections))
	for _, det := range resp.Detections {
		if det.Confidence < d.cfg.DetectorMinConfidence {
			continue
		}
		out = append(out, models.Detection{
			Label:      det.Label,
			Confidence: det.Confidence,
			BBox:       models.Rect{X: det.X, Y: det.Y, W: det.W, H: det.H},
		})
	}
	return out, nil
}

// ensureConnected opens or repairs the connection, respecting backoff
func (d *GRPCDetector) ensureConnected() error {
	if !d.shouldRetry() {
		return fmt.Errorf("in backoff period after consecutive failures")
	}

	needsConnection := false
	d.mu.RLock()
	if d.conn == nil {
		needsConnection = true
	} else {
		state := d.conn.GetState()
		if state == connectivity.TransientFailure || state == connectivity.Shutdown {
			needsConnection = true
		}
	}
	d.mu.RUnlock()

	if !needsConnection {
		return nil
	}
	return d.connect()
}

func (d *GRPCDetector) connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}

	target, creds, err := parseGRPCEndpoint(d.cfg.DetectorGRPCURL)
	if err != nil {
		return fmt.Errorf("failed to parse detector endpoint %s: %w", d.cfg.DetectorGRPCURL, err)
	}

	log.Info().
		Str("endpoint", target).
		Bool("use_tls", creds.Info().SecurityProtocol == "tls").
		Msg("Connecting to detector gRPC service")

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(creds))
	if err != nil {
		d.consecutiveFails++
		d.lastFailTime = time.Now()
		return fmt.Errorf("failed to connect to detector at %s: %w", target, err)
	}

	d.conn = conn
	d.endpoint = target
	d.consecutiveFails = 0
	return nil
}

// shouldRetry gates reconnect attempts with exponential backoff
func (d *GRPCDetector) shouldRetry() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.consecutiveFails == 0 {
		return true
	}

	// Exponential backoff: 1s, 2s, 4s, 8s, 16s, 30s (max)
	backoffDuration := time.Duration(1<<uint(d.consecutiveFails-1)) * time.Second
	if backoffDuration > d.maxRetryBackoff {
		backoffDuration = d.maxRetryBackoff
	}

	return time.Since(d.lastFailTime) >= backoffDuration
}

func (d *GRPCDetector) recordFailure() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.consecutiveFails++
	d.lastFailTime = time.Now()

	if d.consecutiveFails <= 5 {
		log.Warn().
			Int("consecutive_fails", d.consecutiveFails).
			Msg("Detector connection failure recorded")
	}
}

// parseGRPCEndpoint normalizes host:port or URL endpoints and picks
// transport credentials from the scheme
func parseGRPCEndpoint(endpoint string) (string, credentials.TransportCredentials, error) {
	if !strings.Contains(endpoint, "://") {
		// Bare host:port defaults to plaintext
		return endpoint, insecure.NewCredentials(), nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", nil, fmt.Errorf("invalid endpoint URL: %w", err)
	}

	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "https":
			host = u.Hostname() + ":443"
		case "http":
			host = u.Hostname() + ":80"
		default:
			return "", nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
		}
	}

	switch u.Scheme {
	case "https":
		return host, credentials.NewTLS(&tls.Config{ServerName: u.Hostname()}), nil
	case "http":
		return host, insecure.NewCredentials(), nil
	default:
		return "", nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
}
