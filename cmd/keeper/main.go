// Command keeper is the external executor bot: it polls a work queue of
// order/action/position-cut references and dispatches each one against a
// running exchanged daemon's HTTP surface, minting its own short-lived
// bearer token from the shared keeper key. The trie-backed state store has
// no enumeration call (core/state.Manager only supports keyed point
// lookups), so unlike a chain indexer this bot cannot discover "all pending
// orders" itself, it is handed explicit owner/nonce references by
// whatever upstream watches order-creation events (an out-of-band concern,
// handed off to a webhook dispatch queue). Built as a plain net/http JSON
// client over a local RPC endpoint, following
// cmd/oracle-attesterd (config load, signal-aware run loop).
package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gmsolcore/config"
	"gmsolcore/observability/logging"
)

// job is one line of the work-queue file: a reference to an entry point the
// keeper should call, plus whatever path/body parameters that call needs.
type job struct {
	Kind  string          `json:"kind"` // order.execute | order.close | order.cancel_if_no_position | action.execute | action.close | position.liquidate | position.auto_deleverage
	Owner string          `json:"owner,omitempty"`
	Nonce uint64          `json:"nonce,omitempty"`
	Body  json.RawMessage `json:"body,omitempty"`
}

func main() {
	var (
		cfgPath    string
		queuePath  string
		baseURL    string
		pollEvery  time.Duration
		role       string
	)
	flag.StringVar(&cfgPath, "config", "./exchanged.toml", "path to the keeper daemon config (shared keeper key)")
	flag.StringVar(&queuePath, "queue", "./keeper-queue.json", "path to a JSON array of work-queue jobs")
	flag.StringVar(&baseURL, "endpoint", "http://127.0.0.1:8080", "base URL of the running exchanged daemon")
	flag.DurationVar(&pollEvery, "poll", 5*time.Second, "interval between queue-file re-reads")
	flag.StringVar(&role, "role", "ADMIN", "role claim to mint for this keeper's bearer token")
	flag.Parse()

	logger := logging.Setup("keeper", os.Getenv("GMSOL_ENV"))

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	secret, err := hex.DecodeString(cfg.KeeperKey)
	if err != nil {
		logger.Error("decode keeper key", slog.String("error", err.Error()))
		os.Exit(1)
	}

	client := &httpClient{base: baseURL, http: &http.Client{Timeout: 30 * time.Second}}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	logger.Info("keeper polling", slog.String("queue", queuePath), slog.Duration("interval", pollEvery))
	for {
		token, err := mintToken(secret, "gmsolcore-exchanged", role)
		if err != nil {
			logger.Error("mint token", slog.String("error", err.Error()))
		} else if err := runOnce(ctx, logger, client, token, queuePath); err != nil {
			logger.Error("run queue", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			logger.Info("keeper stopping")
			return
		case <-ticker.C:
		}
	}
}

// mintToken signs a short-lived HS256 token bearing role, the same claim
// shape rpc.Authenticator.parse expects.
func mintToken(secret []byte, issuer, role string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":  issuer,
		"sub":  "keeper-bot",
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func runOnce(ctx context.Context, logger *slog.Logger, client *httpClient, token, queuePath string) error {
	raw, err := os.ReadFile(queuePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read queue file: %w", err)
	}
	var jobs []job
	if err := json.Unmarshal(raw, &jobs); err != nil {
		return fmt.Errorf("parse queue file: %w", err)
	}
	for _, j := range jobs {
		if err := dispatch(ctx, client, token, j); err != nil {
			logger.Error("dispatch job failed", slog.String("kind", j.Kind), slog.String("owner", j.Owner), slog.Uint64("nonce", j.Nonce), slog.String("error", err.Error()))
			continue
		}
		logger.Info("dispatched job", slog.String("kind", j.Kind), slog.String("owner", j.Owner), slog.Uint64("nonce", j.Nonce))
	}
	return nil
}

func dispatch(ctx context.Context, client *httpClient, token string, j job) error {
	switch j.Kind {
	case "order.execute":
		return client.post(ctx, token, fmt.Sprintf("/v1/orders/%s/%d/execute", j.Owner, j.Nonce), j.Body)
	case "order.close":
		return client.post(ctx, token, fmt.Sprintf("/v1/orders/%s/%d/close", j.Owner, j.Nonce), j.Body)
	case "order.cancel_if_no_position":
		return client.post(ctx, token, fmt.Sprintf("/v1/orders/%s/%d/cancel-if-no-position", j.Owner, j.Nonce), j.Body)
	case "action.execute":
		return client.post(ctx, token, fmt.Sprintf("/v1/actions/%s/%d/execute", j.Owner, j.Nonce), j.Body)
	case "action.close":
		return client.post(ctx, token, fmt.Sprintf("/v1/actions/%s/%d/close", j.Owner, j.Nonce), j.Body)
	case "position.liquidate":
		return client.post(ctx, token, "/v1/positions/liquidate", j.Body)
	case "position.auto_deleverage":
		return client.post(ctx, token, "/v1/positions/auto-deleverage", j.Body)
	default:
		return fmt.Errorf("unknown job kind %q", j.Kind)
	}
}

type httpClient struct {
	base string
	http *http.Client
}

func (c *httpClient) post(ctx context.Context, token, path string, body json.RawMessage) error {
	if len(body) == 0 {
		body = []byte("{}")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: %s: %s", http.MethodPost, path, resp.Status, string(payload))
	}
	return nil
}
