// Package gateway implements the Gate & Proxy orchestrator: route policy,
// the signature-verification pipeline, structured error rendering, and
// transparent forwarding of admitted requests to the configured upstreams.
package gateway

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sage-x-project/agent-gateway/config"
	"github.com/sage-x-project/agent-gateway/core/rfc9421"
	"github.com/sage-x-project/agent-gateway/internal/logger"
	"github.com/sage-x-project/agent-gateway/internal/metrics"
	"github.com/sage-x-project/agent-gateway/registry"
	"github.com/sage-x-project/agent-gateway/replay"
)

// Gateway wires the parser, base-string builder, key cache, replay guard,
// and verifier into a single http.Handler. It is an explicit object rather
// than package-level process state so tests can construct independent
// instances.
type Gateway struct {
	cfg           config.GatewayConfig
	registry      registry.Client
	guard         *replay.Guard
	verifier      *rfc9421.Verifier
	canonicalizer *rfc9421.Canonicalizer
	upstreams     *upstreams
	logger        logger.Logger
	now           func() time.Time
}

// New builds a Gateway from cfg, a registry client (already wrapped in a
// cache by the caller if desired), and a logger. It dials both upstream
// reverse proxies eagerly so a misconfigured URL fails at startup.
func New(cfg config.GatewayConfig, registryClient registry.Client, log logger.Logger) (*Gateway, error) {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	ups, err := newUpstreams(cfg.APIUpstreamURL, cfg.AppUpstreamURL, log)
	if err != nil {
		return nil, err
	}

	return &Gateway{
		cfg:           cfg,
		registry:      registryClient,
		guard:         replay.NewGuard(cfg.NonceTTL),
		verifier:      rfc9421.NewVerifier(),
		canonicalizer: rfc9421.NewCanonicalizer(),
		upstreams:     ups,
		logger:        log,
		now:           time.Now,
	}, nil
}

// StartBackgroundSweep starts the replay guard's periodic eviction
// goroutine on the given interval.
func (g *Gateway) StartBackgroundSweep(interval time.Duration) {
	g.guard.StartSweep(interval)
}

// Stop shuts down background goroutines owned by the Gateway.
func (g *Gateway) Stop() {
	g.guard.StopSweep()
}

// ServeHTTP implements http.Handler. Every response carries the fixed
// security headers regardless of outcome.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	applySecurityHeaders(w)

	reqID := newRequestID()
	r = r.WithContext(withRequestID(r.Context(), reqID))

	class := routeClass(r.URL.Path)

	if !isGated(r.URL.Path) {
		metrics.RequestsTotal.WithLabelValues(class, "admitted").Inc()
		g.logger.Debug("ungated request forwarded",
			logger.String("request_id", reqID),
			logger.String("path", logger.Sanitize(r.URL.Path)),
			logger.String("route_class", class),
		)
		g.upstreams.forward(w, r)
		return
	}

	if err := g.verifyGatedRequest(r, reqID); err != nil {
		metrics.RequestsTotal.WithLabelValues(class, string(err.Kind)).Inc()
		g.logger.Info("gated request rejected",
			logger.String("request_id", reqID),
			logger.String("path", logger.Sanitize(r.URL.Path)),
			logger.String("kind", string(err.Kind)),
		)
		renderError(w, err)
		return
	}

	metrics.RequestsTotal.WithLabelValues(class, "admitted").Inc()
	g.logger.Info("gated request admitted",
		logger.String("request_id", reqID),
		logger.String("path", logger.Sanitize(r.URL.Path)),
	)
	g.upstreams.forward(w, r)
}

// verifyGatedRequest runs the full verification pipeline for paths under
// the gated prefix, logging a single-line event per step. A nil return
// means the request is admitted; the upstream receives no bytes from the
// request on any non-nil return.
func (g *Gateway) verifyGatedRequest(r *http.Request, reqID string) *GatewayError {
	step := g.logger.WithFields(logger.String("request_id", reqID))

	sigInput := r.Header.Get("Signature-Input")
	sigHeader := r.Header.Get("Signature")
	if sigInput == "" || sigHeader == "" {
		return &GatewayError{Kind: KindSignatureRequired}
	}

	// Step 1-2: parse envelope, validate key_id charset before touching
	// any backend.
	env, err := rfc9421.ParseEnvelope(sigInput, sigHeader)
	if err != nil {
		step.Debug("envelope parse failed", logger.Error(err))
		if errors.Is(err, rfc9421.ErrInvalidKeyID) {
			return &GatewayError{Kind: KindInvalidKeyID}
		}
		return &GatewayError{Kind: KindInvalidEnvelope}
	}

	params := env.Params
	if params.KeyID == "" || params.Algorithm == "" {
		return &GatewayError{Kind: KindInvalidEnvelope}
	}
	step.Debug("envelope parsed",
		logger.String("key_id", logger.Sanitize(params.KeyID)),
		logger.String("algorithm", logger.Sanitize(params.Algorithm)),
		logger.String("tag", logger.Sanitize(params.Tag)),
	)
	// An algorithm outside the supported set is rejected before the
	// registry fetch and before the nonce is spent, so a bad algorithm
	// name can never consume a legitimate signer's nonce.
	if !rfc9421.SupportedAlgorithm(params.Algorithm) {
		return &GatewayError{Kind: KindUnsupportedAlgorithm, Detail: logger.Sanitize(params.Algorithm)}
	}
	if params.Created != 0 && params.Expires != 0 && params.Created > params.Expires {
		return &GatewayError{Kind: KindInvalidEnvelope}
	}
	if params.Nonce == "" {
		return &GatewayError{Kind: KindMissingNonce}
	}

	// Step 3-4: fetch key record, enforce active.
	keyRecord, err := g.registry.FetchKey(r.Context(), params.KeyID)
	if err != nil {
		step.Debug("key fetch failed", logger.Error(err))
		if errors.Is(err, registry.ErrKeyNotFound) {
			return &GatewayError{Kind: KindKeyNotFound}
		}
		return &GatewayError{Kind: KindRegistryUnavailable}
	}
	step.Debug("key record fetched",
		logger.String("key_id", logger.Sanitize(keyRecord.KeyID)),
		logger.String("agent_name", logger.Sanitize(keyRecord.AgentName)),
	)
	if !strings.EqualFold(keyRecord.Algorithm, params.Algorithm) {
		step.Debug("key algorithm mismatch",
			logger.String("envelope_algorithm", logger.Sanitize(params.Algorithm)),
			logger.String("record_algorithm", logger.Sanitize(keyRecord.Algorithm)),
		)
		return &GatewayError{Kind: KindKeyNotFound}
	}
	if !keyRecord.Active() {
		return &GatewayError{Kind: KindKeyInactive}
	}
	step.Debug("key active")

	// Step 5: temporal check.
	now := g.now().Unix()
	skew := int64(g.cfg.ClockSkew / time.Second)
	if params.Created != 0 && params.Created > now+skew {
		return &GatewayError{Kind: KindTimestampFuture}
	}
	if params.Expires != 0 && params.Expires < now {
		return &GatewayError{Kind: KindSignatureExpired}
	}
	step.Debug("temporal check passed")

	// Step 6: replay guard, consulted before crypto verification but
	// after parse+temporal checks. A malformed request can never consume
	// a legitimate signer's nonce; a stolen nonce stays spent even when
	// the replayed request would fail verification anyway.
	if g.guard.CheckAndRecord(params.Nonce) == replay.Replay {
		step.Debug("nonce replayed", logger.String("nonce", logger.Sanitize(params.Nonce)))
		return &GatewayError{Kind: KindReplay}
	}
	step.Debug("nonce recorded", logger.String("nonce", logger.Sanitize(params.Nonce)))

	// Step 7: build base string.
	baseString, err := g.canonicalizer.BuildSignatureBase(r, env.Label, params)
	if err != nil {
		return &GatewayError{Kind: KindInvalidEnvelope}
	}
	step.Debug("base string built", logger.Int("length", len(baseString)))

	// Step 8: signature bytes are already decoded by ParseEnvelope; a
	// malformed :BASE64: form surfaces as a parse error above.
	sigBytes := env.Sig
	if len(sigBytes) == 0 {
		return &GatewayError{Kind: KindInvalidEnvelope}
	}

	// Step 9: verify.
	verifyStart := g.now()
	verr := g.verifier.Verify(params.Algorithm, keyRecord.PublicKey, []byte(baseString), sigBytes)
	metrics.VerificationDuration.WithLabelValues(params.Algorithm).Observe(g.now().Sub(verifyStart).Seconds())
	if verr != nil {
		step.Debug("signature verification failed", logger.Error(verr))
		if errors.Is(verr, rfc9421.ErrUnsupportedAlgorithm) {
			return &GatewayError{Kind: KindUnsupportedAlgorithm, Detail: logger.Sanitize(params.Algorithm)}
		}
		return &GatewayError{Kind: KindSignatureBad}
	}
	step.Debug("signature verified", logger.String("algorithm", params.Algorithm))

	return nil
}
