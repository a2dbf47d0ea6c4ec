// Package tester runs the staged connection test for a backend: host
// reachability, declared ports, then the kind-specific handshake.
package tester

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nucleus/provision-core/internal/endpoint"
)

// Stage names a pipeline step.
type Stage string

const (
	StageHost      Stage = "host"
	StagePort      Stage = "port"
	StageHandshake Stage = "handshake"
	StageConfig    Stage = "config"
)

// DefaultHandshakeTimeout bounds the final stage.
const DefaultHandshakeTimeout = 5 * time.Second

// Prober is the reachability check used before the handshake.
type Prober interface {
	PingHost(ctx context.Context, host string) endpoint.ProbeResult
	CheckPort(ctx context.Context, host string, port int) endpoint.ProbeResult
}

// Progress is delivered to the caller as each step completes.
type Progress struct {
	Stage  Stage                `json:"stage"`
	Label  string               `json:"label"`
	Step   int                  `json:"step"`
	Total  int                  `json:"total"`
	Result endpoint.ProbeResult `json:"result"`
}

// Step is one recorded pipeline step.
type Step struct {
	Stage  Stage                `json:"stage"`
	Label  string               `json:"label"`
	Result endpoint.ProbeResult `json:"result"`
}

// Result is the overall outcome of a connection test. Validation carries the
// connector's parameter check; it is advisory and never decides Success.
type Result struct {
	Success    bool                       `json:"success"`
	Message    string                     `json:"message"`
	ShowModal  bool                       `json:"showModal"`
	Steps      []Step                     `json:"steps"`
	Validation *endpoint.ValidationResult `json:"validation,omitempty"`
}

// Tester runs connection tests against registered connectors.
type Tester struct {
	registry         *endpoint.Registry
	prober           Prober
	logger           *slog.Logger
	handshakeTimeout time.Duration
}

// New creates a Tester. A nil registry means the default registry.
func New(registry *endpoint.Registry, prober Prober, logger *slog.Logger) *Tester {
	if registry == nil {
		registry = endpoint.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tester{
		registry:         registry,
		prober:           prober,
		logger:           logger,
		handshakeTimeout: DefaultHandshakeTimeout,
	}
}

// SetHandshakeTimeout overrides the handshake deadline.
func (t *Tester) SetHandshakeTimeout(d time.Duration) {
	if d > 0 {
		t.handshakeTimeout = d
	}
}

type run struct {
	steps      []Step
	total      int
	onProgress func(Progress)
	validation *endpoint.ValidationResult
}

func (r *run) record(stage Stage, label string, res endpoint.ProbeResult) {
	r.steps = append(r.steps, Step{Stage: stage, Label: label, Result: res})
	if r.onProgress != nil {
		r.onProgress(Progress{Stage: stage, Label: label, Step: len(r.steps), Total: r.total, Result: res})
	}
}

// TestConnection verifies cfg step by step. Only the handshake decides
// success; port failures are kept as diagnostics. onProgress may be nil.
func (t *Tester) TestConnection(ctx context.Context, cfg endpoint.BackendConfig, onProgress func(Progress)) Result {
	cfg = cfg.Clone()
	r := &run{onProgress: onProgress}

	ep, err := t.registry.CreateFor(cfg)
	if err != nil {
		r.total = 1
		res := endpoint.Failed(endpoint.CodeConfigInvalid, err.Error(), -1)
		r.record(StageConfig, "Checking configuration...", res)
		return t.fail(cfg, r, StageConfig, res, nil)
	}
	defer ep.Close()
	r.validation = validate(ctx, ep, cfg.Params)

	target := ep.Target()
	if strings.TrimSpace(target.Host) == "" {
		r.total = 1
		res := endpoint.Failed(endpoint.CodeConfigInvalid, "host is required", -1)
		r.record(StageConfig, "Checking configuration...", res)
		return t.fail(cfg, r, StageConfig, res, nil)
	}
	r.total = 2 + len(target.Ports)

	hostRes := t.prober.PingHost(ctx, target.Host)
	r.record(StageHost, "Checking host...", hostRes)
	if !hostRes.Success {
		return t.fail(cfg, r, StageHost, hostRes, nil)
	}

	var portNotes []string
	for _, p := range target.Ports {
		res := t.prober.CheckPort(ctx, target.Host, p.Number)
		r.record(StagePort, "Checking port...", res)
		if !res.Success {
			portNotes = append(portNotes, fmt.Sprintf("%s port %d: %s", p.Label, p.Number, res.Message))
		}
	}

	hctx, cancel := context.WithTimeout(ctx, t.handshakeTimeout)
	defer cancel()
	hsRes := ep.Handshake(hctx)
	r.record(StageHandshake, "Testing connection...", hsRes)
	if !hsRes.Success {
		return t.fail(cfg, r, StageHandshake, hsRes, portNotes)
	}

	t.logger.Info("connection test succeeded",
		"kind", cfg.Kind,
		"host", target.Host,
		"latency_ms", latency(hsRes))
	if r.validation != nil && !r.validation.Valid {
		t.logger.Warn("connected with incomplete configuration",
			"kind", cfg.Kind,
			"missing", r.validation.Missing,
			"message", r.validation.Message)
	}
	return Result{Success: true, Message: hsRes.Message, ShowModal: false, Steps: r.steps, Validation: r.validation}
}

func validate(ctx context.Context, ep endpoint.Endpoint, params map[string]any) *endpoint.ValidationResult {
	res, err := ep.ValidateConfig(ctx, params)
	if err != nil {
		code := endpoint.CodeOf(err)
		if code == "" {
			code = endpoint.CodeConfigInvalid
		}
		return &endpoint.ValidationResult{Valid: false, Message: err.Error(), Code: code}
	}
	return res
}

func (t *Tester) fail(cfg endpoint.BackendConfig, r *run, stage Stage, res endpoint.ProbeResult, notes []string) Result {
	var b strings.Builder
	fmt.Fprintf(&b, "%s check failed: %s", stage, res.Message)
	if len(notes) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(notes, "; "))
		b.WriteString(")")
	}
	t.logger.Warn("connection test failed",
		"kind", cfg.Kind,
		"stage", stage,
		"code", res.Code,
		"message", res.Message)
	return Result{Success: false, Message: b.String(), ShowModal: true, Steps: r.steps, Validation: r.validation}
}

func latency(res endpoint.ProbeResult) int64 {
	if res.LatencyMs == nil {
		return 0
	}
	return *res.LatencyMs
}
