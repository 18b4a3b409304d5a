package actions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/aretw0/arbiter/pkg/expr"
	"github.com/aretw0/arbiter/pkg/ports"
	"github.com/aretw0/arbiter/pkg/registry"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// Built-in action names.
const (
	VerifyContent    = "verify_content"
	CreateRUVProfile = "create_ruv_profile"
	MakeDecision     = "make_decision"
	StoreData        = "store_data"
	TransformData    = "transform_data"
	CallAPI          = "call_api"
	Wait             = "wait"
)

// ErrNotConfigured is returned when a handler's collaborator was not supplied.
var ErrNotConfigured = errors.New("action dependency not configured")

// Decider evaluates a rule set; implemented by the decision framework.
type Decider interface {
	MakeDecision(ctx context.Context, agentID string, wctx map[string]any, rules []domain.Rule) (*domain.Decision, error)
}

// Deps are the collaborators shared by the built-in handlers.
// Nil fields disable only the handlers that need them.
type Deps struct {
	Store      ports.StateStore
	Verifier   ports.ContentVerifier
	Decider    Decider
	HTTPClient *http.Client
	Cache      *expr.Cache
	Logger     *zap.Logger
}

// RegisterBuiltins registers every built-in handler on reg.
func RegisterBuiltins(reg *registry.Registry, deps Deps) {
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	h := &handlers{deps: deps}

	reg.Register(VerifyContent, h.verifyContent)
	reg.Register(CreateRUVProfile, h.createProfile)
	reg.Register(MakeDecision, h.makeDecision)
	reg.Register(StoreData, h.storeData)
	reg.Register(TransformData, h.transformData)
	reg.Register(CallAPI, h.callAPI)
	reg.Register(Wait, h.wait)
}

type handlers struct {
	deps Deps
}

// decode maps a step config onto a typed struct.
// Durations accept Go duration strings ("1.5s") or a number of seconds.
func decode(config map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			secondsToDurationHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(config); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func secondsToDurationHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case float32:
		return time.Duration(float64(v) * float64(time.Second)), nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	}
	return data, nil
}

// agentFor resolves the agent a handler acts for.
func agentFor(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if info, ok := domain.StepInfoFrom(ctx); ok && info.AgentID != "" {
		return info.AgentID, nil
	}
	return "", errors.New("agent_id is required outside a workflow")
}
