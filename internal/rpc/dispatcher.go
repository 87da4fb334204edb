package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/mcoot/memorygrid/internal/model"
	"github.com/mcoot/memorygrid/internal/protocol"
	"github.com/mcoot/memorygrid/internal/services/session"
)

// HandlerFunc runs one command. The returned value becomes the completion
// result; nil means a completion without a result.
type HandlerFunc func(ctx context.Context, caller session.Caller, env *protocol.Envelope) (any, error)

// Dispatcher maps invocation targets onto session engine commands
type Dispatcher struct {
	controller session.ControllerInterface
	handlers   map[string]HandlerFunc
	logger     *slog.Logger
}

// NewDispatcher creates a Dispatcher with every command registered
func NewDispatcher(controller session.ControllerInterface, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		controller: controller,
		logger:     logger.With(slog.String("component", "rpc")),
	}
	d.handlers = map[string]HandlerFunc{
		protocol.TargetCreateSession:       d.createSession,
		protocol.TargetJoinSession:         d.joinSession,
		protocol.TargetStartSession:        d.startSession,
		protocol.TargetStartRound:          d.startRound,
		protocol.TargetStartGeneratedRound: d.startGeneratedRound,
		protocol.TargetSubmitAttempt:       d.submitAttempt,
		protocol.TargetNextRound:           d.nextRound,
		protocol.TargetEndSession:          d.endSession,
		protocol.TargetGetMemberList:       d.getMemberList,
		protocol.TargetGetLeaderboard:      d.getLeaderboard,
	}
	return d
}

// Targets returns the registered targets in name order
func (d *Dispatcher) Targets() []string {
	targets := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}

// Dispatch runs the invocation and returns the completion to send back to
// the caller. Invocations without an invocation id are run for their
// effect only and yield nil.
func (d *Dispatcher) Dispatch(ctx context.Context, caller session.Caller, env *protocol.Envelope) *protocol.Envelope {
	result, err := d.invoke(ctx, caller, env)
	if env.InvocationID == "" {
		return nil
	}
	if err != nil {
		return protocol.NewCompletionError(env.InvocationID, model.PublicMessage(err))
	}

	completion, err := protocol.NewCompletion(env.InvocationID, result)
	if err != nil {
		d.logger.Error("failed to encode completion",
			slog.String("target", env.Target),
			slog.Any("error", err))
		return protocol.NewCompletionError(env.InvocationID, model.PublicMessage(err))
	}
	return completion
}

func (d *Dispatcher) invoke(ctx context.Context, caller session.Caller, env *protocol.Envelope) (any, error) {
	handler, ok := d.handlers[env.Target]
	if !ok {
		d.logger.Debug("unknown target",
			slog.String("target", env.Target),
			slog.String("connection_id", string(caller.ConnectionID)))
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownTarget, env.Target)
	}
	return handler(ctx, caller, env)
}

// decodeArgs decodes positional arguments, reporting failures as invalid
// arguments
func decodeArgs(env *protocol.Envelope, dst ...any) error {
	for i, d := range dst {
		if err := env.Arg(i, d); err != nil {
			return fmt.Errorf("%w: %v", model.ErrInvalidArgument, err)
		}
	}
	return nil
}

func (d *Dispatcher) createSession(ctx context.Context, caller session.Caller, env *protocol.Envelope) (any, error) {
	var name string
	if err := decodeArgs(env, &name); err != nil {
		return nil, err
	}
	// Grid size is optional
	var gridSize int
	if len(env.Arguments) > 1 {
		if err := decodeArgs(env, &name, &gridSize); err != nil {
			return nil, err
		}
	}
	return d.controller.CreateSession(ctx, caller, name, gridSize)
}

func (d *Dispatcher) joinSession(ctx context.Context, caller session.Caller, env *protocol.Envelope) (any, error) {
	var code model.SessionCode
	var name string
	if err := decodeArgs(env, &code, &name); err != nil {
		return nil, err
	}
	return d.controller.JoinSession(ctx, caller, code, name)
}

func (d *Dispatcher) startSession(ctx context.Context, caller session.Caller, env *protocol.Envelope) (any, error) {
	var code model.SessionCode
	if err := decodeArgs(env, &code); err != nil {
		return nil, err
	}
	return nil, d.controller.StartSession(ctx, caller, code)
}

func (d *Dispatcher) startRound(ctx context.Context, caller session.Caller, env *protocol.Envelope) (any, error) {
	var code model.SessionCode
	var p model.Pattern
	if err := decodeArgs(env, &code, &p); err != nil {
		return nil, err
	}
	return nil, d.controller.StartRound(ctx, caller, code, p)
}

func (d *Dispatcher) startGeneratedRound(ctx context.Context, caller session.Caller, env *protocol.Envelope) (any, error) {
	var code model.SessionCode
	if err := decodeArgs(env, &code); err != nil {
		return nil, err
	}
	return d.controller.StartGeneratedRound(ctx, caller, code)
}

func (d *Dispatcher) submitAttempt(ctx context.Context, caller session.Caller, env *protocol.Envelope) (any, error) {
	var code model.SessionCode
	var sequence []int
	var reactionMs int64
	if err := decodeArgs(env, &code, &sequence, &reactionMs); err != nil {
		return nil, err
	}
	if reactionMs < 0 || reactionMs > maxReactionMs {
		return nil, fmt.Errorf("%w: reaction time out of range", model.ErrInvalidArgument)
	}
	return d.controller.SubmitAttempt(ctx, caller, code, sequence, time.Duration(reactionMs)*time.Millisecond)
}

// maxReactionMs is the largest millisecond count a time.Duration can hold
const maxReactionMs = math.MaxInt64 / int64(time.Millisecond)

func (d *Dispatcher) nextRound(ctx context.Context, caller session.Caller, env *protocol.Envelope) (any, error) {
	var code model.SessionCode
	if err := decodeArgs(env, &code); err != nil {
		return nil, err
	}
	return nil, d.controller.NextRound(ctx, caller, code)
}

func (d *Dispatcher) endSession(ctx context.Context, caller session.Caller, env *protocol.Envelope) (any, error) {
	var code model.SessionCode
	if err := decodeArgs(env, &code); err != nil {
		return nil, err
	}
	return d.controller.EndSession(ctx, caller, code)
}

func (d *Dispatcher) getMemberList(ctx context.Context, _ session.Caller, env *protocol.Envelope) (any, error) {
	var code model.SessionCode
	if err := decodeArgs(env, &code); err != nil {
		return nil, err
	}
	return d.controller.GetMemberList(ctx, code)
}

func (d *Dispatcher) getLeaderboard(ctx context.Context, _ session.Caller, env *protocol.Envelope) (any, error) {
	var code model.SessionCode
	if err := decodeArgs(env, &code); err != nil {
		return nil, err
	}
	return d.controller.GetLeaderboard(ctx, code)
}
