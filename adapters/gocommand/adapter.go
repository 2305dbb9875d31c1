package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

var errNoRegistry = fmt.Errorf("gocommand: registry is not configured")

// ValidateMessageContract requires a non-empty Type() and runs Validate()
// when the message has one.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	typed, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: %T does not implement Type() string", msg)
	}
	if strings.TrimSpace(typed.Type()) == "" {
		return fmt.Errorf("gocommand: %T has an empty message type", msg)
	}
	return nil
}

// Registry owns the go-command registry the commerce handlers are
// registered on. Resolvers added before Initialize see every handler.
type Registry struct {
	inner *command.Registry
}

func NewRegistry(inner *command.Registry) *Registry {
	if inner == nil {
		inner = command.NewRegistry()
	}
	return &Registry{inner: inner}
}

func (r *Registry) Unwrap() *command.Registry {
	if r == nil {
		return nil
	}
	return r.inner
}

func (r *Registry) AddResolver(key string, resolver command.Resolver) error {
	if r == nil || r.inner == nil {
		return errNoRegistry
	}
	return r.inner.AddResolver(strings.TrimSpace(key), resolver)
}

// MirrorToQueue lets go-job enqueue every registered command by its message
// type.
func (r *Registry) MirrorToQueue(key string, queues *jobqueuecommand.Registry) error {
	if queues == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return r.AddResolver(key, jobqueuecommand.QueueResolver(queues))
}

func (r *Registry) HasResolver(key string) bool {
	return r != nil && r.inner != nil && r.inner.HasResolver(strings.TrimSpace(key))
}

func (r *Registry) Initialize() error {
	if r == nil || r.inner == nil {
		return errNoRegistry
	}
	return r.inner.Initialize()
}

func (r *Registry) add(handler any) error {
	if r == nil || r.inner == nil {
		return errNoRegistry
	}
	return r.inner.RegisterCommand(handler)
}

// RegisterCommand subscribes cmd on the global dispatcher and records it in
// the registry. The subscription is released when registration fails.
func RegisterCommand[T any](r *Registry, cmd command.Commander[T], opts ...runner.Option) (commanddispatcher.Subscription, error) {
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	return subscribeThenAdd(r, cmd, func() commanddispatcher.Subscription {
		return commanddispatcher.SubscribeCommand(cmd, opts...)
	})
}

// RegisterQuery is the Querier form of RegisterCommand.
func RegisterQuery[T any, R any](r *Registry, qry command.Querier[T, R], opts ...runner.Option) (commanddispatcher.Subscription, error) {
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	return subscribeThenAdd(r, qry, func() commanddispatcher.Subscription {
		return commanddispatcher.SubscribeQuery(qry, opts...)
	})
}

func subscribeThenAdd(r *Registry, handler any, subscribe func() commanddispatcher.Subscription) (commanddispatcher.Subscription, error) {
	if r == nil || r.inner == nil {
		return nil, errNoRegistry
	}
	sub := subscribe()
	if err := r.add(handler); err != nil {
		if sub != nil {
			sub.Unsubscribe()
		}
		return nil, err
	}
	return sub, nil
}

func Dispatch[T any](ctx context.Context, msg T) error {
	if err := ValidateMessageContract(msg); err != nil {
		return err
	}
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	if err := ValidateMessageContract(msg); err != nil {
		var zero R
		return zero, err
	}
	return commanddispatcher.Query[T, R](ctx, msg)
}
