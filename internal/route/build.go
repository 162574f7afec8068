package route

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tgin/internal/config"
	"github.com/dgnsrekt/tgin/internal/relay"
	"github.com/dgnsrekt/tgin/internal/ws"
)

// Deps are the shared collaborators every built node may need.
type Deps struct {
	Registry *Registry
	Relay    relay.Config
	Logger   *zap.Logger
}

// Build constructs the route tree described by cfg. The root must be a
// strategy so that management commands always have a composite to edit.
func Build(cfg config.RouteConfig, deps Deps) (Composite, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}

	node, err := buildNode(cfg, deps, "route")
	if err != nil {
		return nil, err
	}
	root, ok := node.(Composite)
	if !ok {
		return nil, fmt.Errorf("route: root must be a strategy, got %q", cfg.Type)
	}
	return root, nil
}

func buildNode(cfg config.RouteConfig, deps Deps, where string) (Route, error) {
	switch cfg.Type {
	case config.TypeRoundRobin, config.TypeAll:
		children := make([]Route, 0, len(cfg.Routes))
		for i, childCfg := range cfg.Routes {
			child, err := buildNode(childCfg, deps, fmt.Sprintf("%s.routes[%d]", where, i))
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		if cfg.Type == config.TypeAll {
			return NewBroadcast(deps.Registry, deps.Logger, children...), nil
		}
		return NewRoundRobin(deps.Registry, children...), nil

	case config.TypeStream:
		if err := config.ValidatePath(cfg.Path); err != nil {
			return nil, fmt.Errorf("%s: %w", where, err)
		}
		hub, err := ws.NewHub(cfg.Path, deps.Logger)
		if err != nil {
			return nil, fmt.Errorf("%s: creating stream hub: %w", where, err)
		}
		return NewStream(hub), nil

	default:
		leaf, err := NewLeaf(cfg, deps)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", where, err)
		}
		return leaf, nil
	}
}

// NewLeaf creates a long-poll or webhook leaf. These are the node types
// that can be added at runtime, since neither needs a handler mounted
// after the server has started.
func NewLeaf(cfg config.RouteConfig, deps Deps) (Route, error) {
	switch cfg.Type {
	case config.TypeLongPoll:
		if err := config.ValidatePath(cfg.Path); err != nil {
			return nil, err
		}
		return NewLongPollQueue(cfg.Path, deps.Logger), nil

	case config.TypeWebhook:
		if err := relay.ValidateTarget(cfg.URL); err != nil {
			return nil, err
		}
		client := relay.NewClient(cfg.URL, deps.Relay, deps.Logger)
		return NewWebhook(cfg.URL, client), nil

	default:
		return nil, fmt.Errorf("unsupported route type %q", cfg.Type)
	}
}
