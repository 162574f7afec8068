package route

import "encoding/json"

// Node type names used in Description.Type.
const (
	TypeLoadBalancer = "load-balancer"
	TypeLongPoll     = "longpoll"
	TypeWebhook      = "webhook"
	TypeStream       = "stream"
)

// Strategy names used in Description.Name.
const (
	StrategyRoundRobin = "round-robin"
	StrategyAll        = "all"
)

// Description is the structured, recursive view of a route node returned
// by the "list routes" management command.
type Description struct {
	Type    string         `json:"type"`
	Name    string         `json:"name,omitempty"`
	Options map[string]any `json:"options,omitempty"`
	Routes  []Description  `json:"routes,omitempty"`
}

// MarshalJSON always emits "routes" for load balancers, even when empty.
func (d Description) MarshalJSON() ([]byte, error) {
	type plain Description
	if d.Type != TypeLoadBalancer {
		return json.Marshal(plain(d))
	}

	routes := d.Routes
	if routes == nil {
		routes = []Description{}
	}
	return json.Marshal(struct {
		Type    string         `json:"type"`
		Name    string         `json:"name"`
		Options map[string]any `json:"options,omitempty"`
		Routes  []Description  `json:"routes"`
	}{d.Type, d.Name, d.Options, routes})
}

func describeAll(children []Route) []Description {
	out := make([]Description, 0, len(children))
	for _, child := range children {
		out = append(out, child.Describe())
	}
	return out
}
