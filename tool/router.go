package tool

import (
	"errors"
	"fmt"
)

// Sentinel errors for routing.
var (
	// ErrUnknownTool indicates the router has no binding for the
	// requested tool name.
	ErrUnknownTool = errors.New("tool: unknown tool")

	// ErrInvalidBinding indicates a binding is malformed: no backend,
	// an unroutable flow, or a flow missing its identifiers.
	ErrInvalidBinding = errors.New("tool: invalid binding")

	// ErrDuplicateTool indicates two backends expose the same tool
	// name.
	ErrDuplicateTool = errors.New("tool: duplicate tool name")
)

// Binding attaches one backend's whole catalog to the flow that must
// authorize it.
type Binding struct {
	// Backend serves the bound tools.
	Backend Backend

	// Flow is the authorization flow for every tool in the catalog.
	Flow Flow

	// AudienceKey names the exchange audience the flow draws from.
	AudienceKey string

	// Connection names the vault connection, for FlowCrossAppVault.
	Connection string
}

// Route is the resolved flow descriptor for one tool name.
type Route struct {
	Flow        Flow
	AudienceKey string
	Connection  string
	Backend     Backend
}

// Router resolves tool names to routes. It is built once at startup
// and read-only afterwards, so resolution is a pure lookup: the same
// name always yields the identical route.
type Router struct {
	routes      map[string]Route
	definitions []Definition
}

// NewRouter builds a router from the given bindings, validating that
// every flow carries the identifiers it needs and that tool names are
// globally unique.
func NewRouter(bindings []Binding) (*Router, error) {
	r := &Router{routes: make(map[string]Route)}

	for i, b := range bindings {
		if b.Backend == nil {
			return nil, fmt.Errorf("%w: binding %d has no backend", ErrInvalidBinding, i)
		}
		switch b.Flow {
		case FlowCrossApp:
			if b.AudienceKey == "" {
				return nil, fmt.Errorf("%w: backend %s needs an audience key", ErrInvalidBinding, b.Backend.Name())
			}
		case FlowCrossAppVault:
			if b.AudienceKey == "" || b.Connection == "" {
				return nil, fmt.Errorf("%w: backend %s needs an audience key and a connection", ErrInvalidBinding, b.Backend.Name())
			}
		default:
			return nil, fmt.Errorf("%w: backend %s has unroutable flow %s", ErrInvalidBinding, b.Backend.Name(), b.Flow)
		}

		for _, def := range b.Backend.Tools() {
			if def.Name == "" {
				return nil, fmt.Errorf("%w: backend %s exposes a nameless tool", ErrInvalidBinding, b.Backend.Name())
			}
			if _, exists := r.routes[def.Name]; exists {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, def.Name)
			}
			r.routes[def.Name] = Route{
				Flow:        b.Flow,
				AudienceKey: b.AudienceKey,
				Connection:  b.Connection,
				Backend:     b.Backend,
			}
			r.definitions = append(r.definitions, def)
		}
	}

	return r, nil
}

// Resolve returns the route for a tool name. It must be consulted
// before every tool execution.
func (r *Router) Resolve(name string) (Route, error) {
	route, ok := r.routes[name]
	if !ok {
		return Route{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return route, nil
}

// Definitions returns every bound tool definition in binding order.
func (r *Router) Definitions() []Definition {
	out := make([]Definition, len(r.definitions))
	copy(out, r.definitions)
	return out
}

// Len returns the number of bound tools.
func (r *Router) Len() int {
	return len(r.routes)
}
