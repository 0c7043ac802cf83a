// Package router implements the route registry: a trie keyed by path
// segment, built during a single-threaded load phase and read-only after
// sealing. Each leaf holds a command descriptor, either model-backed
// (dispatched through the provider registry) or free-form (a handler invoked
// directly with raw arguments).
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quantdesk/command-registry/pkg/registry"
)

const logPrefix = "router:router"

// Handler is the callable behind a free-form command. It receives the raw
// argument map; no schema validation or result-field mapping is applied.
type Handler func(ctx context.Context, args map[string]interface{}) (*registry.FetchResult, error)

// CommandKind discriminates the two command variants. The variant is fixed
// at registration time so dispatch never inspects types at runtime.
type CommandKind int

const (
	// ModelBacked commands carry a standard model name and are executed
	// through a provider binding.
	ModelBacked CommandKind = iota
	// FreeForm commands carry a handler invoked directly.
	FreeForm
)

// Command is a leaf in the route trie.
type Command struct {
	Path    string
	Kind    CommandKind
	Model   string  // ModelBacked only
	Handler Handler // FreeForm only
}

type node struct {
	children map[string]*node
	cmd      *Command
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// Router is the route registry. Registration happens through Command, Handle
// and Mount during extension loading; Seal freezes the trie for concurrent
// lock-free reads.
type Router struct {
	root   *node
	paths  []string // full paths in registration order
	sealed bool
}

// New creates an empty Router.
func New() *Router {
	return &Router{root: newNode()}
}

// Command registers a model-backed leaf at path. Fails with ROUTE_CONFLICT
// if the full path is already taken, REGISTRY_SEALED after Seal.
func (r *Router) Command(path, modelName string) *registry.Error {
	if modelName == "" {
		return registry.NewError(registry.CodeInvalidSchema,
			fmt.Sprintf("route %s: model name must not be empty", path))
	}
	return r.insert(&Command{Path: path, Kind: ModelBacked, Model: modelName})
}

// Handle registers a free-form leaf at path, same conflict rules as Command.
func (r *Router) Handle(path string, h Handler) *registry.Error {
	if h == nil {
		return registry.NewError(registry.CodeInvalidSchema,
			fmt.Sprintf("route %s: handler must not be nil", path))
	}
	return r.insert(&Command{Path: path, Kind: FreeForm, Handler: h})
}

// Mount composes a child router's routes under a prefix. Fails with
// ROUTE_CONFLICT if any resulting full path collides with an existing route.
// The check runs before any insertion, so a failed mount leaves the router
// unchanged.
func (r *Router) Mount(prefix string, sub *Router) *registry.Error {
	if r.sealed {
		return registry.NewError(registry.CodeRegistrySealed, "route registry is sealed, registration rejected")
	}
	if sub == nil {
		return registry.NewError(registry.CodeInvalidSchema,
			fmt.Sprintf("mount %s: sub-router must not be nil", prefix))
	}
	prefixSegs, err := SplitPath(prefix)
	if err != nil {
		return err
	}

	type pending struct {
		path string
		cmd  *Command
	}
	var moves []pending
	for _, subPath := range sub.paths {
		cmd, _ := sub.lookup(subPath)
		full := JoinPath(append(append([]string(nil), prefixSegs...), mustSplit(subPath)...))
		if _, found := r.lookup(full); found {
			return registry.NewError(registry.CodeRouteConflict,
				fmt.Sprintf("mount %s: route already registered: %s", prefix, full))
		}
		moves = append(moves, pending{path: full, cmd: cmd})
	}
	for _, m := range moves {
		mounted := *m.cmd
		mounted.Path = m.path
		if rerr := r.insert(&mounted); rerr != nil {
			return rerr
		}
	}
	slog.Debug(fmt.Sprintf("%s - mounted %d routes under %s", logPrefix, len(moves), prefix))
	return nil
}

// Resolve walks the trie and returns the command at path, or fails with
// ROUTE_NOT_FOUND.
func (r *Router) Resolve(path string) (*Command, *registry.Error) {
	cmd, found := r.lookup(path)
	if !found {
		return nil, registry.NewError(registry.CodeRouteNotFound,
			fmt.Sprintf("no route registered at %s", canonical(path)))
	}
	return cmd, nil
}

// Routes returns all full paths in registration order.
func (r *Router) Routes() []string {
	return append([]string(nil), r.paths...)
}

// Lookup returns the command at path without constructing an error value.
func (r *Router) Lookup(path string) (*Command, bool) {
	return r.lookup(path)
}

// Seal marks the router read-only. Subsequent Command, Handle and Mount
// calls fail with REGISTRY_SEALED.
func (r *Router) Seal() {
	r.sealed = true
}

// Sealed reports whether the router has been sealed.
func (r *Router) Sealed() bool {
	return r.sealed
}

func (r *Router) insert(cmd *Command) *registry.Error {
	if r.sealed {
		return registry.NewError(registry.CodeRegistrySealed, "route registry is sealed, registration rejected")
	}
	segs, err := SplitPath(cmd.Path)
	if err != nil {
		return err
	}
	cmd.Path = JoinPath(segs)

	n := r.root
	for _, seg := range segs {
		child, ok := n.children[seg]
		if !ok {
			child = newNode()
			n.children[seg] = child
		}
		n = child
	}
	if n.cmd != nil {
		return registry.NewError(registry.CodeRouteConflict,
			fmt.Sprintf("route already registered: %s", cmd.Path))
	}
	n.cmd = cmd
	r.paths = append(r.paths, cmd.Path)
	return nil
}

func (r *Router) lookup(path string) (*Command, bool) {
	segs, err := SplitPath(path)
	if err != nil {
		return nil, false
	}
	n := r.root
	for _, seg := range segs {
		child, ok := n.children[seg]
		if !ok {
			return nil, false
		}
		n = child
	}
	if n.cmd == nil {
		return nil, false
	}
	return n.cmd, true
}

// SplitPath splits a route path into segments, rejecting empty paths and
// empty segments.
func SplitPath(path string) ([]string, *registry.Error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, registry.NewError(registry.CodeInvalidSchema, "route path must not be empty")
	}
	segs := strings.Split(trimmed, "/")
	for _, seg := range segs {
		if seg == "" {
			return nil, registry.NewError(registry.CodeInvalidSchema,
				fmt.Sprintf("route path contains empty segment: %s", path))
		}
	}
	return segs, nil
}

// JoinPath builds the canonical "/a/b" form from segments.
func JoinPath(segs []string) string {
	return "/" + strings.Join(segs, "/")
}

func canonical(path string) string {
	if segs, err := SplitPath(path); err == nil {
		return JoinPath(segs)
	}
	return path
}

func mustSplit(path string) []string {
	segs, _ := SplitPath(path)
	return segs
}
