package handler

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoResponse is returned when the route handler, which must always answer,
// produced neither a response nor an error.
var ErrNoResponse = errors.New("route handler produced no response")

// Info describes one handler of a chain for listings.
type Info struct {
	Name     string `json:"name"`
	Prefix   string `json:"prefix,omitempty"`
	Fallback bool   `json:"fallback"`
}

// Chain offers a request to mount handlers in registration order and falls
// back to the route handler. It is not modified after construction and is
// safe for concurrent use.
type Chain struct {
	mounts []Handler
	route  Handler
}

// NewChain builds a chain. Mounts are tried in the given order (media before
// static by convention) and nil mounts are skipped; route is always last.
func NewChain(route Handler, mounts ...Handler) *Chain {
	c := &Chain{route: route}
	for _, m := range mounts {
		if m != nil {
			c.mounts = append(c.mounts, m)
		}
	}
	return c
}

// Dispatch returns the first non-declined response and the name of the
// handler that produced it. Handler errors are returned unchanged.
func (c *Chain) Dispatch(ctx context.Context, req Request) (*Response, string, error) {
	for _, m := range c.mounts {
		resp, err := m.Handle(ctx, req)
		if err != nil {
			return nil, m.Name(), err
		}
		if resp != nil {
			return resp, m.Name(), nil
		}
	}

	if c.route == nil {
		return nil, "", fmt.Errorf("dispatch %q: %w", req.Path, ErrNoResponse)
	}
	resp, err := c.route.Handle(ctx, req)
	if err != nil {
		return nil, c.route.Name(), err
	}
	if resp == nil {
		return nil, c.route.Name(), fmt.Errorf("dispatch %q: %w", req.Path, ErrNoResponse)
	}
	return resp, c.route.Name(), nil
}

// List returns the handlers in the order they are offered a request.
func (c *Chain) List() []Info {
	infos := make([]Info, 0, len(c.mounts)+1)
	for _, m := range c.mounts {
		info := Info{Name: m.Name()}
		if p, ok := m.(interface{ Prefix() string }); ok {
			info.Prefix = p.Prefix()
		}
		infos = append(infos, info)
	}
	if c.route != nil {
		infos = append(infos, Info{Name: c.route.Name(), Fallback: true})
	}
	return infos
}
