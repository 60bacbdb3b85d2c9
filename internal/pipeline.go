package internal

import (
	"fmt"
	"net/http"
)

// runPipeline walks the module chain for one request.
//
// On POST every action runs first, in chain order, then every loader runs in
// chain order, so a redisplay after a mutation reads the mutated state.
// It returns the populated tree, or a terminal result (a redirect, or the
// response of a data-only leaf) that ends the request.
func runPipeline(c Context, chain []*Module) (*Tree, *Result, error) {
	tree := newTree(chain, c.Vars())
	mutating := c.Request().Method == http.MethodPost
	last := len(chain) - 1

	if mutating {
		for i, m := range chain {
			if m.Action == nil {
				continue
			}
			res, terminal, err := runHook(c, m, m.Action, "action", mutating, i == last)
			if err != nil || terminal {
				return nil, terminalResult(res, terminal), err
			}
			tree.Nodes[i].ActionData = res.Data
			if res.Status != 0 {
				tree.Status = res.Status
			}
		}
	}

	for i, m := range chain {
		if m.Loader == nil {
			continue
		}
		res, terminal, err := runHook(c, m, m.Loader, "loader", mutating, i == last)
		if err != nil || terminal {
			return nil, terminalResult(res, terminal), err
		}
		tree.Nodes[i].LoaderData = res.Data
		if res.Status != 0 {
			tree.Status = res.Status
		}
	}

	return tree, nil, nil
}

func terminalResult(res Result, terminal bool) *Result {
	if !terminal {
		return nil
	}
	return &res
}

// runHook invokes one hook and applies the headers it returned.
//
// Set-Cookie values are queued on the outgoing headers. While handling a
// POST they are also merged into the inbound request so later hooks of the
// same pipeline read their own writes. terminal is true for redirects and
// for any result of a data-only leaf.
func runHook(c Context, m *Module, hook Hook, phase string, mutating, leaf bool) (Result, bool, error) {
	if err := c.Context().Err(); err != nil {
		return Result{}, false, err
	}

	res, err := hook(c)
	if err != nil {
		return Result{}, false, fmt.Errorf("%s %s: %w", m.ID, phase, err)
	}

	for key, values := range res.Header() {
		if key == "Set-Cookie" {
			continue
		}
		c.Headers()[key] = values
	}
	for _, setCookie := range res.Cookies() {
		if mutating && !res.IsRedirect() {
			if err := c.MergeCookie(setCookie); err != nil {
				return Result{}, false, fmt.Errorf("%s %s: merge cookie: %w", m.ID, phase, err)
			}
		}
		c.AddCookie(setCookie)
	}

	if res.IsRedirect() {
		return res, true, nil
	}
	if leaf && m.IsDataOnly() {
		return res, true, nil
	}
	return res, false, nil
}

// writeResult sends a terminal result.
// Headers were already queued on the context by runHook.
func writeResult(c Context, res Result) error {
	status := res.Status
	if res.IsRedirect() {
		if status == 0 {
			status = http.StatusFound
		}
		return c.Redirect(status, res.Location)
	}
	if status == 0 {
		status = http.StatusOK
	}
	return c.JSON(status, res.Data)
}
