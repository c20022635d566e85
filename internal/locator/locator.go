// Package locator resolves UI element handles from names through an
// ordered chain of strategies.
package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/logging"
	"github.com/OpenVisualCloud/VDI-Toolkit/internal/platform"
)

// ErrNotFound is returned by Resolve when every strategy misses.
var ErrNotFound = errors.New("element not found")

// Scope is what a strategy may search.
type Scope struct {
	Session platform.Session

	// Remote is true when the endpoint is not on this host. The scan
	// strategy only runs against remote endpoints.
	Remote bool

	// WindowClass, when set, restricts the scan strategy to elements of
	// that class.
	WindowClass string
}

// Strategy is one way of finding an element by name. Find returns a
// nil element and nil error on a clean miss; a non-nil error reports a
// failed lookup, which the resolver also treats as a miss.
type Strategy interface {
	Name() string
	Find(ctx context.Context, scope Scope, name string) (platform.Element, error)
}

// Match is a resolved element and the strategy that found it.
type Match struct {
	Element  platform.Element
	Strategy string
}

// Resolver evaluates strategies in order; the first hit wins.
type Resolver struct {
	strategies []Strategy
	logger     *slog.Logger
}

// DefaultStrategies is the fixed resolution order: accessible name,
// then class name, then the remote attribute scan.
func DefaultStrategies() []Strategy {
	return []Strategy{
		Lookup{By: platform.ByName},
		Lookup{By: platform.ByClassName},
		Scan{},
	}
}

// New returns a Resolver over strategies, or DefaultStrategies when none
// are given. A nil logger discards.
func New(logger *slog.Logger, strategies ...Strategy) *Resolver {
	logger = logging.Discard(logger)
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Resolver{strategies: strategies, logger: logger}
}

// Resolve returns the first strategy's match for name.
func (r *Resolver) Resolve(ctx context.Context, scope Scope, name string) (Match, error) {
	if scope.Session == nil {
		return Match{}, fmt.Errorf("resolve %q: no session", name)
	}
	for _, s := range r.strategies {
		if err := ctx.Err(); err != nil {
			return Match{}, err
		}
		el, err := s.Find(ctx, scope, name)
		if err != nil {
			r.logger.Debug("locator strategy failed", "strategy", s.Name(), "name", name, "error", err)
			continue
		}
		if el != nil {
			r.logger.Debug("element resolved", "strategy", s.Name(), "name", name)
			return Match{Element: el, Strategy: s.Name()}, nil
		}
	}
	return Match{}, fmt.Errorf("resolve %q: %w", name, ErrNotFound)
}

// Lookup asks the endpoint to find the element with one By strategy.
type Lookup struct {
	By platform.By
}

func (l Lookup) Name() string { return string(l.By) }

func (l Lookup) Find(ctx context.Context, scope Scope, name string) (platform.Element, error) {
	el, err := scope.Session.FindElement(ctx, l.By, name)
	if errors.Is(err, platform.ErrNoSuchElement) {
		return nil, nil
	}
	return el, err
}

// Scan enumerates every element and matches name as a substring of its
// Name or ClassName attribute. With a window class in scope only
// elements of that class are considered, matched on Name.
type Scan struct{}

func (Scan) Name() string { return "scan" }

func (Scan) Find(ctx context.Context, scope Scope, name string) (platform.Element, error) {
	if !scope.Remote {
		return nil, nil
	}
	els, err := scope.Session.FindElements(ctx, platform.ByXPath, "//*")
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		class, err := el.Attribute(ctx, "ClassName")
		if err != nil {
			continue
		}
		if scope.WindowClass != "" && class != scope.WindowClass {
			continue
		}
		elName, err := el.Attribute(ctx, "Name")
		if err != nil {
			continue
		}
		if strings.Contains(elName, name) {
			return el, nil
		}
		if scope.WindowClass == "" && strings.Contains(class, name) {
			return el, nil
		}
	}
	return nil, nil
}
