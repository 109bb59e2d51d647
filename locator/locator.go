// Package locator parses user-supplied element selectors into a fixed set
// of lookup strategies.
//
// Accepted forms:
//
//	//div[@id='x']      xpath (anything starting with "//")
//	id:submit-btn       prefix and value split on the first ':'
//	css=.nav>a          or on the first '=' when ':' yields no known prefix
package locator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStrategy is returned when a selector carries no recognised prefix.
var ErrUnknownStrategy = errors.New("locator: unknown locator strategy")

// Strategy is a lookup strategy. The set is closed.
type Strategy int

const (
	XPath Strategy = iota + 1
	ID
	Class
	CSS
)

// Strategies lists every strategy in prefix-matching order.
var Strategies = []Strategy{XPath, ID, Class, CSS}

func (s Strategy) String() string {
	switch s {
	case XPath:
		return "xpath"
	case ID:
		return "id"
	case Class:
		return "class"
	case CSS:
		return "css"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// Query returns a JavaScript expression selecting the first matching node of
// the current document. The raw selector is bound to the variable v, so
// callers pass it as a script argument instead of splicing it into source.
func (s Strategy) Query() string {
	switch s {
	case XPath:
		return `document.evaluate(v, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue`
	case ID:
		return `document.getElementById(v)`
	case Class:
		return `document.getElementsByClassName(v)[0]`
	case CSS:
		return `document.querySelector(v)`
	}
	panic("locator: query for invalid strategy " + s.String())
}

// ParseStrategy maps a prefix to its strategy.
func ParseStrategy(prefix string) (Strategy, bool) {
	for _, s := range Strategies {
		if s.String() == prefix {
			return s, true
		}
	}
	return 0, false
}

// Locator is an immutable (strategy, raw selector) pair.
type Locator struct {
	Strategy Strategy `json:"strategy"`
	Value    string   `json:"value"`
}

func (l Locator) String() string { return l.Strategy.String() + ":" + l.Value }

// Parse splits a selector into a Locator.
func Parse(selector string) (Locator, error) {
	if strings.HasPrefix(selector, "//") {
		return Locator{Strategy: XPath, Value: selector}, nil
	}

	var prefix string
	for _, sep := range []string{":", "="} {
		head, tail, _ := strings.Cut(selector, sep)
		prefix = strings.ToLower(strings.TrimSpace(head))
		if s, ok := ParseStrategy(prefix); ok {
			return Locator{Strategy: s, Value: strings.TrimSpace(tail)}, nil
		}
	}
	return Locator{}, fmt.Errorf("%w %q", ErrUnknownStrategy, prefix)
}

// ParseAll parses every selector, failing on the first invalid one.
func ParseAll(selectors []string) ([]Locator, error) {
	out := make([]Locator, 0, len(selectors))
	for _, sel := range selectors {
		l, err := Parse(sel)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}
