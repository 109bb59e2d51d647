package controller_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hazyhaar/viswatch/controller"
	"github.com/hazyhaar/viswatch/controller/controllertest"
	"github.com/hazyhaar/viswatch/geometry"
	"github.com/hazyhaar/viswatch/locator"
)

func TestResolve(t *testing.T) {
	f := controllertest.New(&controllertest.Doc{
		Name:     "top",
		Elements: map[string]geometry.Box{"css:.nav>a": {Right: 5, Bottom: 5}},
	})
	ctx := context.Background()

	loc, el, err := controller.Resolve(ctx, f, "css=.nav>a")
	if err != nil {
		t.Fatal(err)
	}
	if loc.Strategy != locator.CSS || el == nil {
		t.Fatalf("got %v %v", loc, el)
	}

	loc, _, err = controller.Resolve(ctx, f, "id:missing")
	if !errors.Is(err, controller.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if loc.Strategy != locator.ID {
		t.Fatalf("locator of a miss: got %v", loc)
	}

	if _, _, err = controller.Resolve(ctx, f, "bogus:x"); !errors.Is(err, locator.ErrUnknownStrategy) {
		t.Fatalf("got %v, want ErrUnknownStrategy", err)
	}
}
