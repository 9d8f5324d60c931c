package agent

import (
	"errors"
	"testing"
	"time"

	"github.com/go-rod/rod"

	appErrors "github.com/unclebandit/chatleopard-backend/internal/errors"
)

// fakeFinder answers from a fixed selector -> element table and records the
// order selectors were probed in.
type fakeFinder struct {
	present map[string]bool
	probed  []string
}

func (f *fakeFinder) find(selector string) (*rod.Element, error) {
	f.probed = append(f.probed, selector)
	if f.present[selector] {
		return &rod.Element{}, nil
	}
	return nil, errors.New("not found")
}

func TestResolveTriesStrategiesInOrder(t *testing.T) {
	loc := Locator{
		Affordance: "test affordance",
		Strategies: []Strategy{
			{"primary", "div.primary"},
			{"fallback", "div.fallback"},
		},
	}
	finder := &fakeFinder{present: map[string]bool{"div.fallback": true}}

	el, err := Resolve(loc, finder.find, time.Millisecond, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if el == nil {
		t.Fatal("expected an element from the fallback strategy")
	}

	if len(finder.probed) < 2 || finder.probed[0] != "div.primary" || finder.probed[1] != "div.fallback" {
		t.Errorf("probe order wrong: %v", finder.probed)
	}
}

func TestResolvePrimaryWinsWithoutFallbackHit(t *testing.T) {
	loc := Locator{
		Affordance: "test affordance",
		Strategies: []Strategy{
			{"primary", "div.primary"},
			{"fallback", "div.fallback"},
		},
	}
	finder := &fakeFinder{present: map[string]bool{"div.primary": true}}

	if _, err := Resolve(loc, finder.find, time.Millisecond, 100*time.Millisecond); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(finder.probed) != 1 {
		t.Errorf("primary match should stop probing, probed %v", finder.probed)
	}
}

func TestResolveTimesOutWithElementNotFound(t *testing.T) {
	loc := Locator{
		Affordance: "missing thing",
		Strategies: []Strategy{{"only", "div.never"}},
	}
	finder := &fakeFinder{present: map[string]bool{}}

	_, err := Resolve(loc, finder.find, time.Millisecond, 20*time.Millisecond)
	var notFound *appErrors.ErrElementNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrElementNotFound, got %v", err)
	}
	if notFound.Affordance != "missing thing" {
		t.Errorf("affordance = %q", notFound.Affordance)
	}
	if len(finder.probed) < 2 {
		t.Errorf("expected repeated polling before timeout, probed %d times", len(finder.probed))
	}
}

func TestResolveOnceReportsAbsence(t *testing.T) {
	finder := &fakeFinder{present: map[string]bool{}}
	if _, ok := ResolveOnce(LocStatusIcon, finder.find); ok {
		t.Fatal("absence must be a valid answer, not an error")
	}
	if len(finder.probed) != len(LocStatusIcon.Strategies) {
		t.Errorf("each strategy probed exactly once, got %v", finder.probed)
	}
}
