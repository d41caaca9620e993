package ecs

import (
	"github.com/phanxgames/mapview"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// ClickEventType carries map clicks into a Donburi world. Each event holds
// the clicked map coordinate (after the viewport's origin shift) and, when a
// marker was under the pointer, the marker layer and item. Clicks that hit
// nothing are published too, with nil Layer and Item, so systems can react
// to clicks on empty map.
var ClickEventType = events.NewEventType[mapview.ClickEvent]()

// donburiStore publishes on the loop goroutine; delivery waits for the
// world's next ProcessEvents.
type donburiStore struct {
	world donburi.World
}

// NewDonburiStore returns a mapview.EntityStore for Viewport.SetEntityStore.
// Every Viewport.Click reaches it after the marker callback and
// Options.OnClick. With a MapGesture driving input, single clicks arrive
// once the double-click window closes and double clicks, which zoom the
// map, are not published.
func NewDonburiStore(world donburi.World) mapview.EntityStore {
	return &donburiStore{world: world}
}

// EmitClick implements mapview.EntityStore.
func (s *donburiStore) EmitClick(event mapview.ClickEvent) {
	ClickEventType.Publish(s.world, event)
}
