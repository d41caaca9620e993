// Package ecs bridges mapview click events into a [Donburi] world as typed
// events.
//
// Usage:
//
//	store := ecs.NewDonburiStore(world)
//	vp.SetEntityStore(store)
//	ecs.ClickEventType.Subscribe(world, onMapClick)
//
// Call ClickEventType.ProcessEvents(world) from your ECS update to deliver
// queued clicks.
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
