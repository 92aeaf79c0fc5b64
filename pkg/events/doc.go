/*
Package events is an in-memory pub/sub bus used to fan out cluster and
resource state changes to interested subscribers. The coordinator and the
reaper publish to it; no package in this module subscribes. Publish blocks
only while the broker's input channel is full.

A Broker buffers published events on a single channel, then broadcasts each
one to every subscriber's own buffered channel; a subscriber whose buffer is
full skips that event rather than stalling the broker. Delivery is best
effort — nothing here is a system of record, so callers that need durability
should read from the state store instead.

	broker := events.NewBroker()
	broker.Start()
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	broker.Publish(&events.Event{Type: events.EventLeaseAcquired, Message: "..."})
*/
package events
