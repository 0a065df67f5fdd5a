// Package event provides the in-process publish/subscribe bus that
// decouples trigger sources from the automation engine.
//
// Events are typed by dot-segmented topic strings (e.g. "trigger.fired",
// "workflow.completed"). Subscriptions match topics exactly or with a
// single wildcard segment:
//
//   - "workflow.*" matches any topic beginning with "workflow."
//   - "*.error" matches any topic ending with ".error"
//   - "*" matches every topic
//
// Each subscription owns a bounded queue and a worker goroutine, so a
// single subscription observes events in publish order (FIFO) while
// distinct subscriptions run concurrently. A handler that fails or
// panics is isolated: the failure is logged and counted, and delivery
// to other subscriptions is unaffected. There is no redelivery -
// dispatch is at-most-once per subscription per event.
//
// Subscribing the same handler twice - under the same pattern or under
// two patterns that both match a topic - is deliberately not
// deduplicated: every matching subscription fires once per publish.
package event
