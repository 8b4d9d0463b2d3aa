/*
Package caregraph routes the turns of a patient conversation among a fixed
set of specialized responders and streams the result as an ordered sequence
of events.

# Concept

A clinic front desk is modeled as a small static graph: Triage is the hub
and the initial responder of every thread; Clinical, Scheduling and Billing
are specialists. Each user message is classified into a capability tag by a
pluggable reasoning engine, and the Engine moves the thread along legal edges
of the graph to the responder declaring that capability. Handoffs that have
no direct edge go through the hub.

Every turn produces one event stream: a thread_id event on the first turn of
a thread, one agent_event per applied handoff, then the reply as token events
(or a single message event), possibly ended by an error event.

# Usage

	eng, err := caregraph.New(rules.New(0))
	if err != nil {
		log.Fatal(err)
	}

	res, err := eng.Turn(ctx, caregraph.TurnRequest{Message: "my knee hurts"}, func(ev domain.Event) error {
		fmt.Printf("%s %s%s\n", ev.Type, ev.Agent, ev.Content)
		return nil
	})

The pkg/adapters/http package serves the same stream as NDJSON over HTTP and
over a WebSocket; pkg/client consumes it.
*/
package caregraph
