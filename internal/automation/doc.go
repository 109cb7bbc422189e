// Package automation holds the rule engine that sits between sensor events
// and actuator transitions.
//
// The StateMachine evaluates per-event hooks (bedroom mode, wicket gate
// arming and confirmation, tag side effects, cesspool aggregation) and turns
// them into queued Tasks or collaborator intents. It owns no hardware; the
// onewire control loop calls it while holding the device registry lock.
//
// Outbound collaborators (metrics, display, alarm panel, shell) are small
// fire-and-forget interfaces. Implementations must never block the caller.
package automation
