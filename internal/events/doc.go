// Package events carries task status transitions from the components that
// commit them to whoever wants to observe them.
//
// Emission happens after the transaction commits, so handlers only ever see
// durable state and a failing handler cannot undo a transition.
package events
