// Package dispatch builds ranked carrier chains for transport orders and
// drives the offer protocol over them.
//
// A Generator filters the active carriers on hard constraints, flags those
// preferred on the order's lane, scores them and keeps the best ones as a
// chain of pending entries. A Manager then offers the order to one carrier
// at a time: SendToNext, ProcessResponse, Cancel and Escalate each apply a
// single conditional update to the order, so the chain state survives
// restarts and an order is never assigned twice. CheckTimeouts, usually run
// by a Sweeper, turns expired offers into timeouts.
package dispatch
