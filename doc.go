// Package vcr provides the HTTP transport layer of a REST client together
// with a record/replay cache for deterministic offline tests.
//
// Requests and responses are expressed with a transport-agnostic model
// (Request, Response, Body) and exchanged through the Sender interface.
// HTTPSender talks to the network. Replayer sits in front of it in tests and
// serves responses from a Cassette: an ordered list of recorded interactions
// that are replayed strictly in the order they were recorded, persisted as
// an indented JSON file.
//
// A Cassette belongs to a single test session and is not safe for concurrent
// use.
package vcr
