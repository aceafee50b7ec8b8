// Package protocol owns the record vocabulary of the turn transport.
//
// Ownership boundary:
// - record tags and their line encoding
// - parse and format of Data, TurnEnd and Stop records
//
// Framing (splitting a byte stream into lines) lives in protocol/frame.
// The turn barrier that interprets records lives in protocol/session.
package protocol
