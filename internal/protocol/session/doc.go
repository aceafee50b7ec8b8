// Package session owns the turn barrier that both peers run over a framed channel.
//
// Ownership boundary:
// - sender role: emit a turn of Data, then TurnEnd, then wait for the echoed barrier
// - echo role: relay Data unchanged, acknowledge TurnEnd and Stop
// - wait/backoff policy for channels that report would-block
//
// Both engines borrow their Conn; closing it stays with the caller.
package session
