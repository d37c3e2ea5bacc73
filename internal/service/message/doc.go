// Package message implements the delivery state machine.
//
// A message moves created -> ready -> attempted -> sent | failed. Creation
// is gated by the service's rate limit and JSON body policy. Marking a
// message ready triggers exactly one send attempt; every attempt runs while
// holding the message row lock and re-checks the state after locking, so
// concurrent API calls and re-drive sweeps never double-send.
//
// ready_to_send, sent and last_attempt only ever move forward. The final_*
// snapshot is written once, together with sent.
package message
