// Package client lets other Go programs hand mail to impression.
//
// RemoteBackend posts each Email to a remote impression server's
// send_message endpoint. LocalBackend submits directly through an
// in-process message service. Both interpret a first "to" entry without an
// "@" as the target service name.
package client
