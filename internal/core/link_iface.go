package core

import "context"

// LinkConn is one open telemetry socket.
type LinkConn interface {
	// Run starts the read pump. onMessage gets every inbound message;
	// onClose fires exactly once when the socket ends, for whatever reason.
	Run(onMessage func([]byte), onClose func(error))
	// Close releases the socket. Safe to call more than once.
	Close() error
}

// LinkDialer opens telemetry sockets.
type LinkDialer interface {
	Dial(ctx context.Context) (LinkConn, error)
}
