package main

// Transport is the capability the simulation needs from whatever channel
// reaches a device: best-effort delivery of one structured message. The
// relay's websocket clients implement it; tests substitute recorders.
// The simulation never implements acknowledgement or retry — the channel
// is presumed ordered and reliable once connected.
type Transport interface {
	Send(msg any)
}

// nullTransport swallows messages for sessions whose connection is gone.
type nullTransport struct{}

func (nullTransport) Send(any) {}
