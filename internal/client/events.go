package client

type commandKind int

const (
	cmdConnect commandKind = iota
	cmdDisconnect
	cmdClear
)

type command struct {
	kind commandKind
	done chan struct{}
}

// event is an input to the client loop. Every event carries the generation of
// the connection attempt it belongs to; events from older generations are
// discarded.
type event interface {
	generation() uint64
}

type opened struct {
	gen  uint64
	conn Conn
}

type errorOccurred struct {
	gen uint64
	err error
}

type messageReceived struct {
	gen  uint64
	data []byte
}

type closed struct {
	gen uint64
	err error
}

type reconnectDue struct {
	gen uint64
}

func (e opened) generation() uint64          { return e.gen }
func (e errorOccurred) generation() uint64   { return e.gen }
func (e messageReceived) generation() uint64 { return e.gen }
func (e closed) generation() uint64          { return e.gen }
func (e reconnectDue) generation() uint64    { return e.gen }
