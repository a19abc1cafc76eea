package channel

import "fmt"

// ErrTerminated is returned by any Channel operation attempted after
// Destroy, and delivered to every request still outstanding at the time
// Destroy runs.
var ErrTerminated = fmt.Errorf("channel: destroyed")

// ErrTransport wraps an error returned by the underlying adapter's Write,
// distinguishing a transport failure from a peer-reported RemoteError. A
// Read error is logged and ends the read loop; it is not wrapped.
var ErrTransport = fmt.Errorf("channel: transport error")
