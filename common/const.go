package common

// JSON-RPC method names.
const (
	MethodGetVersion  = "system.getVersion"
	MethodDo          = "queue.do"
	MethodStatus      = "queue.status"
	MethodCherryPick  = "queue.cherryPick"
	NotifyDo          = "queue.onDo"
	NotifyFinished    = "queue.onFinishedReport"
	DefaultRPCPort    = 9481
	DefaultRPCPattern = "/jsonrpc/ws"
)
