// Package bridge exposes named operations to an external controller.
//
// A Bridge is a registry of handlers keyed by method name. Each handler takes
// positional JSON parameters and returns one JSON-encodable result. The
// microcontroller side only ever sees "call log_data with two integers, get a
// boolean back"; how the call travels is the transport's business.
//
// # Transport
//
// The HTTP transport mounts every method at POST /rpc/{method}:
//
//	curl -X POST http://localhost:8090/rpc/log_data -d '{"params":[1,0]}'
//	{"result":true}
//
// Unknown methods answer 404, malformed bodies 400, handler errors 500. All
// failures carry {"error": "..."}.
//
// Client is the matching caller, used by the viewer to reach clear_log.
package bridge
