// Package ws implements the WebSocket hub for omnistream-server.
//
// Hub manages a set of connected clients and broadcasts the live fleet
// snapshot to all of them every broadcast_interval (default 1s).
//
// Message format sent to clients:
//
//	{
//	  "event": "snapshot",
//	  "data":  { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// The upgrader accepts all origins. The server mounts the hub at /ws/stream.
package ws
