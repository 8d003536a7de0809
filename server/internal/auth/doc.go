// Package auth provides authentication middleware for omnistream-server.
//
// APIKeyStreamInterceptor(mode, header, key) returns a gRPC
// StreamServerInterceptor that validates the API key from the named metadata
// header when a telemetry stream opens. APIKeyMiddleware applies the same key
// to the REST API, using header as the HTTP header name.
//
// When mode != "apikey" or key == "", everything passes through (useful for
// local development with auth disabled). When the key is incorrect or absent
// the stream ends with codes.Unauthenticated and REST calls get 401.
package auth
