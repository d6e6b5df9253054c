package common

// AuthorizationHeaderName carries the admin bearer token on API requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in AuthorizationHeaderName.
const BearerPrefix = "Bearer "

// DefaultTerminalPort is the factory command port of the supported terminals.
const DefaultTerminalPort = 4370
