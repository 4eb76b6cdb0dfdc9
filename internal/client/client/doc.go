// Package client is the gRPC client of the VaultKeeper server used by the
// vaultctl admin CLI.
//
// GRPCClient sends shared request messages as google.protobuf.Struct values
// over a plain grpc.ClientConn, attaches the access token to every call
// through a unary interceptor, and maps gRPC status codes back to sentinel
// errors (ErrUnavailable, ErrUnauthorized and the common engine errors) so
// callers can match them with errors.Is.
package client
