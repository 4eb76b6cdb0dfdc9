// Package cli implements the vaultctl commands on top of a VaultKeeper
// gRPC client. Each command prints the server's reply as indented JSON.
package cli
