package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound and outbound calls.
const AccessTokenHeaderName = "access_token"

// DeletedAccountSuffix is appended to the display name stored on access
// events generated by a user whose account has been deleted.
const DeletedAccountSuffix = " (Account Deleted)"

// RoleAdmin grants the right to approve emergency access on any vault.
const RoleAdmin = "admin"
