// Package shared holds the wire contract between the VaultKeeper server and
// its clients: the gRPC service and method names, the request and response
// messages, and the conversion of those messages to and from the
// google.protobuf.Struct values carried on the wire.
package shared

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "vaultkeeper.v1.VaultKeeper"

// Method names of the VaultKeeper service.
const (
	MethodSignIn               = "SignIn"
	MethodPing                 = "Ping"
	MethodRecordAccessEvent    = "RecordAccessEvent"
	MethodGetThreatAssessment  = "GetThreatAssessment"
	MethodSubmitDualKey        = "SubmitDualKey"
	MethodDecideDualKey        = "DecideDualKey"
	MethodResolveDualKey       = "ResolveDualKey"
	MethodListPendingDualKey   = "ListPendingDualKey"
	MethodRequestTransfer      = "RequestTransfer"
	MethodAcceptTransfer       = "AcceptTransfer"
	MethodCancelTransfer       = "CancelTransfer"
	MethodRequestEmergency     = "RequestEmergency"
	MethodAssessEmergency      = "AssessEmergency"
	MethodApproveEmergency     = "ApproveEmergency"
	MethodDenyEmergency        = "DenyEmergency"
	MethodVerifyEmergencyPass  = "VerifyEmergencyPass"
	MethodConsumeEmergencyPass = "ConsumeEmergencyPass"
	MethodInviteNominee        = "InviteNominee"
	MethodAcceptNominee        = "AcceptNominee"
	MethodSetNomineeStatus     = "SetNomineeStatus"
	MethodDeleteAccount        = "DeleteAccount"
)

// FullMethod returns the "/service/method" path used by gRPC.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// PublicMethods can be called without an access token.
var PublicMethods = map[string]bool{
	FullMethod(MethodSignIn): true,
	FullMethod(MethodPing):   true,
}
