package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/auth"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/services"
	"github.com/dmitrijs2005/vaultkeeper/internal/shared"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

const testSecret = "test-secret"

var testNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

// ---- fakes ----

type fakeAuth struct {
	res *services.SignInResult
	err error
	got services.SignInInput
}

func (f *fakeAuth) SignIn(_ context.Context, in services.SignInInput) (*services.SignInResult, error) {
	f.got = in
	return f.res, f.err
}

type fakeThreats struct {
	event    *models.AccessEvent
	report   *services.ThreatReport
	err      error
	gotUser  string
	gotVault string
	gotEvent models.AccessEvent
}

func (f *fakeThreats) RecordEvent(_ context.Context, userID string, ev models.AccessEvent) (*models.AccessEvent, error) {
	f.gotUser, f.gotEvent = userID, ev
	return f.event, f.err
}

func (f *fakeThreats) Assess(_ context.Context, vaultID, userID string) (*services.ThreatReport, error) {
	f.gotUser, f.gotVault = userID, vaultID
	return f.report, f.err
}

type fakeDualKey struct {
	req        *models.DualKeyRequest
	list       []*models.DualKeyRequest
	err        error
	gotApprove bool
	gotUser    string
}

func (f *fakeDualKey) Submit(_ context.Context, _, requesterID string) (*models.DualKeyRequest, error) {
	f.gotUser = requesterID
	return f.req, f.err
}

func (f *fakeDualKey) Decide(context.Context, string) (*models.DualKeyRequest, error) {
	return f.req, f.err
}

func (f *fakeDualKey) DecideManually(_ context.Context, _ string, approve bool, approverID string) (*models.DualKeyRequest, error) {
	f.gotApprove, f.gotUser = approve, approverID
	return f.req, f.err
}

func (f *fakeDualKey) ListPending(_ context.Context, _, userID string) ([]*models.DualKeyRequest, error) {
	f.gotUser = userID
	return f.list, f.err
}

type fakeTransfers struct {
	req   *models.VaultTransferRequest
	token string
	err   error
	got   services.TransferInput
}

func (f *fakeTransfers) Request(_ context.Context, in services.TransferInput) (*models.VaultTransferRequest, string, error) {
	f.got = in
	return f.req, f.token, f.err
}

func (f *fakeTransfers) Accept(context.Context, string, string) (*models.VaultTransferRequest, error) {
	return f.req, f.err
}

func (f *fakeTransfers) Cancel(context.Context, string, string) error {
	return f.err
}

type fakeEmergency struct {
	req        *models.EmergencyAccessRequest
	assessment *services.EmergencyAssessment
	code       string
	err        error
	gotCode    string
	gotUser    string
}

func (f *fakeEmergency) Request(_ context.Context, in services.EmergencyInput) (*models.EmergencyAccessRequest, error) {
	f.gotUser = in.RequesterID
	return f.req, f.err
}

func (f *fakeEmergency) Assess(context.Context, string, string) (*services.EmergencyAssessment, error) {
	return f.assessment, f.err
}

func (f *fakeEmergency) Approve(_ context.Context, _, approverID string) (*models.EmergencyAccessRequest, string, error) {
	f.gotUser = approverID
	return f.req, f.code, f.err
}

func (f *fakeEmergency) Deny(context.Context, string, string) (*models.EmergencyAccessRequest, error) {
	return f.req, f.err
}

func (f *fakeEmergency) VerifyPass(_ context.Context, code, _ string) (*models.EmergencyAccessRequest, error) {
	f.gotCode = code
	return f.req, f.err
}

func (f *fakeEmergency) ConsumePass(_ context.Context, code, _ string) (*models.EmergencyAccessRequest, error) {
	f.gotCode = code
	return f.req, f.err
}

type fakeNominees struct {
	nominee   *models.Nominee
	token     string
	err       error
	gotStatus models.NomineeStatus
}

func (f *fakeNominees) Invite(context.Context, string, string, string, string) (*models.Nominee, string, error) {
	return f.nominee, f.token, f.err
}

func (f *fakeNominees) AcceptInvite(context.Context, string, string) (*models.Nominee, error) {
	return f.nominee, f.err
}

func (f *fakeNominees) SetStatus(_ context.Context, _, _ string, status models.NomineeStatus) (*models.Nominee, error) {
	f.gotStatus = status
	return f.nominee, f.err
}

type fakeDeletion struct {
	sum     *services.DeletionSummary
	err     error
	gotUser string
}

func (f *fakeDeletion) DeleteAccount(_ context.Context, userID string) (*services.DeletionSummary, error) {
	f.gotUser = userID
	return f.sum, f.err
}

type fakes struct {
	auth      *fakeAuth
	threats   *fakeThreats
	dualKey   *fakeDualKey
	transfers *fakeTransfers
	emergency *fakeEmergency
	nominees  *fakeNominees
	deletion  *fakeDeletion
}

func newFakes() *fakes {
	return &fakes{
		auth:      &fakeAuth{},
		threats:   &fakeThreats{},
		dualKey:   &fakeDualKey{},
		transfers: &fakeTransfers{},
		emergency: &fakeEmergency{},
		nominees:  &fakeNominees{},
		deletion:  &fakeDeletion{},
	}
}

func (f *fakes) all() Services {
	return Services{
		Auth:      f.auth,
		Threats:   f.threats,
		DualKey:   f.dualKey,
		Transfers: f.transfers,
		Emergency: f.emergency,
		Nominees:  f.nominees,
		Deletion:  f.deletion,
	}
}

// ---- helpers ----

func newTestServer(t *testing.T, f *fakes) *GRPCServer {
	t.Helper()
	s, err := NewGRPCServer("127.0.0.1:0", logging.Nop{}, f.all(), testSecret)
	require.NoError(t, err)
	return s
}

// dial serves s over an in-memory listener and returns a client connection.
func dial(t *testing.T, s *GRPCServer) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		require.NoError(t, <-done)
	})
	return conn
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return token
}

func invoke(ctx context.Context, conn *grpc.ClientConn, method, token string, req, resp any) error {
	in, err := shared.Encode(req)
	if err != nil {
		return err
	}
	if token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, token)
	}
	out := &structpb.Struct{}
	if err := conn.Invoke(ctx, shared.FullMethod(method), in, out); err != nil {
		return err
	}
	return shared.Decode(out, resp)
}

func withOutgoingToken(t *testing.T, userID string) context.Context {
	t.Helper()
	return metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, tokenFor(t, userID))
}
