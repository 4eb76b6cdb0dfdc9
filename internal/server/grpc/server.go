package grpc

import (
	"context"
	"fmt"
	"net"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/services"
	"google.golang.org/grpc"
)

type AuthService interface {
	SignIn(ctx context.Context, in services.SignInInput) (*services.SignInResult, error)
}

type ThreatService interface {
	RecordEvent(ctx context.Context, userID string, ev models.AccessEvent) (*models.AccessEvent, error)
	Assess(ctx context.Context, vaultID, userID string) (*services.ThreatReport, error)
}

type DualKeyService interface {
	Submit(ctx context.Context, vaultID, requesterID string) (*models.DualKeyRequest, error)
	Decide(ctx context.Context, requestID string) (*models.DualKeyRequest, error)
	DecideManually(ctx context.Context, requestID string, approve bool, approverID string) (*models.DualKeyRequest, error)
	ListPending(ctx context.Context, vaultID, userID string) ([]*models.DualKeyRequest, error)
}

type TransferService interface {
	Request(ctx context.Context, in services.TransferInput) (*models.VaultTransferRequest, string, error)
	Accept(ctx context.Context, token, acceptorID string) (*models.VaultTransferRequest, error)
	Cancel(ctx context.Context, requestID, ownerID string) error
}

type EmergencyService interface {
	Request(ctx context.Context, in services.EmergencyInput) (*models.EmergencyAccessRequest, error)
	Assess(ctx context.Context, requestID, userID string) (*services.EmergencyAssessment, error)
	Approve(ctx context.Context, requestID, approverID string) (*models.EmergencyAccessRequest, string, error)
	Deny(ctx context.Context, requestID, approverID string) (*models.EmergencyAccessRequest, error)
	VerifyPass(ctx context.Context, code, vaultID string) (*models.EmergencyAccessRequest, error)
	ConsumePass(ctx context.Context, code, vaultID string) (*models.EmergencyAccessRequest, error)
}

type NomineeService interface {
	Invite(ctx context.Context, vaultID, inviterID, name, email string) (*models.Nominee, string, error)
	AcceptInvite(ctx context.Context, token, userID string) (*models.Nominee, error)
	SetStatus(ctx context.Context, nomineeID, actorID string, status models.NomineeStatus) (*models.Nominee, error)
}

type DeletionService interface {
	DeleteAccount(ctx context.Context, userID string) (*services.DeletionSummary, error)
}

// Services are the engines served over gRPC. All of them are required.
type Services struct {
	Auth      AuthService
	Threats   ThreatService
	DualKey   DualKeyService
	Transfers TransferService
	Emergency EmergencyService
	Nominees  NomineeService
	Deletion  DeletionService
}

func (s Services) validate() error {
	switch {
	case s.Auth == nil, s.Threats == nil, s.DualKey == nil, s.Transfers == nil,
		s.Emergency == nil, s.Nominees == nil, s.Deletion == nil:
		return fmt.Errorf("%w: grpc server needs every service", common.ErrorConfiguration)
	}
	return nil
}

type GRPCServer struct {
	address   string
	svc       Services
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, svc Services, secretKey string) (*GRPCServer, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: nil logger", common.ErrorConfiguration)
	}
	if err := svc.validate(); err != nil {
		return nil, err
	}
	return &GRPCServer{
		address:   a,
		svc:       svc,
		logger:    l.With("module", "grpc_server"),
		jwtSecret: []byte(secretKey),
	}, nil
}

// newServer creates the grpc.Server with the interceptor chain and the
// VaultKeeper service registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.metricsInterceptor, s.accessTokenInterceptor))
	srv.RegisterService(&serviceDesc, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
