package client

import (
	"context"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/shared"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if s.accessToken != "" {
		ctx = withAccessToken(ctx, s.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewGRPCClient connects to endpointURL without TLS. Extra dial options are
// appended, which lets tests dial an in-memory listener.
func NewGRPCClient(endpointURL, accessToken string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

// SetAccessToken replaces the token sent with subsequent calls.
func (s *GRPCClient) SetAccessToken(token string) {
	s.accessToken = token
}

func (s *GRPCClient) call(ctx context.Context, method string, req, resp any) error {
	in, err := shared.Encode(req)
	if err != nil {
		return err
	}
	out := &structpb.Struct{}
	if err := s.conn.Invoke(ctx, shared.FullMethod(method), in, out); err != nil {
		return mapError(err)
	}
	return shared.Decode(out, resp)
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	var resp shared.PingResponse
	return s.call(ctx, shared.MethodPing, shared.Empty{}, &resp)
}

// SignIn signs in and keeps the returned access token for later calls.
func (s *GRPCClient) SignIn(ctx context.Context, externalID, fullName, email string) (*shared.SignInResponse, error) {
	var resp shared.SignInResponse
	req := shared.SignInRequest{ExternalID: externalID, FullName: fullName, Email: email}
	if err := s.call(ctx, shared.MethodSignIn, req, &resp); err != nil {
		return nil, err
	}
	s.accessToken = resp.AccessToken
	return &resp, nil
}

func (s *GRPCClient) ThreatAssessment(ctx context.Context, vaultID string) (*shared.ThreatAssessmentResponse, error) {
	var resp shared.ThreatAssessmentResponse
	if err := s.call(ctx, shared.MethodGetThreatAssessment, shared.VaultRequest{VaultID: vaultID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *GRPCClient) ApproveEmergency(ctx context.Context, requestID string) (*shared.EmergencyResponse, error) {
	var resp shared.EmergencyResponse
	if err := s.call(ctx, shared.MethodApproveEmergency, shared.RequestIDRequest{RequestID: requestID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *GRPCClient) DenyEmergency(ctx context.Context, requestID string) (*shared.EmergencyResponse, error) {
	var resp shared.EmergencyResponse
	if err := s.call(ctx, shared.MethodDenyEmergency, shared.RequestIDRequest{RequestID: requestID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *GRPCClient) VerifyPass(ctx context.Context, vaultID, passCode string) (*shared.EmergencyResponse, error) {
	var resp shared.EmergencyResponse
	req := shared.PassCodeRequest{VaultID: vaultID, PassCode: passCode}
	if err := s.call(ctx, shared.MethodVerifyEmergencyPass, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *GRPCClient) AcceptTransfer(ctx context.Context, token string) (*shared.TransferResponse, error) {
	var resp shared.TransferResponse
	if err := s.call(ctx, shared.MethodAcceptTransfer, shared.TokenRequest{Token: token}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *GRPCClient) DeleteAccount(ctx context.Context) (*shared.DeleteAccountResponse, error) {
	var resp shared.DeleteAccountResponse
	if err := s.call(ctx, shared.MethodDeleteAccount, shared.Empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
