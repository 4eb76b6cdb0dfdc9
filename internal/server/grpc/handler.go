package grpc

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/services"
	"github.com/dmitrijs2005/vaultkeeper/internal/shared"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// call decodes the request, runs fn with the authenticated user and encodes
// its reply.
func call[Req, Resp any](s *GRPCServer, ctx context.Context, method string, in *structpb.Struct, fn func(ctx context.Context, userID string, req *Req) (*Resp, error)) (*structpb.Struct, error) {
	var req Req
	if err := shared.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	userID, _ := userIDFromContext(ctx)

	resp, err := fn(ctx, userID, &req)
	if err != nil {
		return nil, s.toStatus(ctx, method, err)
	}

	out, err := shared.Encode(resp)
	if err != nil {
		return nil, s.toStatus(ctx, method, err)
	}
	return out, nil
}

func (s *GRPCServer) SignIn(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodSignIn, in, func(ctx context.Context, _ string, req *shared.SignInRequest) (*shared.SignInResponse, error) {
		res, err := s.svc.Auth.SignIn(ctx, services.SignInInput{
			ExternalID: req.ExternalID,
			FullName:   req.FullName,
			Email:      req.Email,
		})
		if err != nil {
			return nil, err
		}
		s.logger.Info(ctx, "Signed in", "user_id", res.User.ID, "orphans_purged", res.OrphansPurged)
		return &shared.SignInResponse{
			UserID:        res.User.ID,
			FullName:      res.User.FullName,
			AccessToken:   res.AccessToken,
			OrphansPurged: res.OrphansPurged,
		}, nil
	})
}

func (s *GRPCServer) Ping(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodPing, in, func(context.Context, string, *shared.Empty) (*shared.PingResponse, error) {
		return &shared.PingResponse{Status: "OK"}, nil
	})
}

func (s *GRPCServer) RecordAccessEvent(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodRecordAccessEvent, in, func(ctx context.Context, userID string, req *shared.RecordAccessEventRequest) (*shared.AccessEvent, error) {
		ev := models.AccessEvent{
			VaultID:   req.VaultID,
			EventType: models.EventType(req.EventType),
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
		}
		if req.Timestamp != nil {
			ev.Timestamp = *req.Timestamp
		}
		saved, err := s.svc.Threats.RecordEvent(ctx, userID, ev)
		if err != nil {
			return nil, err
		}
		out := accessEventToWire(saved)
		return &out, nil
	})
}

func (s *GRPCServer) GetThreatAssessment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodGetThreatAssessment, in, func(ctx context.Context, userID string, req *shared.VaultRequest) (*shared.ThreatAssessmentResponse, error) {
		report, err := s.svc.Threats.Assess(ctx, req.VaultID, userID)
		if err != nil {
			return nil, err
		}
		out := ThreatReportToWire(report)
		return &out, nil
	})
}

func (s *GRPCServer) SubmitDualKey(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodSubmitDualKey, in, func(ctx context.Context, userID string, req *shared.VaultRequest) (*shared.DualKeyResponse, error) {
		r, err := s.svc.DualKey.Submit(ctx, req.VaultID, userID)
		if err != nil {
			return nil, err
		}
		return &shared.DualKeyResponse{Request: dualKeyToWire(r)}, nil
	})
}

func (s *GRPCServer) DecideDualKey(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodDecideDualKey, in, func(ctx context.Context, _ string, req *shared.RequestIDRequest) (*shared.DualKeyResponse, error) {
		r, err := s.svc.DualKey.Decide(ctx, req.RequestID)
		if err != nil {
			return nil, err
		}
		return &shared.DualKeyResponse{Request: dualKeyToWire(r)}, nil
	})
}

func (s *GRPCServer) ResolveDualKey(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodResolveDualKey, in, func(ctx context.Context, userID string, req *shared.ResolveDualKeyRequest) (*shared.DualKeyResponse, error) {
		r, err := s.svc.DualKey.DecideManually(ctx, req.RequestID, req.Approve, userID)
		if err != nil {
			return nil, err
		}
		return &shared.DualKeyResponse{Request: dualKeyToWire(r)}, nil
	})
}

func (s *GRPCServer) ListPendingDualKey(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodListPendingDualKey, in, func(ctx context.Context, userID string, req *shared.VaultRequest) (*shared.DualKeyListResponse, error) {
		list, err := s.svc.DualKey.ListPending(ctx, req.VaultID, userID)
		if err != nil {
			return nil, err
		}
		out := &shared.DualKeyListResponse{Requests: make([]shared.DualKeyRequest, 0, len(list))}
		for _, r := range list {
			out.Requests = append(out.Requests, dualKeyToWire(r))
		}
		return out, nil
	})
}

func (s *GRPCServer) RequestTransfer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodRequestTransfer, in, func(ctx context.Context, userID string, req *shared.RequestTransferRequest) (*shared.TransferResponse, error) {
		r, token, err := s.svc.Transfers.Request(ctx, services.TransferInput{
			VaultID:     req.VaultID,
			RequesterID: userID,
			NewOwner: models.NewOwner{
				Name:  req.NewOwnerName,
				Email: req.NewOwnerEmail,
				Phone: req.NewOwnerPhone,
			},
			Reason: req.Reason,
		})
		if err != nil {
			return nil, err
		}
		return &shared.TransferResponse{Request: transferToWire(r), Token: token}, nil
	})
}

func (s *GRPCServer) AcceptTransfer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodAcceptTransfer, in, func(ctx context.Context, userID string, req *shared.TokenRequest) (*shared.TransferResponse, error) {
		r, err := s.svc.Transfers.Accept(ctx, req.Token, userID)
		if err != nil {
			return nil, err
		}
		s.logger.Info(ctx, "Vault ownership transferred", "vault_id", r.VaultID, "request_id", r.ID)
		return &shared.TransferResponse{Request: transferToWire(r)}, nil
	})
}

func (s *GRPCServer) CancelTransfer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodCancelTransfer, in, func(ctx context.Context, userID string, req *shared.RequestIDRequest) (*shared.Empty, error) {
		if err := s.svc.Transfers.Cancel(ctx, req.RequestID, userID); err != nil {
			return nil, err
		}
		return &shared.Empty{}, nil
	})
}

func (s *GRPCServer) RequestEmergency(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodRequestEmergency, in, func(ctx context.Context, userID string, req *shared.RequestEmergencyRequest) (*shared.EmergencyResponse, error) {
		r, err := s.svc.Emergency.Request(ctx, services.EmergencyInput{
			VaultID:     req.VaultID,
			RequesterID: userID,
			Reason:      req.Reason,
			Urgency:     models.Urgency(req.Urgency),
		})
		if err != nil {
			return nil, err
		}
		return &shared.EmergencyResponse{Request: emergencyToWire(r)}, nil
	})
}

func (s *GRPCServer) AssessEmergency(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodAssessEmergency, in, func(ctx context.Context, userID string, req *shared.RequestIDRequest) (*shared.EmergencyAssessmentResponse, error) {
		a, err := s.svc.Emergency.Assess(ctx, req.RequestID, userID)
		if err != nil {
			return nil, err
		}
		return &shared.EmergencyAssessmentResponse{
			RequestID:      a.RequestID,
			Recommendation: string(a.Recommendation),
			Confidence:     a.Confidence,
			Reasoning:      a.Reasoning,
			RiskFactors:    append([]string{}, a.RiskFactors...),
			CompositeRisk:  a.CompositeRisk,
		}, nil
	})
}

func (s *GRPCServer) ApproveEmergency(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodApproveEmergency, in, func(ctx context.Context, userID string, req *shared.RequestIDRequest) (*shared.EmergencyResponse, error) {
		r, code, err := s.svc.Emergency.Approve(ctx, req.RequestID, userID)
		if err != nil {
			return nil, err
		}
		return &shared.EmergencyResponse{Request: emergencyToWire(r), PassCode: code}, nil
	})
}

func (s *GRPCServer) DenyEmergency(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodDenyEmergency, in, func(ctx context.Context, userID string, req *shared.RequestIDRequest) (*shared.EmergencyResponse, error) {
		r, err := s.svc.Emergency.Deny(ctx, req.RequestID, userID)
		if err != nil {
			return nil, err
		}
		return &shared.EmergencyResponse{Request: emergencyToWire(r)}, nil
	})
}

func (s *GRPCServer) VerifyEmergencyPass(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodVerifyEmergencyPass, in, func(ctx context.Context, _ string, req *shared.PassCodeRequest) (*shared.EmergencyResponse, error) {
		r, err := s.svc.Emergency.VerifyPass(ctx, req.PassCode, req.VaultID)
		if err != nil {
			return nil, err
		}
		return &shared.EmergencyResponse{Request: emergencyToWire(r)}, nil
	})
}

func (s *GRPCServer) ConsumeEmergencyPass(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodConsumeEmergencyPass, in, func(ctx context.Context, _ string, req *shared.PassCodeRequest) (*shared.EmergencyResponse, error) {
		r, err := s.svc.Emergency.ConsumePass(ctx, req.PassCode, req.VaultID)
		if err != nil {
			return nil, err
		}
		s.logger.Info(ctx, "Emergency pass used", "vault_id", r.VaultID, "request_id", r.ID)
		return &shared.EmergencyResponse{Request: emergencyToWire(r)}, nil
	})
}

func (s *GRPCServer) InviteNominee(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodInviteNominee, in, func(ctx context.Context, userID string, req *shared.InviteNomineeRequest) (*shared.NomineeResponse, error) {
		n, token, err := s.svc.Nominees.Invite(ctx, req.VaultID, userID, req.Name, req.Email)
		if err != nil {
			return nil, err
		}
		return &shared.NomineeResponse{Nominee: nomineeToWire(n), InviteToken: token}, nil
	})
}

func (s *GRPCServer) AcceptNominee(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodAcceptNominee, in, func(ctx context.Context, userID string, req *shared.TokenRequest) (*shared.NomineeResponse, error) {
		n, err := s.svc.Nominees.AcceptInvite(ctx, req.Token, userID)
		if err != nil {
			return nil, err
		}
		return &shared.NomineeResponse{Nominee: nomineeToWire(n)}, nil
	})
}

func (s *GRPCServer) SetNomineeStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodSetNomineeStatus, in, func(ctx context.Context, userID string, req *shared.SetNomineeStatusRequest) (*shared.NomineeResponse, error) {
		n, err := s.svc.Nominees.SetStatus(ctx, req.NomineeID, userID, models.NomineeStatus(req.Status))
		if err != nil {
			return nil, err
		}
		return &shared.NomineeResponse{Nominee: nomineeToWire(n)}, nil
	})
}

// DeleteAccount removes the calling user's account.
func (s *GRPCServer) DeleteAccount(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return call(s, ctx, shared.MethodDeleteAccount, in, func(ctx context.Context, userID string, _ *shared.Empty) (*shared.DeleteAccountResponse, error) {
		if userID == "" {
			return nil, fmt.Errorf("%w: no user in context", common.ErrorUnauthorized)
		}
		sum, err := s.svc.Deletion.DeleteAccount(ctx, userID)
		if err != nil {
			return nil, err
		}
		s.logger.Info(ctx, "Account deleted", "user_id", userID, "purged_vaults", len(sum.PurgedVaults))
		return &shared.DeleteAccountResponse{
			UserID:          sum.UserID,
			PurgedVaults:    append([]string{}, sum.PurgedVaults...),
			LeftVaults:      append([]string{}, sum.LeftVaults...),
			Rows:            sum.Rows,
			AnnotatedEvents: sum.AnnotatedEvents,
		}, nil
	})
}
