package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/vaultkeeper/internal/shared"
)

// ErrUsage reports a malformed command line.
var ErrUsage = errors.New("usage")

// ErrAborted is returned when the user declines a confirmation.
var ErrAborted = errors.New("aborted")

// API is the part of the VaultKeeper client used by the commands.
type API interface {
	SignIn(ctx context.Context, externalID, fullName, email string) (*shared.SignInResponse, error)
	ThreatAssessment(ctx context.Context, vaultID string) (*shared.ThreatAssessmentResponse, error)
	ApproveEmergency(ctx context.Context, requestID string) (*shared.EmergencyResponse, error)
	DenyEmergency(ctx context.Context, requestID string) (*shared.EmergencyResponse, error)
	VerifyPass(ctx context.Context, vaultID, passCode string) (*shared.EmergencyResponse, error)
	AcceptTransfer(ctx context.Context, token string) (*shared.TransferResponse, error)
	DeleteAccount(ctx context.Context) (*shared.DeleteAccountResponse, error)
}

type App struct {
	api    API
	out    io.Writer
	reader *bufio.Reader
}

func NewApp(api API, out io.Writer, in io.Reader) *App {
	return &App{api: api, out: out, reader: bufio.NewReader(in)}
}

const usage = `Usage: vaultctl [-c config] [-a addr] [-t token] [-timeout d] <command> [args]

Commands:
  signin <external-id> [full-name] [email]
  threat <vault-id>
  approve-emergency <request-id>
  deny-emergency <request-id>
  verify-pass <vault-id> [pass-code]
  accept-transfer <token>
  delete-account [-y]
`

// Usage writes the command summary to w.
func Usage(w io.Writer) {
	fmt.Fprint(w, usage)
}

// Run executes the command in args.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command", ErrUsage)
	}

	cmd, args := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		Usage(a.out)
		return nil
	case "signin":
		return a.signIn(ctx, args)
	case "threat":
		return a.threat(ctx, args)
	case "approve-emergency":
		return a.approveEmergency(ctx, args)
	case "deny-emergency":
		return a.denyEmergency(ctx, args)
	case "verify-pass":
		return a.verifyPass(ctx, args)
	case "accept-transfer":
		return a.acceptTransfer(ctx, args)
	case "delete-account":
		return a.deleteAccount(ctx, args)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func (a *App) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func exactly(args []string, n int, form string) error {
	if len(args) != n {
		return fmt.Errorf("%w: %s", ErrUsage, form)
	}
	return nil
}

func (a *App) signIn(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 3 {
		return fmt.Errorf("%w: signin <external-id> [full-name] [email]", ErrUsage)
	}
	in := make([]string, 3)
	copy(in, args)

	resp, err := a.api.SignIn(ctx, in[0], in[1], in[2])
	if err != nil {
		return err
	}
	return a.print(resp)
}

func (a *App) threat(ctx context.Context, args []string) error {
	if err := exactly(args, 1, "threat <vault-id>"); err != nil {
		return err
	}
	resp, err := a.api.ThreatAssessment(ctx, args[0])
	if err != nil {
		return err
	}
	return a.print(resp)
}

func (a *App) approveEmergency(ctx context.Context, args []string) error {
	if err := exactly(args, 1, "approve-emergency <request-id>"); err != nil {
		return err
	}
	resp, err := a.api.ApproveEmergency(ctx, args[0])
	if err != nil {
		return err
	}
	return a.print(resp)
}

func (a *App) denyEmergency(ctx context.Context, args []string) error {
	if err := exactly(args, 1, "deny-emergency <request-id>"); err != nil {
		return err
	}
	resp, err := a.api.DenyEmergency(ctx, args[0])
	if err != nil {
		return err
	}
	return a.print(resp)
}

// verifyPass asks for the pass code without echo when it is not given on
// the command line.
func (a *App) verifyPass(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: verify-pass <vault-id> [pass-code]", ErrUsage)
	}

	code := ""
	if len(args) == 2 {
		code = args[1]
	} else {
		var err error
		if code, err = GetSecret(a.out, "Pass code"); err != nil {
			return err
		}
	}
	if code == "" {
		return fmt.Errorf("%w: empty pass code", ErrUsage)
	}

	resp, err := a.api.VerifyPass(ctx, args[0], code)
	if err != nil {
		return err
	}
	return a.print(resp)
}

func (a *App) acceptTransfer(ctx context.Context, args []string) error {
	if err := exactly(args, 1, "accept-transfer <token>"); err != nil {
		return err
	}
	resp, err := a.api.AcceptTransfer(ctx, args[0])
	if err != nil {
		return err
	}
	return a.print(resp)
}

func (a *App) deleteAccount(ctx context.Context, args []string) error {
	confirmed := false
	switch {
	case len(args) == 1 && (args[0] == "-y" || args[0] == "--yes"):
		confirmed = true
	case len(args) != 0:
		return fmt.Errorf("%w: delete-account [-y]", ErrUsage)
	}

	if !confirmed {
		answer, err := GetSimpleText(a.reader, "This removes your account and every vault you own. Type DELETE to confirm", a.out)
		if err != nil {
			return err
		}
		if !strings.EqualFold(answer, "delete") {
			return ErrAborted
		}
	}

	resp, err := a.api.DeleteAccount(ctx)
	if err != nil {
		return err
	}
	return a.print(resp)
}
