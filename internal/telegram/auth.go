package telegram

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// ErrSignUpUnsupported is returned when the phone has no Telegram account
var ErrSignUpUnsupported = errors.New("sign up is not supported, register the account with an official client first")

// terminalAuth answers the login flow from configuration, prompting for anything missing
type terminalAuth struct {
	phone    string
	password string
	in       *bufio.Reader
	out      io.Writer
}

var _ auth.UserAuthenticator = (*terminalAuth)(nil)

func newTerminalAuth(phone, password string, in io.Reader, out io.Writer) *terminalAuth {
	return &terminalAuth{
		phone:    phone,
		password: password,
		in:       bufio.NewReader(in),
		out:      out,
	}
}

func (a *terminalAuth) prompt(label string) (string, error) {
	if _, err := fmt.Fprint(a.out, label); err != nil {
		return "", err
	}
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(line), nil
}

func (a *terminalAuth) Phone(_ context.Context) (string, error) {
	if a.phone != "" {
		return a.phone, nil
	}
	return a.prompt("Phone number: ")
}

func (a *terminalAuth) Password(_ context.Context) (string, error) {
	if a.password != "" {
		return a.password, nil
	}
	pw, err := a.prompt("2FA password: ")
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", auth.ErrPasswordNotProvided
	}
	return pw, nil
}

func (a *terminalAuth) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	return a.prompt("Login code: ")
}

func (a *terminalAuth) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	return &auth.SignUpRequired{TermsOfService: tos}
}

func (a *terminalAuth) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, ErrSignUpUnsupported
}
