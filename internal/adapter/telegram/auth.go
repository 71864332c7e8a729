package telegram

import (
	"context"
	"errors"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// ErrAuthRequired is returned when the session is not authorized and no
// interactive input is available.
var ErrAuthRequired = errors.New("telegram session not authorized; run once interactively to log in")

// termAuth implements auth.UserAuthenticator using the provided AuthInput
type termAuth struct {
	input AuthInput
}

func (t termAuth) Phone(_ context.Context) (string, error) {
	if t.input == nil {
		return "", ErrAuthRequired
	}
	return t.input.GetPhoneNumber()
}

func (t termAuth) Password(_ context.Context) (string, error) {
	if t.input == nil {
		return "", ErrAuthRequired
	}
	return t.input.GetPassword()
}

func (t termAuth) AcceptTermsOfService(_ context.Context, _ tg.HelpTermsOfService) error {
	return nil
}

func (t termAuth) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	if t.input == nil {
		return "", ErrAuthRequired
	}
	return t.input.GetCode()
}

func (t termAuth) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("sign up is not supported, the account must already exist")
}
