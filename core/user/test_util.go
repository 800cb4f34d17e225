package user

import (
	"context"

	"github.com/trezcool/cts/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service sending its emails synchronously.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &serviceMock{
		service: service{
			repo:    repo,
			mailSvc: mailSvc,
			tokens: resetTokens{
				secretKey: []byte(conf.SecretKey),
				timeout:   conf.Server.PasswordResetTimeoutDelta,
			},
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.Active() {
		return ErrNotFound
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}

// MakeResetToken exposes password reset tokens to other packages' tests.
func (svc *serviceMock) MakeResetToken(usr User) (string, error) {
	return svc.tokens.makeToken(usr)
}
