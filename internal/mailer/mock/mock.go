// Package mock はmailer.Notifierのtestify製モックを提供する。
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hitoshi/inkpost/internal/mailer"
	"github.com/hitoshi/inkpost/internal/model"
)

// NotifierMock はmailer.Notifierのモック。
type NotifierMock struct {
	mock.Mock
}

// Send は呼び出しを記録し、設定された戻り値を返す。
func (m *NotifierMock) Send(ctx context.Context, user *model.User, subject, body string) error {
	args := m.Called(ctx, user, subject, body)
	return args.Error(0)
}

var _ mailer.Notifier = (*NotifierMock)(nil)
