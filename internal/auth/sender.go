package auth

import (
	"context"

	"github.com/airobot/server/internal/logging"
	"go.uber.org/zap"
)

// CodeSender delivers a verification code to a phone.
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// LogSender stands in for an SMS gateway. It logs the masked phone and never the code.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger.Named("sms")}
}

func (s *LogSender) SendCode(_ context.Context, phone, _ string) error {
	s.logger.Info("verification code issued", zap.String("phone", logging.MaskPhone(phone)))
	return nil
}
