package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/airobot/server/internal/apperr"
	"github.com/airobot/server/internal/model"
	"github.com/pquerna/otp/totp"
	"gorm.io/datatypes"
)

const mfaIssuer = "AI Robot"

// MFASetup is returned when a TOTP secret is provisioned.
type MFASetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// SetupMFA provisions a TOTP secret. It stays inactive until EnableMFA
// confirms a code generated from it.
func (s *Service) SetupMFA(ctx context.Context, userID uint) (MFASetup, error) {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return MFASetup{}, err
	}
	if u.MFAEnabled {
		return MFASetup{}, apperr.Conflict("mfa is already enabled")
	}

	key, err := totp.Generate(totp.GenerateOpts{Issuer: mfaIssuer, AccountName: u.Username})
	if err != nil {
		return MFASetup{}, apperr.Internal("failed to generate mfa secret", err)
	}
	if err := s.users.Update(ctx, u.ID, map[string]any{"mfa_secret": key.Secret()}); err != nil {
		return MFASetup{}, apperr.Internal("failed to store mfa secret", err)
	}
	return MFASetup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

// EnableMFA activates MFA and returns single-use recovery codes. Only their
// hashes are stored.
func (s *Service) EnableMFA(ctx context.Context, userID uint, code string) ([]string, error) {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.MFAEnabled {
		return nil, apperr.Conflict("mfa is already enabled")
	}
	if u.MFASecret == "" {
		return nil, apperr.InvalidInput("mfa has not been set up")
	}
	if !totp.Validate(code, u.MFASecret) {
		return nil, apperr.InvalidInput("invalid mfa code")
	}

	codes, err := generateRecoveryCodes(recoveryCodeCount)
	if err != nil {
		return nil, apperr.Internal("failed to generate recovery codes", err)
	}
	fields := map[string]any{"mfa_enabled": true, "mfa_recovery_codes": encodeRecoveryHashes(codes)}
	if err := s.users.Update(ctx, u.ID, fields); err != nil {
		return nil, apperr.Internal("failed to enable mfa", err)
	}
	return codes, nil
}

// DisableMFA turns MFA off after checking a TOTP or recovery code.
func (s *Service) DisableMFA(ctx context.Context, userID uint, code string) error {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if !u.MFAEnabled {
		return apperr.InvalidInput("mfa is not enabled")
	}
	ok, err := s.consumeSecondFactor(ctx, &u, code)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.InvalidInput("invalid mfa code")
	}
	fields := map[string]any{"mfa_enabled": false, "mfa_secret": "", "mfa_recovery_codes": datatypes.JSON("[]")}
	if err := s.users.Update(ctx, u.ID, fields); err != nil {
		return apperr.Internal("failed to disable mfa", err)
	}
	return nil
}

// consumeSecondFactor accepts a current TOTP code or an unused recovery
// code. A matched recovery code is removed.
func (s *Service) consumeSecondFactor(ctx context.Context, u *model.User, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, nil
	}
	if totp.Validate(code, u.MFASecret) {
		return true, nil
	}

	var hashes []string
	if len(u.MFARecoveryCodes) > 0 {
		if err := json.Unmarshal(u.MFARecoveryCodes, &hashes); err != nil {
			return false, apperr.Internal("failed to read recovery codes", err)
		}
	}
	want := hashRecoveryCode(code)
	for i, h := range hashes {
		if h != want {
			continue
		}
		remaining := append(hashes[:i:i], hashes[i+1:]...)
		raw, _ := json.Marshal(remaining)
		if err := s.users.Update(ctx, u.ID, map[string]any{"mfa_recovery_codes": datatypes.JSON(raw)}); err != nil {
			return false, apperr.Internal("failed to consume recovery code", err)
		}
		u.MFARecoveryCodes = raw
		return true, nil
	}
	return false, nil
}

func hashRecoveryCode(code string) string {
	sum := sha256.Sum256([]byte(strings.ToUpper(code)))
	return hex.EncodeToString(sum[:])
}

func encodeRecoveryHashes(codes []string) datatypes.JSON {
	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = hashRecoveryCode(c)
	}
	raw, _ := json.Marshal(hashes)
	return datatypes.JSON(raw)
}
