package usecase

import (
	"context"
	"errors"
	"strings"

	messaging "careLinkWs/internal/modules/messaging/domain"
	"careLinkWs/internal/modules/realtime/application/port"
)

var ErrForbidden = errors.New("forbidden")

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type AuditUseCase struct {
	reader port.AuditReader
}

func NewAuditUseCase(reader port.AuditReader) *AuditUseCase {
	return &AuditUseCase{reader: reader}
}

// Recent lists audit entries for admins. userID narrows the listing to one identity.
func (uc *AuditUseCase) Recent(ctx context.Context, caller Caller, userID string, limit int) ([]port.AuditEntry, error) {
	if !messaging.HasAccess(caller.Role, messaging.RoleAdmin) {
		return nil, ErrForbidden
	}
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	if uc.reader == nil {
		return []port.AuditEntry{}, nil
	}
	return uc.reader.Recent(ctx, strings.TrimSpace(userID), limit)
}
