package requesttrace

import (
	"context"
	"errors"

	platformauth "github.com/marmoreal/stonecms/platform/go/auth"
)

type contextKey string

const (
	ctxAuditInfo contextKey = "STONECMS_REQUEST_TRACE"
)

// ActorKind represents who initiated a request.
type ActorKind string

const (
	ActorKindAdmin     ActorKind = "admin"
	ActorKindAnonymous ActorKind = "anonymous"
	ActorKindSystem    ActorKind = "system"
)

// AuditInfo captures request-scoped metadata used for logging and for stamping who changed a record.
// ActorID and ActorEmail are set only when ActorKind is admin.
type AuditInfo struct {
	ActorKind  ActorKind
	ActorID    *string
	ActorEmail string
	RequestID  string
	ClientIP   string
}

// IntoContext stores the AuditInfo in the provided context.
func IntoContext(ctx context.Context, audit AuditInfo) context.Context {
	return context.WithValue(ctx, ctxAuditInfo, audit)
}

// FromContext extracts the AuditInfo from context, returning false when not present.
func FromContext(ctx context.Context) (AuditInfo, bool) {
	if ctx == nil {
		return AuditInfo{}, false
	}
	audit, ok := ctx.Value(ctxAuditInfo).(AuditInfo)
	return audit, ok
}

// FromContextOrSystem returns the AuditInfo stored on the context, or a system record when absent.
// Background jobs and CLI commands run without a request and are attributed to the system.
func FromContextOrSystem(ctx context.Context) AuditInfo {
	if audit, ok := FromContext(ctx); ok {
		return audit
	}
	return System("")
}

// FromCredentials builds an AuditInfo for an authenticated admin.
func FromCredentials(creds *platformauth.UserCredentials, requestID string) (AuditInfo, error) {
	if creds == nil {
		return AuditInfo{}, errors.New("credentials are required to build audit info")
	}
	if creds.ID == "" {
		return AuditInfo{}, errors.New("user id is required to build audit info")
	}

	id := creds.ID
	return AuditInfo{
		ActorKind:  ActorKindAdmin,
		ActorID:    &id,
		ActorEmail: creds.Email,
		RequestID:  requestID,
	}, nil
}

// Anonymous builds an AuditInfo for public visitors, e.g. an enquiry submission.
func Anonymous(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindAnonymous, RequestID: requestID}
}

// System builds an AuditInfo for seeding, migrations and other non-request work.
func System(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindSystem, RequestID: requestID}
}

// Actor returns a short label for log lines and audit columns.
func (a AuditInfo) Actor() string {
	if a.ActorKind == ActorKindAdmin && a.ActorID != nil {
		return "admin:" + *a.ActorID
	}
	return string(a.ActorKind)
}
