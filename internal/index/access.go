package index

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tonimelisma/onedrive-index/internal/protect"
	"github.com/tonimelisma/onedrive-index/internal/session"
	"github.com/tonimelisma/onedrive-index/internal/vpath"
)

// CheckAccess returns nil when virtual is outside every protected subtree or
// the viewer's session holds a valid credential for it. Otherwise the error
// carries a PasswordPrompt for route.
func (s *Service) CheckAccess(ctx context.Context, viewer Viewer, route, virtual string) error {
	clean, err := vpath.Normalize(virtual)
	if err != nil {
		return fail(route, virtual, ErrInvalidPath, err)
	}

	return s.checkAccess(ctx, viewer, route, clean)
}

// checkAccess is CheckAccess for a path that has already been decoded.
func (s *Service) checkAccess(ctx context.Context, viewer Viewer, route, clean string) error {
	st, ok := s.guard.SubtreeFor(clean)
	if !ok {
		return nil
	}

	prompt := &PasswordPrompt{Route: route, RequestPath: clean, KeyID: st.KeyID}

	denied := func(kind, cause error) error {
		s.logger.Info("protected path denied",
			slog.String("path", clean),
			slog.String("key_id", st.KeyID),
			slog.String("reason", kind.Error()),
		)

		return &DisplayError{Op: route, Path: clean, Kind: kind, Cause: cause, Prompt: prompt}
	}

	sess, err := session.Open(s.sessions, viewer.SessionID)
	if err != nil {
		return denied(ErrPasswordRequired, err)
	}

	switch err := s.guard.Check(ctx, sess, st.KeyID); {
	case err == nil:
		return nil
	case errors.Is(err, protect.ErrCredentialExpired):
		return denied(protect.ErrCredentialExpired, nil)
	case errors.Is(err, protect.ErrCredentialMismatch):
		return denied(protect.ErrCredentialMismatch, nil)
	case errors.Is(err, protect.ErrCredentialMissing):
		return denied(ErrPasswordRequired, nil)
	default:
		// Store failures deny access.
		return denied(ErrPasswordRequired, err)
	}
}

// SubmitProtectedPassword stores the submitted password for keyID in the
// session for ttl (the configured credential TTL when ttl <= 0), then checks
// it. A wrong password is still stored, and the returned error carries
// prompt so the caller can ask again.
func (s *Service) SubmitProtectedPassword(ctx context.Context, sessionID, keyID, password string,
	ttl time.Duration, prompt PasswordPrompt,
) (*protect.Credential, error) {
	const op = "unlock"

	if ttl <= 0 {
		ttl = s.cfg.CredentialTTL
	}

	if prompt.KeyID == "" {
		prompt.KeyID = keyID
	}

	sess, err := session.Open(s.sessions, sessionID)
	if err != nil {
		return nil, &DisplayError{Op: op, Path: prompt.RequestPath, Kind: ErrPasswordRequired, Cause: err, Prompt: &prompt}
	}

	cred, err := s.guard.Issue(ctx, sess, keyID, password, ttl)
	if err != nil {
		kind := ErrRemoteUnavailable
		if errors.Is(err, protect.ErrUnknownKey) {
			kind = ErrNotFound
		}

		return nil, &DisplayError{Op: op, Path: prompt.RequestPath, Kind: kind, Cause: err, Prompt: &prompt}
	}

	if err := s.guard.Check(ctx, sess, keyID); err != nil {
		kind := protect.ErrCredentialMismatch
		if errors.Is(err, protect.ErrCredentialExpired) {
			kind = protect.ErrCredentialExpired
		}

		return nil, &DisplayError{Op: op, Path: prompt.RequestPath, Kind: kind, Cause: err, Prompt: &prompt}
	}

	return cred, nil
}
