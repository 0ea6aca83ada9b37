package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/learnhub-client/internal/errs"
	"github.com/and161185/learnhub-client/internal/model"
	"github.com/and161185/learnhub-client/internal/storage"
)

// persistedState is the durable subset of the snapshot. Loading and error flags are
// never written, so they always come back at their defaults.
type persistedState struct {
	User            *model.Principal `json:"user"`
	Token           *string          `json:"token"`
	IsAuthenticated bool             `json:"isAuthenticated"`
}

type persisted struct {
	State   persistedState `json:"state"`
	Version int            `json:"version"`
}

const persistVersion = 0

func encodeSnapshot(s model.Snapshot) ([]byte, error) {
	p := persisted{Version: persistVersion}
	p.State.IsAuthenticated = s.IsAuthenticated
	p.State.User = s.User
	if s.Credential != nil {
		tok := s.Credential.Token
		p.State.Token = &tok
	}
	return json.Marshal(p)
}

func decodeSnapshot(b []byte) (persistedState, error) {
	var p persisted
	if err := json.Unmarshal(b, &p); err != nil {
		return persistedState{}, err
	}
	if p.Version != persistVersion {
		return persistedState{}, fmt.Errorf("unsupported snapshot version %d", p.Version)
	}
	return p.State, nil
}

// persistLocked writes the identity part of s.snap. Caller holds s.mu.
func (s *Store) persistLocked(ctx context.Context) error {
	if !s.snap.IsAuthenticated {
		var errList []error
		if err := s.storage.Delete(ctx, storage.KeySession); err != nil {
			errList = append(errList, err)
		}
		if s.pending == "" {
			if err := s.storage.Delete(ctx, storage.KeyToken); err != nil {
				errList = append(errList, err)
			}
		}
		if err := errors.Join(errList...); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
		return nil
	}
	b, err := encodeSnapshot(s.snap)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.storage.Set(ctx, storage.KeyToken, []byte(s.snap.Credential.Token)); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if err := s.storage.Set(ctx, storage.KeySession, b); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// load rehydrates the store. The raw token key is the authority: a snapshot whose
// token is missing, different or expired is discarded.
func (s *Store) load(ctx context.Context) error {
	rawTok, err := s.storage.Get(ctx, storage.KeyToken)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("read token: %w", err)
	}
	tok := string(rawTok)

	raw, err := s.storage.Get(ctx, storage.KeySession)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("read session: %w", err)
	}

	if tok != "" && model.CredentialFromToken(tok).Expired(s.now()) {
		s.log.Info("stored credential expired")
		return s.dropStored(ctx)
	}

	if raw == nil {
		s.pending = tok
		return nil
	}
	st, err := decodeSnapshot(raw)
	switch {
	case err != nil:
		s.log.Warn("discard unreadable session snapshot", zap.Error(err))
	case !st.IsAuthenticated:
		// nothing to restore
	case st.Token == nil || *st.Token == "" || st.User == nil:
		s.log.Warn("discard inconsistent session snapshot")
	case *st.Token != tok:
		s.log.Info("discard session snapshot: credential changed outside the store")
	default:
		cred := model.CredentialFromToken(tok)
		s.snap = model.Snapshot{Credential: &cred, User: st.User, IsAuthenticated: true}
		return nil
	}
	if err := s.storage.Delete(ctx, storage.KeySession); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.pending = tok
	return nil
}

func (s *Store) dropStored(ctx context.Context) error {
	err := errors.Join(
		s.storage.Delete(ctx, storage.KeySession),
		s.storage.Delete(ctx, storage.KeyToken),
	)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
