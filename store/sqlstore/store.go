package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"go.mau.fi/wacore/keys"
	"go.mau.fi/wacore/store"
	"go.mau.fi/wacore/types"
)

// Store is a single JID's store.KeyStore, backed by a shared Container.
type Store struct {
	*Container
	jid string
}

var _ store.KeyStore = (*Store)(nil)

// ErrInvalidLength is returned when a stored key blob doesn't match the
// expected 32 (raw key) or 64 (signature) byte length.
var ErrInvalidLength = errors.New("sqlstore: database returned a key with an unexpected length")

func (s *Store) StoreLocalIdentity(ctx context.Context, registrationID uint32, pair *keys.IdentityKeyPair) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO wacore_identity (id, registration_id, identity_pub, identity_priv)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET registration_id = $1, identity_pub = $2, identity_priv = $3
	`, registrationID, pair.Pub[:], pair.Priv[:])
	if err != nil {
		return fmt.Errorf("sqlstore: storing local identity: %w", err)
	}
	return nil
}

func (s *Store) GetLocalIdentity(ctx context.Context) (uint32, *keys.IdentityKeyPair, error) {
	var registrationID uint32
	var pub, priv []byte
	err := s.db.QueryRow(ctx, `SELECT registration_id, identity_pub, identity_priv FROM wacore_identity WHERE id = 1`).
		Scan(&registrationID, &pub, &priv)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil, nil
	} else if err != nil {
		return 0, nil, fmt.Errorf("sqlstore: loading local identity: %w", err)
	}
	pair, err := keyPairFromRows(pub, priv)
	if err != nil {
		return 0, nil, err
	}
	return registrationID, pair, nil
}

func (s *Store) StorePreKey(ctx context.Context, id uint32, record *keys.PreKey) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO wacore_prekey (id, pub, priv) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET pub = $2, priv = $3
	`, id, record.Pub[:], record.Priv[:])
	if err != nil {
		return fmt.Errorf("sqlstore: storing prekey %d: %w", id, err)
	}
	return nil
}

func (s *Store) GetPreKey(ctx context.Context, id uint32) (*keys.PreKey, error) {
	var pub, priv []byte
	err := s.db.QueryRow(ctx, `SELECT pub, priv FROM wacore_prekey WHERE id = $1`, id).Scan(&pub, &priv)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("sqlstore: loading prekey %d: %w", id, err)
	}
	pair, err := keyPairFromRows(pub, priv)
	if err != nil {
		return nil, err
	}
	return &keys.PreKey{KeyPair: *pair, ID: id}, nil
}

func (s *Store) DeletePreKey(ctx context.Context, id uint32) error {
	_, err := s.db.Exec(ctx, `DELETE FROM wacore_prekey WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting prekey %d: %w", id, err)
	}
	return nil
}

func (s *Store) StoreSignedPreKey(ctx context.Context, id uint32, record *keys.SignedPreKey) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO wacore_signed_prekey (id, pub, priv, signature) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET pub = $2, priv = $3, signature = $4
	`, id, record.Pub[:], record.Priv[:], record.Signature)
	if err != nil {
		return fmt.Errorf("sqlstore: storing signed prekey %d: %w", id, err)
	}
	return nil
}

func (s *Store) GetSignedPreKey(ctx context.Context, id uint32) (*keys.SignedPreKey, error) {
	var pub, priv, sig []byte
	err := s.db.QueryRow(ctx, `SELECT pub, priv, signature FROM wacore_signed_prekey WHERE id = $1`, id).
		Scan(&pub, &priv, &sig)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("sqlstore: loading signed prekey %d: %w", id, err)
	}
	pair, err := keyPairFromRows(pub, priv)
	if err != nil {
		return nil, err
	}
	if len(sig) != 64 {
		return nil, ErrInvalidLength
	}
	return &keys.SignedPreKey{KeyPair: *pair, ID: id, Signature: sig}, nil
}

func (s *Store) StoreSession(ctx context.Context, jid types.JID, deviceID uint16, session []byte) error {
	zerolog.Ctx(ctx).Debug().Stringer("jid", jid).Uint16("device_id", deviceID).Msg("Storing session")
	_, err := s.db.Exec(ctx, `
		INSERT INTO wacore_session (their_jid, device_id, session) VALUES ($1, $2, $3)
		ON CONFLICT (their_jid, device_id) DO UPDATE SET session = $3
	`, jid.String(), deviceID, session)
	if err != nil {
		return fmt.Errorf("sqlstore: storing session with %s: %w", jid, err)
	}
	return nil
}

func (s *Store) LoadSession(ctx context.Context, jid types.JID, deviceID uint16) ([]byte, error) {
	var session []byte
	err := s.db.QueryRow(ctx, `SELECT session FROM wacore_session WHERE their_jid = $1 AND device_id = $2`,
		jid.String(), deviceID).Scan(&session)
	if errors.Is(err, pgx.ErrNoRows) {
		zerolog.Ctx(ctx).Debug().Stringer("jid", jid).Uint16("device_id", deviceID).Msg("No cached session found")
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("sqlstore: loading session with %s: %w", jid, err)
	}
	return session, nil
}

func keyPairFromRows(pub, priv []byte) (*keys.KeyPair, error) {
	if len(pub) != 32 || len(priv) != 32 {
		return nil, ErrInvalidLength
	}
	var pubArr, privArr [32]byte
	copy(pubArr[:], pub)
	copy(privArr[:], priv)
	return &keys.KeyPair{Pub: &pubArr, Priv: &privArr}, nil
}
