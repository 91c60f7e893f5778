// Package account persists users, the active session and premium codes
// in a small key-value store of its own. It is entirely separate from
// the catalog engine; nothing here is referenced by the storage layer.
package account

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/zinkereru/megakino/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketUsers   = []byte("users")
	bucketCodes   = []byte("codes")
	bucketSession = []byte("session")
)

var keyCurrent = []byte("current")

// Hardcoded superuser bypass carried over from the original demo. The
// superuser is never written to the users bucket.
const (
	superUsername = "Zinkereru"
	superPassword = "78187"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Store holds accounts, codes and the current session in BoltDB.
type Store struct {
	db     *bolt.DB
	logger *slog.Logger
}

// Open opens (or creates) the account store at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open account db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketUsers, bucketCodes, bucketSession} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Login authenticates by plaintext comparison. The superuser bypass is
// checked before the users bucket.
func (s *Store) Login(username, password string) (*domain.User, error) {
	if username == superUsername && password == superPassword {
		u := &domain.User{Username: username, Password: password, IsAdmin: true, IsPremium: true}
		s.logger.Info("superuser login")
		return u, nil
	}

	var user *domain.User
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketUsers).Get([]byte(username))
		if v == nil {
			return domain.ErrInvalidCredentials
		}
		var u domain.User
		if err := json.Unmarshal(v, &u); err != nil {
			return err
		}
		if u.Password != password {
			return domain.ErrInvalidCredentials
		}
		user = &u
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user login", "username", username)
	return user, nil
}

// Register stores a new user. The username must be free.
func (s *Store) Register(u domain.User) error {
	if u.Username == "" || u.Password == "" {
		return domain.ErrInvalidCredentials
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		if b.Get([]byte(u.Username)) != nil {
			return domain.ErrUserExists
		}
		data, err := json.Marshal(&u)
		if err != nil {
			return err
		}
		return b.Put([]byte(u.Username), data)
	})
}

// SaveUser upserts an existing user record.
func (s *Store) SaveUser(u domain.User) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(&u)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketUsers).Put([]byte(u.Username), data)
	})
}

// ListUsers returns all registered users.
func (s *Store) ListUsers() ([]domain.User, error) {
	var users []domain.User
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var u domain.User
			if err := json.Unmarshal(v, &u); err != nil {
				return err
			}
			users = append(users, u)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Session returns the persisted session user, or nil when logged out.
func (s *Store) Session() (*domain.User, error) {
	var user *domain.User
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSession).Get(keyCurrent)
		if v == nil {
			return nil
		}
		var u domain.User
		if err := json.Unmarshal(v, &u); err != nil {
			return err
		}
		user = &u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SetSession persists the session user. Passing nil logs out.
func (s *Store) SetSession(u *domain.User) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		if u == nil {
			return b.Delete(keyCurrent)
		}
		data, err := json.Marshal(u)
		if err != nil {
			return err
		}
		return b.Put(keyCurrent, data)
	})
}

// GenerateCode mints a new unused premium code attributed to the admin
// who created it. Format: MK-<4 digits>-<4 alphanumerics>.
func (s *Store) GenerateCode(generatedBy string) (domain.PremiumCode, error) {
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	code := domain.PremiumCode{
		Code:        fmt.Sprintf("MK-%04d-%s", 1000+rand.IntN(9000), suffix),
		GeneratedBy: generatedBy,
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(&code)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketCodes).Put([]byte(code.Code), data)
	})
	if err != nil {
		return domain.PremiumCode{}, err
	}
	s.logger.Info("generated premium code", "code", code.Code, "by", generatedBy)
	return code, nil
}

// ListCodes returns every premium code, used or not.
func (s *Store) ListCodes() ([]domain.PremiumCode, error) {
	var codes []domain.PremiumCode
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCodes).ForEach(func(k, v []byte) error {
			var c domain.PremiumCode
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			codes = append(codes, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// RedeemCode consumes an unused code and upgrades the named user to
// premium, updating the stored user, the code and the session (when it
// belongs to the same user) in one transaction.
func (s *Store) RedeemCode(code, username string) (*domain.User, error) {
	var user *domain.User
	err := s.db.Update(func(tx *bolt.Tx) error {
		codesB := tx.Bucket(bucketCodes)
		v := codesB.Get([]byte(code))
		if v == nil {
			return domain.ErrCodeInvalid
		}
		var c domain.PremiumCode
		if err := json.Unmarshal(v, &c); err != nil {
			return err
		}
		if c.IsUsed {
			return domain.ErrCodeInvalid
		}
		c.IsUsed = true
		data, err := json.Marshal(&c)
		if err != nil {
			return err
		}
		if err := codesB.Put([]byte(code), data); err != nil {
			return err
		}

		usersB := tx.Bucket(bucketUsers)
		u := domain.User{Username: username, IsPremium: true}
		if uv := usersB.Get([]byte(username)); uv != nil {
			if err := json.Unmarshal(uv, &u); err != nil {
				return err
			}
			u.IsPremium = true
			udata, err := json.Marshal(&u)
			if err != nil {
				return err
			}
			if err := usersB.Put([]byte(username), udata); err != nil {
				return err
			}
		}
		// Session-only users (the superuser) are upgraded in the
		// session record alone; they are never stored in the bucket.
		user = &u

		sessB := tx.Bucket(bucketSession)
		if sv := sessB.Get(keyCurrent); sv != nil {
			var sess domain.User
			if err := json.Unmarshal(sv, &sess); err == nil && sess.Username == username {
				sess.IsPremium = true
				sdata, _ := json.Marshal(&sess)
				if err := sessB.Put(keyCurrent, sdata); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("premium code redeemed", "code", code, "username", username)
	return user, nil
}
