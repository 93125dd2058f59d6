package advancedauth

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const registrationRecordVersionV1 = 1

var (
	errRegistrationMissing          = errors.New("registration record not found")
	errRegistrationRedisUnavailable = errors.New("registration redis unavailable")
)

// registrationRecord is the staged, unverified signup held in Redis until
// OTP verification completes or the TTL lapses. PasswordHash is the argon2
// hash; plaintext never reaches the store.
type registrationRecord struct {
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	CreatedAt    int64
	ExpiresAt    int64
}

func (r *registrationRecord) fullName() string {
	if r.LastName == "" {
		return r.FirstName
	}
	return r.FirstName + " " + r.LastName
}

type registrationStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newRegistrationStore(redisClient redis.UniversalClient, prefix string) *registrationStore {
	return &registrationStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *registrationStore) key(token string) string {
	return s.prefix + ":" + token
}

// Save stores the record under token for ttl. Each token is fresh random
// entropy, so an existing key can only mean a generator collision; the
// plain SET keeps the operation idempotent regardless.
func (s *registrationStore) Save(ctx context.Context, token string, record *registrationRecord, ttl time.Duration) error {
	encoded, err := encodeRegistrationRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(token), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errRegistrationRedisUnavailable, err)
	}

	return nil
}

// Get loads the record for token without consuming it. A record past its
// embedded expiry, or one that no longer decodes, is treated as missing
// and deleted on sight.
func (s *registrationStore) Get(ctx context.Context, token string) (*registrationRecord, error) {
	data, err := s.redis.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errRegistrationMissing
		}
		return nil, fmt.Errorf("%w: %v", errRegistrationRedisUnavailable, err)
	}

	record, err := decodeRegistrationRecord(data)
	if err != nil {
		// An undecodable record can never be verified. Collect it now
		// instead of failing every retrieval until the sweep runs.
		if err := s.Delete(ctx, token); err != nil {
			return nil, err
		}
		return nil, errRegistrationMissing
	}

	if time.Now().Unix() > record.ExpiresAt {
		if err := s.Delete(ctx, token); err != nil {
			return nil, err
		}
		return nil, errRegistrationMissing
	}

	return record, nil
}

// Delete removes the record for token. Deleting an absent token is not an
// error.
func (s *registrationStore) Delete(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errRegistrationRedisUnavailable, err)
	}
	return nil
}

// SweepExpired scans the registration namespace and deletes records whose
// embedded expiry passed. Redis TTLs normally get there first; the sweep is
// the backstop. Per-key failures are counted, not fatal.
func (s *registrationStore) SweepExpired(ctx context.Context, now time.Time) (deleted, failed int, err error) {
	iter := s.redis.Scan(ctx, 0, s.prefix+":*", 100).Iterator()

	for iter.Next(ctx) {
		key := iter.Val()

		data, getErr := s.redis.Get(ctx, key).Bytes()
		if getErr != nil {
			if errors.Is(getErr, redis.Nil) {
				continue
			}
			failed++
			continue
		}

		record, decErr := decodeRegistrationRecord(data)
		if decErr != nil {
			// Undecodable records are junk; remove them with the expired ones.
			if delErr := s.redis.Del(ctx, key).Err(); delErr != nil {
				failed++
				continue
			}
			deleted++
			continue
		}

		if now.Unix() <= record.ExpiresAt {
			continue
		}

		if delErr := s.redis.Del(ctx, key).Err(); delErr != nil {
			failed++
			continue
		}
		deleted++
	}

	if scanErr := iter.Err(); scanErr != nil {
		return deleted, failed, fmt.Errorf("%w: %v", errRegistrationRedisUnavailable, scanErr)
	}

	return deleted, failed, nil
}

func encodeRegistrationRecord(record *registrationRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(registrationRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	for _, field := range []string{record.Email, record.FirstName, record.LastName, record.PasswordHash} {
		if len(field) > 65535 {
			return nil, errors.New("registration record field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodeRegistrationRecord(data []byte) (*registrationRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != registrationRecordVersionV1 {
		return nil, errors.New("invalid registration record version")
	}

	record := &registrationRecord{}

	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	fields := []*string{&record.Email, &record.FirstName, &record.LastName, &record.PasswordHash}
	for _, field := range fields {
		var length uint16
		if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
			return nil, err
		}

		raw := make([]byte, length)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*field = string(raw)
	}

	return record, nil
}
