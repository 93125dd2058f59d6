package advancedauth

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const otpRecordVersionV1 = 1

var (
	errOTPMissing          = errors.New("otp record not found")
	errOTPMismatch         = errors.New("otp mismatch")
	errOTPAttemptsExceeded = errors.New("otp attempts exceeded")
	errOTPRedisUnavailable = errors.New("otp redis unavailable")
)

// otpRecord is one live passcode for one identity. Only the SHA-256 digest
// of the code is stored; Attempts counts failed verifications so far.
type otpRecord struct {
	CodeHash  [32]byte
	Attempts  uint16
	ExpiresAt int64
}

type otpStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newOTPStore(redisClient redis.UniversalClient, prefix string) *otpStore {
	return &otpStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *otpStore) key(identity string) string {
	return s.prefix + ":" + identity
}

// Save stores the record for identity, replacing any live code. At most one
// OTP record exists per identity.
func (s *otpStore) Save(ctx context.Context, identity string, record *otpRecord, ttl time.Duration) error {
	encoded, err := encodeOTPRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(identity), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errOTPRedisUnavailable, err)
	}

	return nil
}

// Delete removes the record for identity. Used both for rollback after a
// failed mail dispatch and as part of session teardown; absent keys are
// fine.
func (s *otpStore) Delete(ctx context.Context, identity string) error {
	if err := s.redis.Del(ctx, s.key(identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errOTPRedisUnavailable, err)
	}
	return nil
}

// Consume verifies providedHash against the stored record inside a Redis
// WATCH transaction, so the read, the attempt accounting, and the delete
// are one atomic step per key. Two concurrent calls with the correct code
// cannot both succeed: the transaction of the loser fails and its retry
// finds the key gone.
//
// On match the record is deleted and returned. On mismatch the attempt
// counter is advanced in the same transaction; reaching maxAttempts deletes
// the record and returns errOTPAttemptsExceeded.
func (s *otpStore) Consume(ctx context.Context, identity string, providedHash [32]byte, maxAttempts int) (*otpRecord, error) {
	const maxRetries = 4
	key := s.key(identity)

	for i := 0; i < maxRetries; i++ {
		var matched *otpRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeOTPRecord(data)
			if err != nil {
				return err
			}

			if time.Now().Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errOTPMissing
			}

			if subtle.ConstantTimeCompare(record.CodeHash[:], providedHash[:]) != 1 {
				record.Attempts++
				if int(record.Attempts) >= maxAttempts {
					_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					})
					if err != nil {
						return err
					}
					return errOTPAttemptsExceeded
				}

				ttl := time.Until(time.Unix(record.ExpiresAt, 0))
				if ttl <= 0 {
					_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					})
					if err != nil {
						return err
					}
					return errOTPMissing
				}

				updated, err := encodeOTPRecord(record)
				if err != nil {
					return err
				}

				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				return errOTPMismatch
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}

			matched = record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, errOTPMissing
			case errors.Is(err, errOTPMissing), errors.Is(err, errOTPMismatch), errors.Is(err, errOTPAttemptsExceeded):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", errOTPRedisUnavailable, err)
			}
		}

		return matched, nil
	}

	return nil, errOTPMissing
}

func encodeOTPRecord(record *otpRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(otpRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeOTPRecord(data []byte) (*otpRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != otpRecordVersionV1 {
		return nil, errors.New("invalid otp record version")
	}

	record := &otpRecord{}

	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
