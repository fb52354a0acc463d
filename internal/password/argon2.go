package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength         = 16
)

var errMalformedHash = errors.New("malformed argon2id hash")

type argon2Hasher struct {
	memory      uint32
	time        uint32
	parallelism uint8
	saltLength  uint32
	keyLength   uint32
}

func (a argon2Hasher) validate() error {
	switch {
	case a.memory < minMemoryKB:
		return fmt.Errorf("argon2 memory must be >= %d KiB", minMemoryKB)
	case a.time < minTimeCost:
		return fmt.Errorf("argon2 time must be >= %d", minTimeCost)
	case a.parallelism < minParallelism:
		return fmt.Errorf("argon2 parallelism must be >= %d", minParallelism)
	}

	return nil
}

// hash возвращает строку вида $argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>.
func (a argon2Hasher) hash(plain string) (string, error) {
	salt := make([]byte, a.saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(plain), salt, a.time, a.memory, a.parallelism, a.keyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		AlgorithmArgon2id,
		argon2.Version,
		a.memory, a.time, a.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// verify пересчитывает ключ с параметрами из самого хэша,
// поэтому смена настроек не ломает проверку старых паролей.
func (a argon2Hasher) verify(plain, encoded string) bool {
	p, err := parsePHC(encoded)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(plain), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))

	return subtle.ConstantTimeCompare(computed, p.key) == 1
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encoded string) (*phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != AlgorithmArgon2id {
		return nil, errMalformedHash
	}

	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, errMalformedHash
	}

	var (
		out                        phc
		hasMemory, hasTime, hasPar bool
	)

	for _, pair := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, errMalformedHash
		}

		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || uint32(n) < minMemoryKB {
				return nil, errMalformedHash
			}
			out.memory, hasMemory = uint32(n), true
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || uint32(n) < minTimeCost {
				return nil, errMalformedHash
			}
			out.time, hasTime = uint32(n), true
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || uint8(n) < minParallelism {
				return nil, errMalformedHash
			}
			out.parallelism, hasPar = uint8(n), true
		default:
			return nil, errMalformedHash
		}
	}

	if !hasMemory || !hasTime || !hasPar {
		return nil, errMalformedHash
	}

	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(out.salt) < minSaltLength {
		return nil, errMalformedHash
	}
	if out.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(out.key) == 0 {
		return nil, errMalformedHash
	}

	return &out, nil
}
