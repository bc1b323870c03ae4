package hasher

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/99minutos/accounts-api/internal/core/domain"
)

const (
	algorithmID = "argon2id"

	DefaultMemory      uint32 = 64 * 1024
	DefaultTime        uint32 = 3
	DefaultParallelism uint8  = 1
	defaultSaltLength  uint32 = 16
	defaultKeyLength   uint32 = 32
)

// Config holds the Argon2id cost parameters. Zero fields take the defaults.
type Config struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (c Config) withDefaults() Config {
	if c.Memory == 0 {
		c.Memory = DefaultMemory
	}
	if c.Time == 0 {
		c.Time = DefaultTime
	}
	if c.Parallelism == 0 {
		c.Parallelism = DefaultParallelism
	}
	if c.SaltLength == 0 {
		c.SaltLength = defaultSaltLength
	}
	if c.KeyLength == 0 {
		c.KeyLength = defaultKeyLength
	}
	return c
}

// Runner executes a blocking computation, possibly on another goroutine.
// *queue.Pool satisfies it.
type Runner interface {
	Do(ctx context.Context, fn func() error) error
}

type inline struct{}

func (inline) Do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

// Argon2 hashes passwords into PHC strings:
//
//	$argon2id$v=19$m=65536,t=3,p=1$<salt>$<key>
//
// with salt and key in unpadded standard base64.
type Argon2 struct {
	cfg     Config
	runner  Runner
	rand    io.Reader
	observe func(op string, d time.Duration)
}

// NewArgon2 returns a hasher that runs on runner. A nil runner computes
// hashes on the calling goroutine.
func NewArgon2(cfg Config, runner Runner) *Argon2 {
	if runner == nil {
		runner = inline{}
	}
	return &Argon2{
		cfg:     cfg.withDefaults(),
		runner:  runner,
		rand:    rand.Reader,
		observe: func(string, time.Duration) {},
	}
}

// WithObserver sets a callback that receives the duration of every
// computation, labelled "hash" or "verify".
func (a *Argon2) WithObserver(fn func(op string, d time.Duration)) *Argon2 {
	if fn != nil {
		a.observe = fn
	}
	return a
}

func (a *Argon2) Hash(ctx context.Context, plaintext string) (string, error) {
	salt := make([]byte, a.cfg.SaltLength)
	if _, err := io.ReadFull(a.rand, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	var key []byte
	err := a.runner.Do(ctx, func() error {
		defer a.timed("hash")()
		key = argon2.IDKey([]byte(plaintext), salt, a.cfg.Time, a.cfg.Memory, a.cfg.Parallelism, a.cfg.KeyLength)
		return nil
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.cfg.Memory,
		a.cfg.Time,
		a.cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the key with the parameters embedded in encoded.
func (a *Argon2) Verify(ctx context.Context, encoded, plaintext string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	var computed []byte
	err = a.runner.Do(ctx, func() error {
		defer a.timed("verify")()
		computed = argon2.IDKey([]byte(plaintext), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
		return nil
	})
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(computed, p.key) == 1, nil
}

func (a *Argon2) timed(op string) func() {
	start := time.Now()
	return func() { a.observe(op, time.Since(start)) }
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedHash, reason)
}

func parsePHC(encoded string) (*phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, malformed("invalid PHC format")
	}
	if parts[1] != algorithmID {
		return nil, malformed("unsupported algorithm")
	}

	version, ok := strings.CutPrefix(parts[2], "v=")
	if !ok {
		return nil, malformed("missing version")
	}
	if v, err := strconv.Atoi(version); err != nil || v != argon2.Version {
		return nil, malformed("unsupported version")
	}

	out := &phc{}
	seen := map[string]bool{}
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || seen[k] {
			return nil, malformed("invalid parameters")
		}
		seen[k] = true
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return nil, malformed("invalid parameter " + k)
		}
		switch k {
		case "m":
			out.memory = uint32(n)
		case "t":
			out.time = uint32(n)
		case "p":
			if n > 255 {
				return nil, malformed("invalid parameter p")
			}
			out.parallelism = uint8(n)
		default:
			return nil, malformed("unknown parameter " + k)
		}
	}
	if len(seen) != 3 {
		return nil, malformed("missing parameters")
	}

	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(out.salt) == 0 {
		return nil, malformed("invalid salt")
	}
	if out.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(out.key) == 0 {
		return nil, malformed("invalid key")
	}
	return out, nil
}
