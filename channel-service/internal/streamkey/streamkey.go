package streamkey

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTTL is used when Verify is called with a zero TTL.
	DefaultTTL = time.Hour

	nonceSize = 12
	parts     = 4
)

// Strict rejects non-zero padding bits so each key has exactly one text form.
var b64 = base64.RawURLEncoding.Strict()

// Payload binds a stream key to one room and its host. Fields are declared
// in key order so the encoded form is stable.
type Payload struct {
	HostID    string `json:"hostId"`
	ChannelID int    `json:"namespaceId"`
	RoomTitle string `json:"roomTitle"`
}

// Issued is a freshly signed stream key.
type Issued struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// VerifyOptions controls expiry checking.
type VerifyOptions struct {
	TTL       time.Duration
	IgnoreTTL bool
	// Now overrides the clock, mostly for tests.
	Now time.Time
}

// Codec issues and verifies stream keys of the form
// payload.timestamp.nonce.signature, each part base64url without padding
// except the decimal unix timestamp.
type Codec struct {
	secret []byte
	now    func() time.Time
	random func([]byte) (int, error)
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec creates a codec signing with secret.
func NewCodec(secret string, opts ...Option) *Codec {
	c := &Codec{
		secret: []byte(secret),
		now:    time.Now,
		random: rand.Read,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue signs p. ExpiresAt is in unix seconds.
func (c *Codec) Issue(p Payload, ttl time.Duration) (*Issued, error) {
	if len(c.secret) == 0 {
		return nil, ErrSecretMissing
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	body, err := encodePayload(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := c.random(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	issuedAt := c.now().Unix()
	unsigned := strings.Join([]string{
		b64.EncodeToString(body),
		strconv.FormatInt(issuedAt, 10),
		b64.EncodeToString(nonce),
	}, ".")

	return &Issued{
		Token:     unsigned + "." + b64.EncodeToString(c.sign(unsigned)),
		ExpiresAt: issuedAt + int64(ttl/time.Second),
	}, nil
}

// Verify checks the signature and expiry of token and returns its payload.
// Every failure is a *VerifyError.
func (c *Codec) Verify(token string, opts VerifyOptions) (*Payload, error) {
	if len(c.secret) == 0 {
		return nil, fail(ErrSecretMissing, "secret-missing")
	}

	segs := strings.Split(token, ".")
	if len(segs) != parts {
		return nil, fail(ErrFormat, "format")
	}
	encBody, encTS, encNonce, encSig := segs[0], segs[1], segs[2], segs[3]
	if encBody == "" || encNonce == "" || encSig == "" {
		return nil, fail(ErrPayloadShape, "payload")
	}
	issuedAt, err := strconv.ParseInt(encTS, 10, 64)
	if err != nil {
		return nil, fail(ErrPayloadShape, "payload")
	}

	sig, err := b64.DecodeString(encSig)
	if err != nil || len(sig) != sha256.Size {
		return nil, fail(ErrSignature, "signature-length")
	}
	if !hmac.Equal(sig, c.sign(encBody+"."+encTS+"."+encNonce)) {
		return nil, fail(ErrSignature, "signature")
	}

	if !opts.IgnoreTTL {
		ttl := opts.TTL
		if ttl <= 0 {
			ttl = DefaultTTL
		}
		now := opts.Now
		if now.IsZero() {
			now = c.now()
		}
		if now.Unix() > issuedAt+int64(ttl/time.Second) {
			return nil, fail(ErrExpired, "expired")
		}
	}

	body, err := b64.DecodeString(encBody)
	if err != nil {
		return nil, fail(ErrPayloadShape, "payload-shape")
	}
	return decodePayload(body)
}

func (c *Codec) sign(data string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func encodePayload(p Payload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// decodePayload requires all three fields with their exact JSON types.
func decodePayload(body []byte) (*Payload, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fail(ErrPayloadShape, "payload-parse-error")
	}

	var shape struct {
		HostID    *string `json:"hostId"`
		ChannelID *int    `json:"namespaceId"`
		RoomTitle *string `json:"roomTitle"`
	}
	if err := json.Unmarshal(body, &shape); err != nil {
		return nil, fail(ErrPayloadShape, "payload-shape")
	}
	if shape.HostID == nil || shape.ChannelID == nil || shape.RoomTitle == nil {
		return nil, fail(ErrPayloadShape, "payload-shape")
	}

	return &Payload{
		HostID:    *shape.HostID,
		ChannelID: *shape.ChannelID,
		RoomTitle: *shape.RoomTitle,
	}, nil
}
