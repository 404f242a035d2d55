package streamkey

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

var testPayload = Payload{HostID: "alice", ChannelID: 1, RoomTitle: "lobby"}

func fixedClock(t time.Time) Option {
	return WithClock(func() time.Time { return t })
}

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	var ve *VerifyError
	require.True(t, errors.As(err, &ve), "expected *VerifyError, got %T", err)
	return ve.Reason
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	payloads := []Payload{
		testPayload,
		{HostID: "bob", ChannelID: 0, RoomTitle: "Room With Spaces"},
		{HostID: "ü", ChannelID: 2, RoomTitle: "<html>&"},
	}
	ttls := []time.Duration{time.Minute, time.Hour, 30 * time.Minute}

	codec := NewCodec(testSecret)
	for _, p := range payloads {
		for _, ttl := range ttls {
			issued, err := codec.Issue(p, ttl)
			require.NoError(t, err)

			got, err := codec.Verify(issued.Token, VerifyOptions{TTL: ttl})
			require.NoError(t, err)
			assert.Equal(t, p, *got)
		}
	}
}

func TestIssueTokenShape(t *testing.T) {
	issuedAt := time.Unix(1_700_000_000, 0)
	codec := NewCodec(testSecret, fixedClock(issuedAt))

	issued, err := codec.Issue(testPayload, 10*time.Minute)
	require.NoError(t, err)

	segs := strings.Split(issued.Token, ".")
	require.Len(t, segs, 4)
	assert.Equal(t, strconv.FormatInt(issuedAt.Unix(), 10), segs[1])
	assert.Equal(t, issuedAt.Add(10*time.Minute).Unix(), issued.ExpiresAt)
	assert.NotContains(t, issued.Token, "=")

	body, err := b64.DecodeString(segs[0])
	require.NoError(t, err)
	assert.Equal(t, `{"hostId":"alice","namespaceId":1,"roomTitle":"lobby"}`, string(body))

	nonce, err := b64.DecodeString(segs[2])
	require.NoError(t, err)
	assert.Len(t, nonce, nonceSize)
}

func TestIssueIsUnique(t *testing.T) {
	codec := NewCodec(testSecret, fixedClock(time.Unix(1_700_000_000, 0)))

	a, err := codec.Issue(testPayload, time.Hour)
	require.NoError(t, err)
	b, err := codec.Issue(testPayload, time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, a.Token, b.Token)
}

func TestIssueDefaultTTL(t *testing.T) {
	issuedAt := time.Unix(1_700_000_000, 0)
	codec := NewCodec(testSecret, fixedClock(issuedAt))

	issued, err := codec.Issue(testPayload, 0)
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(DefaultTTL).Unix(), issued.ExpiresAt)
}

func TestIssueWithoutSecret(t *testing.T) {
	_, err := NewCodec("").Issue(testPayload, time.Hour)
	assert.ErrorIs(t, err, ErrSecretMissing)
}

func TestVerifyExpiry(t *testing.T) {
	issuedAt := time.Unix(1_700_000_000, 0)
	ttl := 10 * time.Minute
	codec := NewCodec(testSecret, fixedClock(issuedAt))

	issued, err := codec.Issue(testPayload, ttl)
	require.NoError(t, err)

	tests := []struct {
		name    string
		opts    VerifyOptions
		wantErr error
	}{
		{name: "at expiry", opts: VerifyOptions{TTL: ttl, Now: issuedAt.Add(ttl)}},
		{name: "one second past expiry", opts: VerifyOptions{TTL: ttl, Now: issuedAt.Add(ttl + time.Second)}, wantErr: ErrExpired},
		{name: "ignore ttl", opts: VerifyOptions{TTL: ttl, IgnoreTTL: true, Now: issuedAt.Add(48 * time.Hour)}},
		{name: "wider window", opts: VerifyOptions{TTL: 30 * time.Minute, Now: issuedAt.Add(20 * time.Minute)}},
		{name: "default ttl", opts: VerifyOptions{Now: issuedAt.Add(DefaultTTL + time.Second)}, wantErr: ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codec.Verify(issued.Token, tt.opts)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testPayload, *got)
		})
	}
}

const urlAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func TestVerifyTamperedSignature(t *testing.T) {
	codec := NewCodec(testSecret)
	issued, err := codec.Issue(testPayload, time.Hour)
	require.NoError(t, err)

	segs := strings.Split(issued.Token, ".")
	sig := []byte(segs[3])
	require.Len(t, sig, 43)

	// Every character, including the last one whose low bits are padding,
	// must be covered by the signature check.
	for i := range sig {
		for _, mask := range []int{0x01, 0x02, 0x20} {
			flipped := append([]byte(nil), sig...)
			idx := strings.IndexByte(urlAlphabet, flipped[i])
			require.GreaterOrEqual(t, idx, 0)
			flipped[i] = urlAlphabet[idx^mask]
			token := strings.Join([]string{segs[0], segs[1], segs[2], string(flipped)}, ".")

			_, err := codec.Verify(token, VerifyOptions{})
			assert.ErrorIs(t, err, ErrSignature, "char %d mask %#x", i, mask)
		}
	}
}

func TestVerifyRejectsNonCanonicalSignature(t *testing.T) {
	codec := NewCodec(testSecret)
	issued, err := codec.Issue(testPayload, time.Hour)
	require.NoError(t, err)

	segs := strings.Split(issued.Token, ".")
	last := segs[3][len(segs[3])-1]
	idx := strings.IndexByte(urlAlphabet, last)
	segs[3] = segs[3][:len(segs[3])-1] + string(urlAlphabet[idx^0x01])

	_, err = codec.Verify(strings.Join(segs, "."), VerifyOptions{})
	assert.ErrorIs(t, err, ErrSignature)
	assert.Equal(t, "signature-length", reasonOf(t, err))
}

func TestVerifyTamperedPayload(t *testing.T) {
	codec := NewCodec(testSecret)
	issued, err := codec.Issue(testPayload, time.Hour)
	require.NoError(t, err)

	segs := strings.Split(issued.Token, ".")
	segs[0] = b64.EncodeToString([]byte(`{"hostId":"mallory","namespaceId":1,"roomTitle":"lobby"}`))

	_, err = codec.Verify(strings.Join(segs, "."), VerifyOptions{})
	assert.ErrorIs(t, err, ErrSignature)
}

func TestVerifyWrongSecret(t *testing.T) {
	issued, err := NewCodec(testSecret).Issue(testPayload, time.Hour)
	require.NoError(t, err)

	_, err = NewCodec("other").Verify(issued.Token, VerifyOptions{})
	assert.ErrorIs(t, err, ErrSignature)
}

func TestVerifyMalformed(t *testing.T) {
	codec := NewCodec(testSecret)
	sig := b64.EncodeToString(make([]byte, 32))

	tests := []struct {
		name       string
		token      string
		wantKind   error
		wantReason string
	}{
		{name: "empty", token: "", wantKind: ErrFormat, wantReason: "format"},
		{name: "three parts", token: "a.1.b", wantKind: ErrFormat, wantReason: "format"},
		{name: "five parts", token: "a.1.b.c.d", wantKind: ErrFormat, wantReason: "format"},
		{name: "non numeric timestamp", token: "a.x.b." + sig, wantKind: ErrPayloadShape, wantReason: "payload"},
		{name: "empty nonce", token: "a.1.." + sig, wantKind: ErrPayloadShape, wantReason: "payload"},
		{name: "short signature", token: "a.1.b.YWJj", wantKind: ErrSignature, wantReason: "signature-length"},
		{name: "undecodable signature", token: "a.1.b.***", wantKind: ErrSignature, wantReason: "signature-length"},
		{name: "wrong signature", token: "a.1.b." + sig, wantKind: ErrSignature, wantReason: "signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Verify(tt.token, VerifyOptions{IgnoreTTL: true})
			assert.ErrorIs(t, err, tt.wantKind)
			assert.Equal(t, tt.wantReason, reasonOf(t, err))
		})
	}
}

func TestVerifyPayloadShape(t *testing.T) {
	codec := NewCodec(testSecret)

	signed := func(body string) string {
		unsigned := b64.EncodeToString([]byte(body)) + ".1700000000." + b64.EncodeToString([]byte("nonce-nonce!"))
		return unsigned + "." + b64.EncodeToString(codec.sign(unsigned))
	}

	tests := []struct {
		name       string
		body       string
		wantReason string
	}{
		{name: "not json", body: "hello", wantReason: "payload-parse-error"},
		{name: "array", body: `[1,2]`, wantReason: "payload-parse-error"},
		{name: "missing host", body: `{"namespaceId":1,"roomTitle":"lobby"}`, wantReason: "payload-shape"},
		{name: "string channel id", body: `{"hostId":"a","namespaceId":"1","roomTitle":"lobby"}`, wantReason: "payload-shape"},
		{name: "numeric title", body: `{"hostId":"a","namespaceId":1,"roomTitle":7}`, wantReason: "payload-shape"},
		{name: "null", body: `null`, wantReason: "payload-shape"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Verify(signed(tt.body), VerifyOptions{IgnoreTTL: true})
			assert.ErrorIs(t, err, ErrPayloadShape)
			assert.Equal(t, tt.wantReason, reasonOf(t, err))
		})
	}
}

func TestVerifyWithoutSecret(t *testing.T) {
	_, err := NewCodec("").Verify("a.1.b.c", VerifyOptions{})
	assert.ErrorIs(t, err, ErrSecretMissing)
	assert.Equal(t, "secret-missing", reasonOf(t, err))
}
