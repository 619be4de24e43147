package webhook

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

func fixedVerifier(secret string) (*Verifier, time.Time) {
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	v := NewVerifier(secret, time.Minute)
	v.now = func() time.Time { return now }
	return v, now
}

func TestVerifierAcceptsSignedBody(t *testing.T) {
	v, now := fixedVerifier("secret")
	body := []byte(`{"event":"meeting.participant_joined"}`)

	sig := v.Sign(now, body)
	require.NoError(t, v.Verify(sig, strconv.FormatInt(now.Unix(), 10), body))

	skewed := now.Add(-30 * time.Second)
	require.NoError(t, v.Verify(v.Sign(skewed, body), strconv.FormatInt(skewed.Unix(), 10), body))
}

func TestVerifierRejects(t *testing.T) {
	v, now := fixedVerifier("secret")
	other, _ := fixedVerifier("other")
	body := []byte(`{"event":"meeting.participant_left"}`)
	ts := strconv.FormatInt(now.Unix(), 10)
	stale := now.Add(-2 * time.Minute)

	cases := map[string]struct {
		signature string
		timestamp string
		body      []byte
	}{
		"missing headers": {"", "", body},
		"bad timestamp":   {v.Sign(now, body), "yesterday", body},
		"stale timestamp": {v.Sign(stale, body), strconv.FormatInt(stale.Unix(), 10), body},
		"tampered body":   {v.Sign(now, body), ts, []byte(`{}`)},
		"wrong secret":    {other.Sign(now, body), ts, body},
		"unknown version": {"v1=" + v.digest(ts, body), ts, body},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := v.Verify(tc.signature, tc.timestamp, tc.body)
			require.Error(t, err)
			require.True(t, appErrors.Is(err, appErrors.ErrInvalidSignature))
		})
	}
}

func TestVerifierWithoutSecret(t *testing.T) {
	v, now := fixedVerifier("")
	err := v.Verify(v.Sign(now, nil), strconv.FormatInt(now.Unix(), 10), nil)
	require.True(t, appErrors.Is(err, appErrors.ErrInternal))
}
