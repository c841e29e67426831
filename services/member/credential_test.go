package member

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCredentialRoundTrip(t *testing.T) {
	cred := Credential{
		MemberID:   "123",
		QRToken:    "tok-abc",
		NationalID: "12.345.678-9",
	}

	encoded, err := cred.Encode()
	require.NoError(t, err)

	decoded, err := DecodeCredential(encoded)
	require.NoError(t, err)
	require.Equal(t, &cred, decoded)
}

func TestDecodeCredentialRejectsMalformedPayloads(t *testing.T) {
	encode := func(s string) string {
		return base64.URLEncoding.EncodeToString([]byte(s))
	}

	cases := map[string]string{
		"not base64":      "%%%not-base64%%%",
		"not json":        encode("hello"),
		"unknown field":   encode(`{"member_id":"1","qr_token":"t","national_id":"n","extra":true}`),
		"missing field":   encode(`{"member_id":"1","qr_token":"t"}`),
		"empty field":     encode(`{"member_id":"1","qr_token":"","national_id":"n"}`),
		"trailing data":   encode(`{"member_id":"1","qr_token":"t","national_id":"n"}{}`),
		"wrong top level": encode(`["member_id","qr_token"]`),
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCredential(payload)
			require.ErrorIs(t, err, ErrInvalidCredential)
		})
	}
}

func TestEncodeRequiresAllFields(t *testing.T) {
	_, err := Credential{MemberID: "1", QRToken: "t"}.Encode()
	require.ErrorIs(t, err, ErrInvalidCredential)
}
