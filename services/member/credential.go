package member

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
)

// ErrInvalidCredential covers every way a scanned payload can be malformed.
// Callers surface it as a single opaque outcome; the decoder never reports
// which part of the payload was wrong.
var ErrInvalidCredential = errors.New("invalid credential")

// Credential is the canonical payload printed into a member's QR code.
// All three fields must match one member row before the gate opens.
type Credential struct {
	MemberID   string `json:"member_id"`
	QRToken    string `json:"qr_token"`
	NationalID string `json:"national_id"`
}

// Encode renders the credential as base64url over canonical JSON. This is
// what card printers embed in the QR image.
func (c Credential) Encode() (string, error) {
	if c.MemberID == "" || c.QRToken == "" || c.NationalID == "" {
		return "", ErrInvalidCredential
	}

	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}

	return base64.URLEncoding.EncodeToString(b), nil
}

// DecodeCredential parses a scanned payload. Unknown fields, missing fields
// and trailing garbage all fail; gate firmware varies and anything outside
// the canonical shape is treated as a forged or damaged code.
func DecodeCredential(encoded string) (*Credential, error) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidCredential
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var cred Credential
	if err := dec.Decode(&cred); err != nil {
		return nil, ErrInvalidCredential
	}

	if dec.More() {
		return nil, ErrInvalidCredential
	}

	if cred.MemberID == "" || cred.QRToken == "" || cred.NationalID == "" {
		return nil, ErrInvalidCredential
	}

	return &cred, nil
}
