package chatmesh

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// signFrame computes the HMAC-SHA256 integrity code over the canonical
// signing payload. The field order mirrors the server side exactly; the
// connection id and message id are server-stamped and never signed.
func signFrame(secret []byte, f *Frame) string {
	payload := strings.Join([]string{
		f.Kind,
		f.SubType,
		f.AccessToken,
		f.Body,
		f.StickerRef,
		f.ReactionRef,
		f.ChatID,
	}, "|")

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
