package identity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pobyzaarif/goshortcute"
)

var errInvalidCode = errors.New("invalid or expired confirmation code")

// confirmationCode encrypts "email|expiry" so the link needs no server
// side storage.
func confirmationCode(key []byte, email string, expiresAt time.Time) (string, error) {
	plain := fmt.Sprintf("%v|%v", email, expiresAt.Unix())
	encrypted, err := goshortcute.AESCBCEncrypt([]byte(plain), key)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt confirmation code: %w", err)
	}
	return goshortcute.StringtoBase64Encode(encrypted), nil
}

func parseConfirmationCode(key []byte, code string, now time.Time) (email string, err error) {
	// Malformed ciphertext can panic inside the block cipher.
	defer func() {
		if r := recover(); r != nil {
			email, err = "", errInvalidCode
		}
	}()

	decoded := goshortcute.StringtoBase64Decode(code)
	plain, err := goshortcute.AESCBCDecrypt([]byte(decoded), key)
	if err != nil {
		return "", errInvalidCode
	}

	parts := strings.Split(plain, "|")
	if len(parts) != 2 || parts[0] == "" {
		return "", errInvalidCode
	}

	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", errInvalidCode
	}
	if now.After(time.Unix(ts, 0)) {
		return "", errInvalidCode
	}

	return parts[0], nil
}
