package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingHash   = errors.New("init data has no hash field")
	ErrBadSignature  = errors.New("init data signature mismatch")
	ErrStaleInitData = errors.New("init data is too old")
)

// TelegramUser is the user object embedded in Telegram WebApp init data.
type TelegramUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// VerifyInitData validates a Telegram WebApp initData blob against the bot
// token. The check string is every field except hash, sorted by key and
// joined as key=value lines; the expected hash is
// HMAC-SHA256(HMAC-SHA256("WebAppData", botToken), checkString).
// When maxAge > 0 the auth_date field must not be older than maxAge.
func VerifyInitData(initData, botToken string, maxAge time.Duration, now time.Time) (*TelegramUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse init data: %w", err)
	}

	gotHash := values.Get("hash")
	if gotHash == "" {
		return nil, ErrMissingHash
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}
	checkString := strings.Join(lines, "\n")

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(checkString))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(gotHash)) {
		return nil, ErrBadSignature
	}

	if maxAge > 0 {
		authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse auth_date: %w", err)
		}
		if now.Sub(time.Unix(authDate, 0)) > maxAge {
			return nil, ErrStaleInitData
		}
	}

	var user TelegramUser
	if raw := values.Get("user"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return nil, fmt.Errorf("failed to parse user field: %w", err)
		}
	}
	return &user, nil
}

// SyntheticCredentials derives the deterministic account credentials for a
// Telegram user id. The password is keyed on the bot token, so the same id
// always maps to the same account and nobody without the token can derive it.
func SyntheticCredentials(telegramID int64, botToken string) (email, password string) {
	email = fmt.Sprintf("tg%d@autocare.app", telegramID)

	mac := hmac.New(sha256.New, []byte(botToken))
	fmt.Fprintf(mac, "autocare-tg:%d", telegramID)
	password = hex.EncodeToString(mac.Sum(nil))[:32]
	return email, password
}
