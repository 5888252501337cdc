package auth

import (
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testBotToken = "12345:test-token"

func signedInitData(t *testing.T, authDate time.Time, userJSON string) string {
	t.Helper()
	values := url.Values{}
	values.Set("auth_date", fmt.Sprintf("%d", authDate.Unix()))
	values.Set("query_id", "AAH9mQ")
	if userJSON != "" {
		values.Set("user", userJSON)
	}
	values.Set("hash", SignInitData(values, testBotToken))
	return values.Encode()
}

func TestVerifyInitData(t *testing.T) {
	now := time.Now()
	userJSON := `{"id":777,"first_name":"Ann","username":"ann"}`

	t.Run("Valid", func(t *testing.T) {
		initData := signedInitData(t, now, userJSON)
		user, err := VerifyInitData(initData, testBotToken, time.Hour, now)
		require.NoError(t, err)
		require.Equal(t, int64(777), user.ID)
		require.Equal(t, "ann", user.Username)
	})

	t.Run("WrongBotToken", func(t *testing.T) {
		initData := signedInitData(t, now, userJSON)
		_, err := VerifyInitData(initData, "other:token", time.Hour, now)
		require.ErrorIs(t, err, ErrInvalidInitData)
	})

	t.Run("TamperedPayload", func(t *testing.T) {
		values := url.Values{}
		values.Set("auth_date", fmt.Sprintf("%d", now.Unix()))
		values.Set("user", userJSON)
		values.Set("hash", SignInitData(values, testBotToken))
		values.Set("user", `{"id":999,"first_name":"Eve"}`)

		_, err := VerifyInitData(values.Encode(), testBotToken, time.Hour, now)
		require.ErrorIs(t, err, ErrInvalidInitData)
	})

	t.Run("Expired", func(t *testing.T) {
		initData := signedInitData(t, now.Add(-2*time.Hour), userJSON)
		_, err := VerifyInitData(initData, testBotToken, time.Hour, now)
		require.ErrorIs(t, err, ErrExpiredInitData)
	})

	t.Run("MissingHash", func(t *testing.T) {
		_, err := VerifyInitData("auth_date=123", testBotToken, 0, now)
		require.ErrorIs(t, err, ErrInvalidInitData)
	})

	t.Run("MissingUser", func(t *testing.T) {
		initData := signedInitData(t, now, "")
		_, err := VerifyInitData(initData, testBotToken, time.Hour, now)
		require.ErrorIs(t, err, ErrInvalidInitData)
	})
}

func TestTokenManager(t *testing.T) {
	now := time.Now()

	t.Run("IssueAndParse", func(t *testing.T) {
		m := NewTokenManager("secret", time.Hour)
		token, err := m.Issue(777, now)
		require.NoError(t, err)

		tid, err := m.Parse(token)
		require.NoError(t, err)
		require.Equal(t, int64(777), tid)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		token, err := NewTokenManager("secret", time.Hour).Issue(777, now)
		require.NoError(t, err)

		_, err = NewTokenManager("other", time.Hour).Parse(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		m := NewTokenManager("secret", time.Minute)
		token, err := m.Issue(777, now.Add(-time.Hour))
		require.NoError(t, err)

		_, err = m.Parse(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := NewTokenManager("secret", time.Hour).Parse("not-a-token")
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}
