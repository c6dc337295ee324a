package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "campusevents-test"
)

func TestIssueAndParse(t *testing.T) {
	token, exp, err := Issue("2021-0001", RoleStudent, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := Parse(token, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "2021-0001", claims.Subject)
	assert.Equal(t, RoleStudent, claims.Role)
}

func TestParseExpiredToken(t *testing.T) {
	token, _, err := Issue("2021-0001", RoleAdmin, testIssuer, testKey, -time.Minute)
	require.NoError(t, err)

	_, err = Parse(token, testKey, testIssuer)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestParseFailsClosed(t *testing.T) {
	token, _, err := Issue("2021-0001", RoleOfficer, testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	cases := map[string]struct {
		token  string
		key    string
		issuer string
	}{
		"garbage":        {token: "not.a.jwt", key: testKey, issuer: testIssuer},
		"empty":          {token: "", key: testKey, issuer: testIssuer},
		"wrong key":      {token: token, key: "other-key", issuer: testIssuer},
		"wrong issuer":   {token: token, key: testKey, issuer: "someone-else"},
		"tampered token": {token: token + "x", key: testKey, issuer: testIssuer},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(tc.token, tc.key, tc.issuer)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestParseRejectsUnknownRole(t *testing.T) {
	// A token signed with our key but carrying a role outside the closed
	// set must not verify.
	token, _, err := Issue("2021-0001", Role("SUPERUSER"), testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	_, err = Parse(token, testKey, testIssuer)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestStripBearer(t *testing.T) {
	assert.Equal(t, "abc.def.ghi", StripBearer("Bearer abc.def.ghi"))
	assert.Equal(t, "abc.def.ghi", StripBearer("bearer   abc.def.ghi"))
	assert.Equal(t, "abc.def.ghi", StripBearer("abc.def.ghi"))
	assert.Equal(t, "", StripBearer(""))
}
