package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lostandfound/internal/models"
)

func newTempPwFixture(t *testing.T) (TempPasswordService, *fakeUserRepo, AuthService, *recordingAudit) {
	t.Helper()
	auth := NewAuthService()
	hash, err := auth.HashPassword("original-password")
	require.NoError(t, err)
	users := newFakeUserRepo(&models.User{ID: 1, Email: testEmail, Phone: testPhone, PasswordHash: hash})
	audit := &recordingAudit{}
	return NewTempPasswordService(users, auth, audit, 8), users, auth, audit
}

func TestIssueSetsForcedChange(t *testing.T) {
	svc, users, auth, audit := newTempPwFixture(t)

	password, err := svc.Issue(1)
	require.NoError(t, err)
	assert.Len(t, password, 8)

	u := users.state(1)
	assert.True(t, u.MustChangePassword)
	assert.NoError(t, auth.CheckPassword(u.PasswordHash, password))
	assert.Error(t, auth.CheckPassword(u.PasswordHash, "original-password"))

	e := audit.last()
	assert.Equal(t, models.EventResetRequest, e.Type)
	assert.True(t, e.Success)
}

func TestIssueUnknownUser(t *testing.T) {
	svc, _, _, _ := newTempPwFixture(t)

	_, err := svc.Issue(42)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestFinalizeForcedSkipsCurrentPassword(t *testing.T) {
	svc, users, auth, _ := newTempPwFixture(t)

	_, err := svc.Issue(1)
	require.NoError(t, err)

	// forced change: the temporary credential is not re-checked
	require.NoError(t, svc.Finalize(1, "", "fresh-password"))

	u := users.state(1)
	assert.False(t, u.MustChangePassword)
	assert.NoError(t, auth.CheckPassword(u.PasswordHash, "fresh-password"))
}

func TestFinalizeNormalRequiresCurrentPassword(t *testing.T) {
	svc, users, auth, _ := newTempPwFixture(t)

	err := svc.Finalize(1, "not-the-password", "fresh-password")
	assert.ErrorIs(t, err, ErrWrongPassword)
	assert.NoError(t, auth.CheckPassword(users.state(1).PasswordHash, "original-password"))

	require.NoError(t, svc.Finalize(1, "original-password", "fresh-password"))
	assert.NoError(t, auth.CheckPassword(users.state(1).PasswordHash, "fresh-password"))
	assert.False(t, users.state(1).MustChangePassword)
}

func TestFinalizeRejectsShortPassword(t *testing.T) {
	svc, users, _, _ := newTempPwFixture(t)

	_, err := svc.Issue(1)
	require.NoError(t, err)

	require.Error(t, svc.Finalize(1, "", "abc"))

	// the flag stays set until a valid change lands
	assert.True(t, users.state(1).MustChangePassword)
}

func TestFlagOnlyFlipsThroughIssueAndFinalize(t *testing.T) {
	svc, users, _, _ := newTempPwFixture(t)

	assert.False(t, users.state(1).MustChangePassword)

	_, err := svc.Issue(1)
	require.NoError(t, err)
	assert.True(t, users.state(1).MustChangePassword)

	// a second issue keeps the flag set
	_, err = svc.Issue(1)
	require.NoError(t, err)
	assert.True(t, users.state(1).MustChangePassword)

	require.NoError(t, svc.Finalize(1, "", "fresh-password"))
	assert.False(t, users.state(1).MustChangePassword)
}
