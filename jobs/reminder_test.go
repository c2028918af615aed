package jobs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/storage/database/inmem"
	testutil "github.com/trezcool/darasa/tests"
)

func TestRunApprovalReminder(t *testing.T) {
	ctx := context.Background()
	conf := &core.Config{
		AppName:            "Darasa",
		TestMode:           true,
		OTPExpirationDelta: 5 * time.Minute,
		OTPResendCooldown:  time.Minute,
		OTPLength:          6,
		Admin:              core.AdminConfig{Name: "Root", Email: "seed@test.local"},
	}
	repo := inmemdb.NewAccountRepository(inmemdb.NewDB())
	nmock := &testutil.NotifierMock{}
	lmock := &testutil.LoggerMock{}
	svc := account.NewService(repo, nmock, conf)

	// the stored admin's email differs from the configured seed; the summary
	// must still reach them via the role lookup
	admin := testutil.CreateAccount(t, repo, "Root", "root@test.local", "+254700000000", "s3cr3t!",
		account.RoleAdmin, account.ApprovalApproved, account.StatusActive)

	// nothing pending: log only, no mail
	require.NoError(t, RunApprovalReminder(ctx, svc, nmock, lmock))
	assert.Equal(t, 0, nmock.Count())
	require.NotEmpty(t, lmock.Lines)
	assert.Contains(t, lmock.Lines[len(lmock.Lines)-1], "nothing pending")

	older := testutil.CreateAccount(t, repo, "Jane", "jane@test.local", "+254700000001", "s3cr3t!",
		account.RoleStudent, account.ApprovalPending, account.StatusActive,
		time.Date(2021, 3, 1, 8, 0, 0, 0, time.UTC))
	newer := testutil.CreateAccount(t, repo, "John", "john@test.local", "+254700000002", "s3cr3t!",
		account.RoleTeacher, account.ApprovalPending, account.StatusActive,
		time.Date(2021, 3, 2, 8, 0, 0, 0, time.UTC))
	// approved and blocked accounts are not reported
	testutil.CreateAccount(t, repo, "Ok", "ok@test.local", "+254700000003", "s3cr3t!",
		account.RoleStudent, account.ApprovalApproved, account.StatusActive)
	testutil.CreateAccount(t, repo, "Blocked", "blocked@test.local", "+254700000004", "s3cr3t!",
		account.RoleStudent, account.ApprovalPending, account.StatusBlocked)

	require.NoError(t, RunApprovalReminder(ctx, svc, nmock, lmock))
	require.Equal(t, 1, nmock.Count())

	msg := nmock.Last()
	assert.Equal(t, "2 account(s) awaiting approval", msg.Subject)
	require.Len(t, msg.To, 1)
	assert.Equal(t, admin.Email, msg.To[0].Address)
	assert.Contains(t, msg.BodyStr, "Jane <jane@test.local> (STUDENT), registered 2021-03-01")
	assert.Contains(t, msg.BodyStr, "John <john@test.local> (TEACHER), registered 2021-03-02")
	// oldest first
	assert.Less(t, strings.Index(msg.BodyStr, older.Email), strings.Index(msg.BodyStr, newer.Email))
}

func TestNextRunAt(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			"before the run time",
			time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC),
			time.Date(2021, 3, 1, 17, 0, 0, 0, time.UTC),
		},
		{
			"exactly at the run time",
			time.Date(2021, 3, 1, 17, 0, 0, 0, time.UTC),
			time.Date(2021, 3, 2, 17, 0, 0, 0, time.UTC),
		},
		{
			"after the run time",
			time.Date(2021, 3, 1, 20, 30, 0, 0, time.UTC),
			time.Date(2021, 3, 2, 17, 0, 0, 0, time.UTC),
		},
		{
			"month rollover",
			time.Date(2021, 3, 31, 18, 0, 0, 0, time.UTC),
			time.Date(2021, 4, 1, 17, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextRunAt(tt.now, 17, 0))
		})
	}
}
