// Package jobs hosts the background tasks that run alongside the API server.
package jobs

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
)

// NowFunc is stubbed in tests.
var NowFunc = time.Now

// StartApprovalReminderJob reminds the admin once a day (at the configured
// time-of-day) about accounts still waiting for approval. A day with nothing
// pending only logs. Errors are logged and the job keeps ticking.
func StartApprovalReminderJob(
	ctx context.Context,
	svc account.ServiceInterface,
	notifier core.Notifier,
	conf *core.Config,
	logger core.Logger,
) {
	go func() {
		for {
			next := nextRunAt(NowFunc(), conf.ReminderHour, conf.ReminderMinute)
			timer := time.NewTimer(next.Sub(NowFunc()))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				if err := RunApprovalReminder(ctx, svc, notifier, logger); err != nil {
					logger.Error(fmt.Sprintf("approval reminder job: %v", err), err)
				}
			}
		}
	}()
}

// RunApprovalReminder does one pass: look up the pending accounts and mail
// the admin a summary. The admin is resolved by role, not by the configured
// seed contacts. Split out so the admin CLI can trigger it on demand.
func RunApprovalReminder(
	ctx context.Context,
	svc account.ServiceInterface,
	notifier core.Notifier,
	logger core.Logger,
) error {
	pending, err := svc.PendingAccounts(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		logger.Info("approval reminder: nothing pending")
		return nil
	}

	admin, err := svc.GetAdmin(ctx)
	if err != nil {
		return err
	}

	lines := make([]string, 0, len(pending))
	for _, acct := range pending {
		lines = append(lines, fmt.Sprintf("- %s <%s> (%s), registered %s",
			acct.Name, acct.Email, acct.Role, acct.CreatedAt.Format("2006-01-02")))
	}
	notifier.Notify(&core.EmailMessage{
		To:      []mail.Address{{Name: admin.Name, Address: admin.Email}},
		Subject: fmt.Sprintf("%d account(s) awaiting approval", len(pending)),
		BodyStr: fmt.Sprintf(
			"Dear %s,\n\nThe following accounts are waiting for your approval:\n\n%s",
			admin.Name, strings.Join(lines, "\n"),
		),
	})
	logger.Info(fmt.Sprintf("approval reminder: notified admin about %d pending account(s)", len(pending)))
	return nil
}

// nextRunAt returns the next occurrence of hour:minute strictly after now.
func nextRunAt(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
