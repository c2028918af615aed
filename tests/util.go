package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
)

// CreateAccount seeds an account straight through the repository, bypassing
// the registration flow.
func CreateAccount(
	t *testing.T,
	repo account.Repository,
	name, email, phone, pwd, role string,
	approval, status string,
	createdAt ...time.Time,
) account.Account {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	acct := account.Account{
		Name:        name,
		Email:       email,
		PhoneNumber: phone,
		Role:        role,
		Status:      status,
		Approval:    approval,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	if pwd != "" {
		if err := acct.SetPassword(pwd); err != nil {
			t.Fatalf("CreateAccount() failed: %v", err)
		}
	}
	acct, err := repo.CreateAccount(context.Background(), acct)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	return acct
}

// NotifierMock records notifications synchronously.
type NotifierMock struct {
	mu       sync.Mutex
	Messages []*core.EmailMessage
}

var _ core.Notifier = (*NotifierMock)(nil)

func (n *NotifierMock) Notify(messages ...*core.EmailMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Messages = append(n.Messages, messages...)
}

func (n *NotifierMock) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Messages = nil
}

func (n *NotifierMock) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Messages)
}

func (n *NotifierMock) Last() *core.EmailMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.Messages) == 0 {
		return nil
	}
	return n.Messages[len(n.Messages)-1]
}

// LoggerMock collects log lines; Fatal does not exit.
type LoggerMock struct {
	mu    sync.Mutex
	Lines []string
}

var _ core.Logger = (*LoggerMock)(nil)

func (l *LoggerMock) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Lines = append(l.Lines, fmt.Sprintf("%s: %s %v", level, msg, args))
}

func (l *LoggerMock) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l *LoggerMock) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l *LoggerMock) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l *LoggerMock) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l *LoggerMock) Fatal(msg string, args ...interface{}) { l.log("FATAL", msg, args) }
