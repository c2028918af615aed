package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/storage/database/inmem"
	testutil "github.com/trezcool/darasa/tests"
)

var acctRepo account.Repository

func setup(t *testing.T) *commandLine {
	t.Helper()

	// set up DB & repos
	acctRepo = inmemdb.NewAccountRepository(inmemdb.NewDB())
	conf := &core.Config{
		AppName:            "Darasa",
		TestMode:           true,
		OTPExpirationDelta: 5 * time.Minute,
		OTPResendCooldown:  time.Minute,
		OTPLength:          6,
	}
	acctSvc := account.NewService(acctRepo, &testutil.NotifierMock{}, conf)

	// start CLI
	return &commandLine{
		db:       &sqlx.DB{},
		acctRepo: acctRepo,
		acctSvc:  acctSvc,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "assignment", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	acct := testutil.CreateAccount(t, acctRepo, "Jane", "jane@test.local", "+254700000001", "0ldP@ssw0rd",
		account.RoleStudent, account.ApprovalApproved, account.StatusActive)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.local"}, wantErr: errHelp},
		{name: "account not found", args: []string{"resetpassword", "-email", "lol@test.local"}, extra: extra{pwd: "lol"}, wantErr: account.ErrNotFound},
		{name: "reset with email", args: []string{"resetpassword", "-email", acct.Email}, extra: extra{pwd: "N3wP@ssw0rd"}},
		{name: "reset with phone", args: []string{"resetpassword", "-email", acct.PhoneNumber}, extra: extra{pwd: "0th3rP@ssw0rd"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshed, err := acctRepo.GetAccount(context.Background(), account.GetFilter{ID: acct.ID})
				if err != nil {
					t.Fatalf("GetAccount(): %v", err)
				}
				if bytes.Equal(refreshed.PasswordHash, acct.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_addAdmin(t *testing.T) {
	cli := setup(t)

	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("Adm1nP@ss!"), nil }

	if err := cli.run([]string{"admin", "addadmin", "-name", "Root", "-email", "root@test.local"}); err != nil {
		t.Fatalf("cli.run(): %v", err)
	}
	acct, err := acctRepo.GetAccount(context.Background(), account.GetFilter{EmailOrPhone: "root@test.local"})
	if err != nil {
		t.Fatalf("GetAccount(): %v", err)
	}
	if acct.Role != account.RoleAdmin || !acct.Verified || acct.Approval != account.ApprovalApproved {
		t.Errorf("unexpected admin account %+v", acct)
	}

	// running again updates in place
	if err = cli.run([]string{"admin", "addadmin", "-name", "Boss", "-email", "root@test.local", "-phone", "+254700000009"}); err != nil {
		t.Fatalf("cli.run(): %v", err)
	}
	updated, err := acctRepo.GetAccount(context.Background(), account.GetFilter{EmailOrPhone: "root@test.local"})
	if err != nil {
		t.Fatalf("GetAccount(): %v", err)
	}
	if updated.ID != acct.ID {
		t.Error("expected the same account")
	}
	if updated.Name != "Boss" || updated.PhoneNumber != "+254700000009" {
		t.Errorf("unexpected admin account %+v", updated)
	}
}

func Test_commandLine_approve(t *testing.T) {
	cli := setup(t)

	acct := testutil.CreateAccount(t, acctRepo, "Jane", "jane@test.local", "+254700000001", "s3cr3t!",
		account.RoleTeacher, account.ApprovalPending, account.StatusActive)

	tests := []cliTest{
		{name: "no args", args: []string{"approve"}, wantErr: errHelp},
		{name: "account not found", args: []string{"approve", "-email", "lol@test.local"}, wantErr: account.ErrNotFound},
		{name: "approve", args: []string{"approve", "-email", acct.Email}},
		{name: "nothing left to approve", args: []string{"approve", "-email", acct.Email}, wantErr: account.ErrNoPendingApproval},
		{name: "pending is empty", args: []string{"pending"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
