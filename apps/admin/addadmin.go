package main

import (
	"context"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
)

// addAdmin updates or creates the admin account.
func (cli *commandLine) addAdmin(name, email, phone, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	phone = core.CleanString(phone)
	now := time.Now().UTC()

	acct, err := cli.acctRepo.GetAccount(ctx, account.GetFilter{EmailOrPhone: email})
	if err != nil {
		if err != account.ErrNotFound {
			return err
		}
		acct = account.Account{
			Name:        name,
			Email:       email,
			PhoneNumber: phone,
			Role:        account.RoleAdmin,
			Status:      account.StatusActive,
			Approval:    account.ApprovalApproved,
			Verified:    true,
			CreatedAt:   now,
		}
		if err = acct.SetPassword(pwd); err != nil {
			return err
		}
		acct.UpdatedAt = now
		_, err = cli.acctRepo.CreateAccount(ctx, acct)
		return err
	}

	acct.Name = name
	if phone != "" {
		acct.PhoneNumber = phone
	}
	if err = acct.SetPassword(pwd); err != nil {
		return err
	}
	acct.UpdatedAt = now
	_, err = cli.acctRepo.UpdateAccount(ctx, acct)
	return err
}
