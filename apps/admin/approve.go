package main

import (
	"context"
	"fmt"

	"github.com/trezcool/darasa/core"
)

func (cli *commandLine) approve(email string) error {
	ctx := context.Background()
	acct, err := cli.acctSvc.GetByEmailOrPhone(ctx, core.CleanString(email, true))
	if err != nil {
		return err
	}
	if _, err = cli.acctSvc.Approve(ctx, acct.ID); err != nil {
		return err
	}
	fmt.Printf("approved %s <%s>\n", acct.Name, acct.Email)
	return nil
}

func (cli *commandLine) pending() error {
	pending, err := cli.acctSvc.PendingAccounts(context.Background())
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("nothing pending")
		return nil
	}
	for _, acct := range pending {
		fmt.Printf("%s  %s <%s>  %s  registered %s\n",
			acct.ID, acct.Name, acct.Email, acct.Role, acct.CreatedAt.Format("2006-01-02"))
	}
	return nil
}
