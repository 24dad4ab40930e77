package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var status = cli.Command{
	Name:   "status",
	Usage:  "print whether the vault is encrypted and, once unlocked, a summary of its content",
	Action: statusAction,
}

func statusAction(ctx *cli.Context) error {
	svc, cleanup, err := getService()
	if err != nil {
		return err
	}
	defer cleanup()

	encrypted, err := svc.StorageIsEncrypted(ctx.Context)
	if err != nil {
		return err
	}
	fmt.Println("encrypted:", encrypted)

	if encrypted && ctx.String(passwordFlagName) == "" {
		return nil
	}

	if err := unlock(ctx, svc); err != nil {
		return err
	}

	wallets, err := svc.Wallets()
	if err != nil {
		return err
	}
	balance, err := svc.Balance()
	if err != nil {
		return err
	}

	fmt.Println("wallets:", len(wallets))
	fmt.Println("balance:", balance.StringFixed(8), "BTC")
	return nil
}
