package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const (
	newPwdFlagName = "new_password"
	uriFlagName    = "uri"
	txidFlagName   = "txid"
	memoFlagName   = "memo"
)

var newPasswordFlag = &cli.StringFlag{
	Name:  newPwdFlagName,
	Usage: "the new password, prompted if missing",
}

var encrypt = cli.Command{
	Name:   "encrypt",
	Usage:  "encrypt the plaintext vault with a new password",
	Flags:  []cli.Flag{newPasswordFlag},
	Action: encryptAction,
}

var decrypt = cli.Command{
	Name:   "decrypt",
	Usage:  "store the vault in plaintext, dropping every decoy storage",
	Action: decryptAction,
}

var fake = cli.Command{
	Name:   "fake",
	Usage:  "add a decoy storage, holding an empty vault, unlocked by a new password",
	Flags:  []cli.Flag{newPasswordFlag},
	Action: fakeAction,
}

var changepassword = cli.Command{
	Name:   "changepassword",
	Usage:  "change the password of the unlocked storage",
	Flags:  []cli.Flag{newPasswordFlag},
	Action: changePasswordAction,
}

var lndhub = cli.Command{
	Name:  "lndhub",
	Usage: "set the Lightning hub endpoint used by custodian wallets that don't have their own",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  uriFlagName,
			Usage: "the hub endpoint, empty to remove it",
		},
	},
	Action: lndhubAction,
}

var memo = cli.Command{
	Name:  "memo",
	Usage: "attach a memo to a transaction",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     txidFlagName,
			Usage:    "the hash of the transaction",
			Required: true,
		},
		&cli.StringFlag{
			Name:  memoFlagName,
			Usage: "the memo, empty to remove it",
		},
	},
	Action: memoAction,
}

func encryptAction(ctx *cli.Context) error {
	svc, cleanup, err := getUnlockedService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	pwd, err := getNewPassword(ctx)
	if err != nil {
		return err
	}

	if err := svc.EncryptStorage(ctx.Context, pwd); err != nil {
		return err
	}

	fmt.Println("Done")
	return nil
}

func decryptAction(ctx *cli.Context) error {
	svc, cleanup, err := getService()
	if err != nil {
		return err
	}
	defer cleanup()

	prompt := getPrompt(ctx)
	pwd, err := prompt.PromptPassword(ctx.Context, 1)
	if err != nil {
		return err
	}
	if err := svc.LoadFromDisk(ctx.Context, pwd); err != nil {
		return err
	}

	if err := svc.DecryptStorage(ctx.Context, pwd); err != nil {
		return err
	}

	fmt.Println("Done")
	return nil
}

func fakeAction(ctx *cli.Context) error {
	svc, cleanup, err := getService()
	if err != nil {
		return err
	}
	defer cleanup()

	pwd, err := getNewPassword(ctx)
	if err != nil {
		return err
	}

	if err := svc.CreateFakeStorage(ctx.Context, pwd); err != nil {
		return err
	}

	fmt.Println("Done")
	return nil
}

func changePasswordAction(ctx *cli.Context) error {
	svc, cleanup, err := getService()
	if err != nil {
		return err
	}
	defer cleanup()

	prompt := getPrompt(ctx)
	curPwd, err := prompt.PromptPassword(ctx.Context, 1)
	if err != nil {
		return err
	}
	if err := svc.LoadFromDisk(ctx.Context, curPwd); err != nil {
		return err
	}

	newPwd, err := getNewPassword(ctx)
	if err != nil {
		return err
	}

	if err := svc.ChangePassword(ctx.Context, curPwd, newPwd); err != nil {
		return err
	}

	fmt.Println("Done")
	return nil
}

func lndhubAction(ctx *cli.Context) error {
	svc, cleanup, err := getService()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.SetLegacyLightningEndpoint(
		ctx.Context, ctx.String(uriFlagName),
	); err != nil {
		return err
	}

	fmt.Println("Done")
	return nil
}

func memoAction(ctx *cli.Context) error {
	svc, cleanup, err := getUnlockedService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	txid := ctx.String(txidFlagName)
	metadata, _ := svc.TxMetadata(txid)
	metadata.Memo = ctx.String(memoFlagName)

	if err := svc.SetTxMetadata(txid, metadata); err != nil {
		return err
	}
	return save(ctx.Context, svc)
}

func getNewPassword(ctx *cli.Context) (string, error) {
	if pwd := ctx.String(newPwdFlagName); pwd != "" {
		return pwd, nil
	}
	return readNewPassword()
}
