package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tdex-network/vaultd/internal/core/domain"
)

const (
	typeFlagName       = "type"
	labelFlagName      = "label"
	secretFlagName     = "secret"
	passphraseFlagName = "passphrase"
	quorumFlagName     = "m"
	cosignerFlagName   = "cosigner"
	lndhubFlagName     = "lndhub"
	idFlagName         = "id"
	limitFlagName      = "limit"
)

var wallet = cli.Command{
	Name:  "wallet",
	Usage: "manage the wallets of the vault",
	Subcommands: []*cli.Command{
		{
			Name:   "list",
			Usage:  "list all wallets",
			Action: listWalletsAction,
		},
		{
			Name:  "add",
			Usage: "add a new wallet",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  typeFlagName,
					Usage: "the wallet type, ie. legacy, segwitBech32, HDsegwitBech32, watchOnly, HDmultisig, lightningCustodianWallet",
					Value: domain.HDSegwitBech32Type,
				},
				&cli.StringFlag{
					Name:  labelFlagName,
					Usage: "a human readable label for the wallet",
				},
				&cli.StringFlag{
					Name:     secretFlagName,
					Usage:    "the WIF key, mnemonic, extended public key, descriptor or lndhub uri",
					Required: true,
				},
				&cli.StringFlag{
					Name:  passphraseFlagName,
					Usage: "the optional mnemonic passphrase of HD wallets",
				},
				&cli.IntFlag{
					Name:  quorumFlagName,
					Usage: "the number of required signatures of a multisig wallet",
				},
				&cli.StringSliceFlag{
					Name:  cosignerFlagName,
					Usage: "the extended public key of a multisig cosigner, repeated for each one",
				},
				&cli.StringFlag{
					Name:  lndhubFlagName,
					Usage: "the hub endpoint of a Lightning custodian wallet",
				},
			},
			Action: addWalletAction,
		},
		{
			Name:  "delete",
			Usage: "delete a wallet",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     idFlagName,
					Usage:    "the id of the wallet to delete",
					Required: true,
				},
			},
			Action: deleteWalletAction,
		},
		{
			Name:   "balance",
			Usage:  "print the total balance of the vault in BTC",
			Action: balanceAction,
		},
		{
			Name:  "transactions",
			Usage: "list the transactions of all wallets, most recent first",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  limitFlagName,
					Usage: "the max number of transactions to list, 0 for all",
				},
			},
			Action: listTransactionsAction,
		},
	},
}

type walletInfo struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Label   string `json:"label"`
	Address string `json:"address,omitempty"`
	Balance string `json:"balance"`
}

func listWalletsAction(ctx *cli.Context) error {
	svc, cleanup, err := getUnlockedService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	wallets, err := svc.Wallets()
	if err != nil {
		return err
	}

	info := make([]walletInfo, 0, len(wallets))
	for _, w := range wallets {
		base := w.Base()
		info = append(info, walletInfo{
			ID:      w.ID(),
			Type:    base.Type,
			Label:   base.Label,
			Address: w.Address(),
			Balance: base.BalanceBTC().String(),
		})
	}

	printJSON(info)
	return nil
}

func addWalletAction(ctx *cli.Context) error {
	w, err := newWallet(walletArgs{
		walletType: ctx.String(typeFlagName),
		label:      ctx.String(labelFlagName),
		secret:     ctx.String(secretFlagName),
		passphrase: ctx.String(passphraseFlagName),
		m:          ctx.Int(quorumFlagName),
		cosigners:  ctx.StringSlice(cosignerFlagName),
		lndhub:     ctx.String(lndhubFlagName),
	})
	if err != nil {
		return err
	}

	svc, cleanup, err := getUnlockedService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.AddWallet(w); err != nil {
		return err
	}
	if err := svc.SaveToDisk(ctx.Context); err != nil {
		return err
	}

	fmt.Println(w.ID())
	return nil
}

func deleteWalletAction(ctx *cli.Context) error {
	svc, cleanup, err := getUnlockedService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.DeleteWallet(ctx.String(idFlagName)); err != nil {
		return err
	}
	return save(ctx.Context, svc)
}

func balanceAction(ctx *cli.Context) error {
	svc, cleanup, err := getUnlockedService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	balance, err := svc.Balance()
	if err != nil {
		return err
	}

	fmt.Println(balance.StringFixed(8), "BTC")
	return nil
}

func listTransactionsAction(ctx *cli.Context) error {
	svc, cleanup, err := getUnlockedService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	txs, err := svc.Transactions(ctx.Int(limitFlagName))
	if err != nil {
		return err
	}

	printJSON(txs)
	return nil
}

type walletArgs struct {
	walletType string
	label      string
	secret     string
	passphrase string
	m          int
	cosigners  []string
	lndhub     string
}

func newWallet(args walletArgs) (domain.Wallet, error) {
	switch args.walletType {
	case domain.LegacyType, domain.SegwitP2SHType,
		domain.SegwitBech32Type, domain.TaprootType:
		return domain.NewSingleKeyWallet(args.walletType, args.label, args.secret)
	case domain.WatchOnlyType:
		w, err := domain.NewWatchOnlyWallet(args.label, args.secret)
		if err != nil {
			return nil, err
		}
		return w, nil
	case domain.HDMultisigType:
		w, err := domain.NewMultisigHDWallet(
			args.label, args.secret, args.m, args.cosigners,
		)
		if err != nil {
			return nil, err
		}
		return w, nil
	case domain.LightningCustodianType:
		w, err := domain.NewLightningCustodianWallet(
			args.label, args.secret, args.lndhub,
		)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		w, err := domain.NewHDWallet(
			args.walletType, args.label, args.secret, args.passphrase,
		)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
}

func printJSON(v interface{}) {
	buf, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		fmt.Println("unable to encode response: ", err)
		return
	}
	fmt.Println(string(buf))
}
