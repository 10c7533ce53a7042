package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"

	"tonkit/wallet"
)

func commandWallet() *cli.Command {
	versionFlag := &cli.StringFlag{
		Name:  "version",
		Usage: "wallet contract version (v3r2, v4r2, v5r1, highload-v2r2, ...)",
		Value: string(wallet.VersionDefault),
	}
	seedFlag := &cli.StringFlag{
		Name:    "seed",
		Usage:   "space-separated recovery phrase",
		EnvVars: []string{"WALLET_SEED"},
	}

	return &cli.Command{
		Name:  "wallet",
		Usage: "generate and inspect wallets",
		Subcommands: []*cli.Command{
			{
				Name:  "new",
				Usage: "generate a wallet and print its seed and address",
				Flags: []cli.Flag{versionFlag},
				Action: func(c *cli.Context) error {
					w, seed, err := wallet.Generate(nil, wallet.Version(c.String("version")))
					if err != nil {
						return err
					}
					fmt.Println("seed:   ", strings.Join(seed, " "))
					fmt.Println("address:", w.Address().String())
					return nil
				},
			},
			{
				Name:  "address",
				Usage: "derive the address of a seed phrase",
				Flags: []cli.Flag{versionFlag, seedFlag},
				Action: func(c *cli.Context) error {
					seed := strings.Fields(c.String("seed"))
					if len(seed) == 0 {
						return fmt.Errorf("--seed is required")
					}
					w, err := wallet.FromMnemonic(nil, seed, wallet.Version(c.String("version")))
					if err != nil {
						return err
					}
					fmt.Println(w.Address().String())
					return nil
				},
			},
		},
	}
}

func commandTransferLink() *cli.Command {
	return &cli.Command{
		Name:      "transfer-link",
		Usage:     "build a ton:// transfer deeplink",
		ArgsUsage: "<destination address>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "amount",
				Usage:    "amount in TON",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "comment",
				Usage: "transfer comment",
			},
			&cli.BoolFlag{
				Name:  "app",
				Usage: "emit the Tonkeeper app link instead of ton://",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one destination address")
			}
			to, err := address.ParseAddr(c.Args().First())
			if err != nil {
				return err
			}
			amount, err := tlb.FromTON(c.String("amount"))
			if err != nil {
				return err
			}
			link := wallet.TransferLink{
				To:     to,
				Amount: amount,
				Text:   c.String("comment"),
			}
			if c.Bool("app") {
				fmt.Println(link.AppURL())
			} else {
				fmt.Println(link.URL())
			}
			return nil
		},
	}
}

func commandAccount() *cli.Command {
	return &cli.Command{
		Name:      "account",
		Usage:     "show the state of an account",
		ArgsUsage: "<address>",
		Flags:     providerFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one address")
			}
			addr, err := address.ParseAddr(c.Args().First())
			if err != nil {
				return err
			}
			p, err := provider(c)
			if err != nil {
				return err
			}
			defer p.Close()

			acc, err := p.GetAccount(c.Context, addr)
			if err != nil {
				return err
			}
			fmt.Println("status: ", acc.Status)
			fmt.Println("balance:", acc.Balance.String(), "TON")
			fmt.Println("last_lt:", acc.LastLT)
			return nil
		},
	}
}
