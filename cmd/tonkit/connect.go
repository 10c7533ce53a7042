package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"tonkit/tonconnect"
)

// connectStoragePath keeps CLI sessions under the user config dir so
// restore works across invocations.
func connectStoragePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Join(dir, "tonkit"), 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "tonkit", "tonconnect.json"), nil
}

func commandConnect() *cli.Command {
	manifestFlag := &cli.StringFlag{
		Name:    "manifest",
		Usage:   "dapp manifest URL",
		EnvVars: []string{"TONCONNECT_MANIFEST_URL"},
		Value:   "https://raw.githubusercontent.com/ton-community/tutorials/main/03-client/test/public/tonconnect-manifest.json",
	}
	walletFlag := &cli.StringFlag{
		Name:  "wallet",
		Usage: "wallet app_name from the catalogue",
		Value: "tonkeeper",
	}

	return &cli.Command{
		Name:  "connect",
		Usage: "TonConnect wallet session demo",
		Subcommands: []*cli.Command{
			{
				Name:  "wallets",
				Usage: "list wallet apps from the public catalogue",
				Action: func(c *cli.Context) error {
					loader := tonconnect.NewWalletsLoader()
					apps, err := loader.Load(c.Context)
					if err != nil {
						return err
					}
					for _, app := range apps {
						fmt.Printf("%-16s %s\n", app.AppName, app.Name)
					}
					return nil
				},
			},
			{
				Name:  "start",
				Usage: "open a session and wait for the wallet to connect",
				Flags: []cli.Flag{manifestFlag, walletFlag},
				Action: func(c *cli.Context) error {
					path, err := connectStoragePath()
					if err != nil {
						return err
					}
					tc := tonconnect.New(tonconnect.NewFileStorage(path), c.String("manifest"))
					app, err := tc.WalletApp(c.Context, c.String("wallet"))
					if err != nil {
						return err
					}

					conn := tc.Connector("cli")
					link, err := conn.ConnectWallet(c.Context, app)
					if err != nil {
						return err
					}
					fmt.Println("open this link in your wallet:")
					fmt.Println(link)

					info, err := conn.WaitConnect(c.Context)
					if err != nil {
						return err
					}
					fmt.Println("connected:", info.Account.Address)
					conn.Pause()
					return nil
				},
			},
			{
				Name:      "send",
				Usage:     "send a TON transfer through the connected wallet",
				ArgsUsage: "<destination> <amount in nanotons>",
				Flags: []cli.Flag{
					manifestFlag,
					&cli.StringFlag{Name: "comment", Usage: "transfer comment"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return fmt.Errorf("expected destination and amount")
					}
					path, err := connectStoragePath()
					if err != nil {
						return err
					}
					tc := tonconnect.New(tonconnect.NewFileStorage(path), c.String("manifest"))
					conn := tc.Connector("cli")
					if err := conn.RestoreConnection(c.Context); err != nil {
						return err
					}

					id, err := conn.SendTransfer(c.Context, c.Args().Get(0), c.Args().Get(1), c.String("comment"))
					if err != nil {
						return err
					}
					fmt.Println("confirm the transaction in your wallet...")
					res, err := conn.WaitTransaction(c.Context, id)
					if err != nil {
						return err
					}
					fmt.Println("signed:", res.BOC)
					conn.Pause()
					return nil
				},
			},
			{
				Name:  "disconnect",
				Usage: "drop the stored wallet session",
				Flags: []cli.Flag{manifestFlag},
				Action: func(c *cli.Context) error {
					path, err := connectStoragePath()
					if err != nil {
						return err
					}
					tc := tonconnect.New(tonconnect.NewFileStorage(path), c.String("manifest"))
					conn := tc.Connector("cli")
					if err := conn.RestoreConnection(c.Context); err != nil {
						return err
					}
					if err := conn.Disconnect(c.Context); err != nil && !tonconnect.UserRejected(err) {
						return err
					}
					fmt.Println("disconnected")
					return nil
				},
			},
		},
	}
}
