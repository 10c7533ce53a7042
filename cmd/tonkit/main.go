package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"tonkit/client"
)

func init() {
	// for development
	//nolint:errcheck
	godotenv.Load("../../.env")

	// for production
	//nolint:errcheck
	godotenv.Load("./.env")
}

func main() {
	app := &cli.App{
		Name:  "tonkit",
		Usage: "TON wallets, tokens, DNS and TonConnect from the command line",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "testnet",
				Usage: "use the testnet",
			},
		},
		Commands: []*cli.Command{
			commandWallet(),
			commandTransferLink(),
			commandAccount(),
			commandDNS(),
			commandJetton(),
			commandNFT(),
			commandConnect(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func network(c *cli.Context) client.Network {
	if c.Bool("testnet") {
		return client.Testnet
	}
	return client.Mainnet
}

// provider builds the on-chain client from flags: a specific HTTP
// provider when its key flag is set, native liteservers otherwise.
func provider(c *cli.Context) (client.Client, error) {
	net := network(c)
	if key := c.String("toncenter-key"); key != "" || c.String("provider") == "toncenter" {
		return client.NewToncenter(net, key), nil
	}
	if key := c.String("tonapi-key"); key != "" || c.String("provider") == "tonapi" {
		return client.NewTonapi(net, key), nil
	}
	configURL := client.MainnetConfigURL
	if net == client.Testnet {
		configURL = client.TestnetConfigURL
	}
	return client.NewLiteserver(c.Context, net, configURL)
}

func providerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "provider",
			Usage: "chain data provider: liteserver, toncenter or tonapi",
			Value: "liteserver",
		},
		&cli.StringFlag{
			Name:    "toncenter-key",
			Usage:   "toncenter API key",
			EnvVars: []string{"TONCENTER_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "tonapi-key",
			Usage:   "tonapi API key",
			EnvVars: []string{"TONAPI_API_KEY"},
		},
	}
}
