package main

import (
	"fmt"
	"math/big"

	"github.com/urfave/cli/v2"
	"github.com/xssnick/tonutils-go/address"

	"tonkit/dns"
	"tonkit/jetton"
	"tonkit/nft"
)

func printContent(c *jetton.Content) {
	if c.URI != "" {
		fmt.Println("content:    ", c.URI)
	}
	for key, val := range c.Attributes {
		fmt.Printf("%-12s %s\n", key+":", val)
	}
}

func commandDNS() *cli.Command {
	return &cli.Command{
		Name:  "dns",
		Usage: "TON DNS operations",
		Subcommands: []*cli.Command{
			{
				Name:      "resolve",
				Usage:     "resolve a .ton domain to its wallet address",
				ArgsUsage: "<domain>",
				Flags:     providerFlags(),
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("expected exactly one domain")
					}
					p, err := provider(c)
					if err != nil {
						return err
					}
					defer p.Close()

					resolver, err := dns.NewResolver(c.Context, p)
					if err != nil {
						return err
					}
					addr, err := resolver.ResolveWallet(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					fmt.Println(addr.String())
					return nil
				},
			},
			{
				Name:      "site",
				Usage:     "resolve a .ton domain to its site ADNL address",
				ArgsUsage: "<domain>",
				Flags:     providerFlags(),
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("expected exactly one domain")
					}
					p, err := provider(c)
					if err != nil {
						return err
					}
					defer p.Close()

					resolver, err := dns.NewResolver(c.Context, p)
					if err != nil {
						return err
					}
					adnl, err := resolver.ResolveSite(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					fmt.Printf("%x\n", adnl)
					return nil
				},
			},
		},
	}
}

func commandJetton() *cli.Command {
	return &cli.Command{
		Name:  "jetton",
		Usage: "jetton master and wallet inspection",
		Subcommands: []*cli.Command{
			{
				Name:      "info",
				Usage:     "print jetton master data",
				ArgsUsage: "<master address>",
				Flags:     providerFlags(),
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("expected exactly one master address")
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

					data, err := jetton.NewMaster(p, addr).GetData(c.Context)
					if err != nil {
						return err
					}
					fmt.Println("total_supply:", data.TotalSupply.String())
					fmt.Println("mintable:    ", data.Mintable)
					if data.Admin != nil {
						fmt.Println("admin:       ", data.Admin.String())
					}
					if data.Content != nil {
						printContent(data.Content)
					}
					return nil
				},
			},
			{
				Name:      "balance",
				Usage:     "print an owner's jetton balance",
				ArgsUsage: "<master address> <owner address>",
				Flags:     providerFlags(),
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return fmt.Errorf("expected master and owner addresses")
					}
					master, err := address.ParseAddr(c.Args().Get(0))
					if err != nil {
						return err
					}
					owner, err := address.ParseAddr(c.Args().Get(1))
					if err != nil {
						return err
					}
					p, err := provider(c)
					if err != nil {
						return err
					}
					defer p.Close()

					w, err := jetton.NewMaster(p, master).GetWallet(c.Context, owner)
					if err != nil {
						return err
					}
					balance, err := w.GetBalance(c.Context)
					if err != nil {
						return err
					}
					fmt.Println(balance.String())
					return nil
				},
			},
		},
	}
}

func commandNFT() *cli.Command {
	return &cli.Command{
		Name:  "nft",
		Usage: "NFT collection and item inspection",
		Subcommands: []*cli.Command{
			{
				Name:      "info",
				Usage:     "print NFT item data",
				ArgsUsage: "<item address>",
				Flags:     providerFlags(),
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("expected exactly one item address")
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

					item := nft.NewItem(p, addr)
					data, err := item.GetData(c.Context)
					if err != nil {
						return err
					}
					fmt.Println("initialized:", data.Initialized)
					fmt.Println("index:      ", data.Index.String())
					if data.Collection != nil {
						fmt.Println("collection: ", data.Collection.String())
					}
					if data.Owner != nil {
						fmt.Println("owner:      ", data.Owner.String())
					}
					if content, err := item.GetContent(c.Context); err == nil {
						printContent(content)
					}
					return nil
				},
			},
			{
				Name:      "item-address",
				Usage:     "derive an item address from its collection and index",
				ArgsUsage: "<collection address> <index>",
				Flags:     providerFlags(),
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return fmt.Errorf("expected collection address and index")
					}
					addr, err := address.ParseAddr(c.Args().Get(0))
					if err != nil {
						return err
					}
					index, ok := new(big.Int).SetString(c.Args().Get(1), 10)
					if !ok {
						return fmt.Errorf("bad index %q", c.Args().Get(1))
					}
					p, err := provider(c)
					if err != nil {
						return err
					}
					defer p.Close()

					item, err := nft.NewCollection(p, addr).GetItemAddress(c.Context, index)
					if err != nil {
						return err
					}
					fmt.Println(item.String())
					return nil
				},
			},
		},
	}
}
