package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/term"

	"github.com/starkwallet-io/starkwallet-client/internal/config"
	"github.com/starkwallet-io/starkwallet-client/internal/log"
	"github.com/starkwallet-io/starkwallet-client/internal/network"
	"github.com/starkwallet-io/starkwallet-client/internal/sdk"
	"github.com/starkwallet-io/starkwallet-client/internal/storage"
	"github.com/starkwallet-io/starkwallet-client/internal/wallet"
	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: starkwallet <command> [args]

commands:
  create                     generate a key and connect a new wallet
  import <private-key>       import an existing private key
  list                       list stored wallets
  status                     show the active wallet and its deployment state
  balance                    show the active wallet's ETH balance
  deploy                     deploy the active wallet's account contract
  send <to> <entrypoint> [calldata...]
                             execute a single call
  sign <message>             sign a message with the active wallet
  switch <network>           switch the selected network
  disconnect                 disconnect the active wallet
  wipe                       delete everything stored for this app`)
	os.Exit(2)
}

func main() {
	log.Info("starkwallet", "version", Version, "commit", Commit, "build_date", BuildDate)

	if len(os.Args) < 2 {
		usage()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal("failed to parse config", "error", err)
	}

	passphrase, err := promptPassphrase()
	if err != nil {
		log.Fatal("passphrase entry failed", "error", err)
	}

	dataDir := config.Dir()
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		log.Fatal("data dir creation failed", "dir", dataDir, "error", err)
	}
	secure, err := storage.NewFileSecureStore(filepath.Join(dataDir, "secure"), passphrase)
	if err != nil {
		log.Fatal("secure store init failed", "error", err)
	}
	general, err := storage.NewBoltGeneralStore(filepath.Join(dataDir, "starkwallet.db"))
	if err != nil {
		log.Fatal("general store init failed", "error", err)
	}
	defer func() {
		if err := general.Close(); err != nil {
			log.Error("store close failed", "error", err)
		}
	}()

	s, err := sdk.New(sdk.Options{Config: cfg, SecureStore: secure, GeneralStore: general})
	if err != nil {
		log.Fatal("sdk construction failed", "error", err)
	}
	if err := s.Initialize(ctx); err != nil {
		log.Fatal("sdk initialization failed", "error", err)
	}

	if err := run(ctx, s, os.Args[1], os.Args[2:]); err != nil {
		log.Error("command failed", "command", os.Args[1], "error", err)
		fmt.Fprintln(os.Stderr, walleterr.UserMessage(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, s *sdk.SDK, cmd string, args []string) error {
	switch cmd {
	case "create":
		w, err := s.CreateWallet(ctx)
		if err != nil {
			return err
		}
		fmt.Println("wallet created:", w.Address())
		return nil

	case "import":
		if len(args) != 1 {
			usage()
		}
		w, err := s.ImportWallet(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println("wallet imported:", w.Address())
		return nil

	case "list":
		list, err := s.ListWallets(ctx)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("no stored wallets")
			return nil
		}
		for _, k := range list {
			fmt.Printf("%s  network=%s  created=%s\n", k.Address, k.Network, k.CreatedAt)
		}
		return nil

	case "status":
		w, err := s.ActiveWallet()
		if err != nil {
			return err
		}
		fmt.Println("address: ", w.Address())
		fmt.Println("network: ", s.CurrentNetwork())
		fmt.Println("deployed:", w.IsDeployed(ctx))
		return nil

	case "balance":
		w, err := s.ActiveWallet()
		if err != nil {
			return err
		}
		bal, err := w.ETHBalance(ctx)
		if err != nil {
			return err
		}
		fmt.Println(bal, "ETH")
		return nil

	case "deploy":
		w, err := s.ActiveWallet()
		if err != nil {
			return err
		}
		res, err := w.Deploy(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("deploy %s (tx %s)\n", res.Status, res.Hash)
		return nil

	case "send":
		if len(args) < 2 {
			usage()
		}
		w, err := s.ActiveWallet()
		if err != nil {
			return err
		}
		res, err := w.Execute(ctx, []wallet.Call{{
			ContractAddress: args[0],
			Entrypoint:      args[1],
			Calldata:        args[2:],
		}}, nil)
		if err != nil {
			return err
		}
		fmt.Printf("transaction %s (%s)\n", res.Hash, res.Status)
		return nil

	case "sign":
		if len(args) != 1 {
			usage()
		}
		w, err := s.ActiveWallet()
		if err != nil {
			return err
		}
		sig, err := w.SignMessage(args[0])
		if err != nil {
			return err
		}
		fmt.Println(sig)
		return nil

	case "switch":
		if len(args) != 1 {
			usage()
		}
		if err := s.SwitchNetwork(ctx, network.Network(args[0])); err != nil {
			return err
		}
		fmt.Println("switched to", args[0])
		return nil

	case "disconnect":
		return s.DisconnectWallet(ctx)

	case "wipe":
		fmt.Print("delete ALL stored wallets and settings? type yes: ")
		var answer string
		fmt.Scanln(&answer)
		if answer != "yes" {
			fmt.Println("aborted")
			return nil
		}
		return s.ClearAppData(ctx)

	default:
		usage()
		return nil
	}
}

func promptPassphrase() ([]byte, error) {
	if p := os.Getenv("STARKWALLET_PASSPHRASE"); p != "" {
		return []byte(p), nil
	}
	fmt.Fprint(os.Stderr, "storage passphrase: ")
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	return pass, nil
}
