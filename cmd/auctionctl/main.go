// Command auctionctl is the operator tool for the auction house. It encrypts
// keeper keys and sends signed requests to a running server.
//
//	auctionctl encrypt-key -key <hex> -password <pw> -out keeper.key.json
//	auctionctl call -url http://localhost:8000 -path /api/auctions -body '{...}'
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alanyoungcy/auctionhouse/internal/client"
	"github.com/alanyoungcy/auctionhouse/internal/crypto"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "encrypt-key":
		err = encryptKey(os.Args[2:])
	case "call":
		err = call(os.Args[2:])
	case "address":
		err = address(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "auctionctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: auctionctl <encrypt-key|address|call> [flags]")
}

// keyFlags registers the key source flags shared by the signing commands.
func keyFlags(fs *flag.FlagSet) *crypto.KeyConfig {
	cfg := &crypto.KeyConfig{}
	fs.StringVar(&cfg.RawPrivateKey, "key", os.Getenv("AUCTIONCTL_PRIVATE_KEY"), "hex private key")
	fs.StringVar(&cfg.EncryptedKeyPath, "key-file", "", "encrypted key file")
	fs.StringVar(&cfg.KeyPassword, "password", os.Getenv("AUCTIONCTL_KEY_PASSWORD"), "key file password")
	return cfg
}

func encryptKey(args []string) error {
	fs := flag.NewFlagSet("encrypt-key", flag.ExitOnError)
	key := fs.String("key", os.Getenv("AUCTIONCTL_PRIVATE_KEY"), "hex private key to encrypt")
	password := fs.String("password", os.Getenv("AUCTIONCTL_KEY_PASSWORD"), "encryption password")
	out := fs.String("out", "keeper.key.json", "output path")
	_ = fs.Parse(args)

	if *key == "" || *password == "" {
		return fmt.Errorf("encrypt-key: -key and -password are required")
	}
	data, err := crypto.EncryptKey(strings.TrimPrefix(*key, "0x"), *password)
	if err != nil {
		return fmt.Errorf("encrypt-key: %w", err)
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		return fmt.Errorf("encrypt-key: write %s: %w", *out, err)
	}
	fmt.Printf("wrote %s\n", *out)
	return nil
}

func address(args []string) error {
	fs := flag.NewFlagSet("address", flag.ExitOnError)
	keyCfg := keyFlags(fs)
	_ = fs.Parse(args)

	signer, err := crypto.LoadSigner(*keyCfg, 1)
	if err != nil {
		return fmt.Errorf("address: %w", err)
	}
	fmt.Println(signer.Address().Hex())
	return nil
}

func call(args []string) error {
	fs := flag.NewFlagSet("call", flag.ExitOnError)
	keyCfg := keyFlags(fs)
	baseURL := fs.String("url", "http://localhost:8000", "server base URL")
	method := fs.String("method", http.MethodPost, "HTTP method")
	path := fs.String("path", "", "request path, e.g. /api/auctions/1/bids")
	body := fs.String("body", "", "JSON request body")
	chainID := fs.Int64("chain-id", 1, "chain id the server verifies against")
	timeout := fs.Duration("timeout", 10*time.Second, "request timeout")
	_ = fs.Parse(args)

	if *path == "" {
		return fmt.Errorf("call: -path is required")
	}
	signer, err := crypto.LoadSigner(*keyCfg, *chainID)
	if err != nil {
		return fmt.Errorf("call: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	status, resp, err := client.New(*baseURL, signer, *timeout).Call(ctx, *method, *path, []byte(*body))
	if err != nil {
		return fmt.Errorf("call: %w", err)
	}

	fmt.Fprintf(os.Stderr, "%d %s\n", status, http.StatusText(status))
	fmt.Println(string(resp))
	if status >= 400 {
		return fmt.Errorf("call: server returned %d", status)
	}
	return nil
}
