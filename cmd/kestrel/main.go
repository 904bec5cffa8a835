package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/kestrelfs/kestrel/internal/logger"
	"github.com/kestrelfs/kestrel/pkg/config"
	"github.com/kestrelfs/kestrel/pkg/crypto"
	"github.com/kestrelfs/kestrel/pkg/fs"
	"github.com/kestrelfs/kestrel/pkg/session"
	"github.com/kestrelfs/kestrel/pkg/sharing"
)

const usage = `kestrel - sharing-capability index for an encrypted file store

Usage:
  kestrel [flags] <command> [args]

Commands:
  ls <path>                          list entries visible at path
  shared-with <path>                 show who has access to one entry
  shares <path>                      list every grant in or below path
  grant <read|write> <path> <name>.. record an access grant
  revoke <read|write> <path> <name>. record an access revocation
  revoke-all <path>                  drop every grant on one entry

Flags:
`

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	logLevel := flag.String("log-level", "", "Log level override (DEBUG, INFO, WARN, ERROR)")
	owner := flag.String("owner", "", "Principal to sign in as (required)")
	keyHex := flag.String("key", "", "Hex-encoded root key (generated and printed when omitted)")

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration: %v", err)
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger.SetLevel(cfg.Logging.Level)

	if *owner == "" {
		logger.Fatal("-owner is required")
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()
	suite := crypto.NewSuite()

	key, err := loadKey(suite, *keyHex)
	if err != nil {
		logger.Fatal("Invalid key: %v", err)
	}

	blockStore, err := config.CreateBlockStore(ctx, &cfg.Store, suite.Hasher)
	if err != nil {
		logger.Fatal("Failed to create block store: %v", err)
	}
	defer func() {
		if err := blockStore.Close(); err != nil {
			logger.Error("Failed to close block store: %v", err)
		}
	}()

	store := fs.NewStore(blockStore, suite)
	sess, err := session.New(ctx, store, *owner, key)
	if err != nil {
		logger.Fatal("Failed to open session: %v", err)
	}

	if err := run(ctx, sess, flag.Args()); err != nil {
		logger.Fatal("%v", err)
	}
}

// loadKey decodes the root key, or generates a fresh one and prints it so
// the same tree can be opened again.
func loadKey(suite *crypto.Suite, keyHex string) ([]byte, error) {
	if keyHex == "" {
		key, err := suite.NewKey()
		if err != nil {
			return nil, err
		}
		fmt.Printf("generated root key: %s\n", hex.EncodeToString(key))
		return key, nil
	}

	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, err
	}
	if len(key) != crypto.KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", crypto.KeySize, len(key))
	}
	return key, nil
}

func run(ctx context.Context, sess *session.Session, args []string) error {
	command, args := args[0], args[1:]

	switch command {
	case "ls":
		if len(args) != 1 {
			return fmt.Errorf("usage: ls <path>")
		}
		return runLs(ctx, sess, fs.NewPath(args[0]))

	case "shared-with":
		if len(args) != 1 {
			return fmt.Errorf("usage: shared-with <path>")
		}
		return runSharedWith(ctx, sess, fs.NewPath(args[0]))

	case "shares":
		if len(args) != 1 {
			return fmt.Errorf("usage: shares <path>")
		}
		return runShares(ctx, sess, fs.NewPath(args[0]))

	case "grant", "revoke":
		if len(args) < 3 {
			return fmt.Errorf("usage: %s <read|write> <path> <name>...", command)
		}
		access, err := parseAccess(args[0])
		if err != nil {
			return err
		}
		return runGrantRevoke(ctx, sess, command, access, fs.NewPath(args[1]), args[2:])

	case "revoke-all":
		if len(args) != 1 {
			return fmt.Errorf("usage: revoke-all <path>")
		}
		return sess.RevokeAll(ctx, fs.NewPath(args[0]))

	default:
		return fmt.Errorf("unknown command: %q", command)
	}
}

func parseAccess(s string) (sharing.Access, error) {
	switch s {
	case "read":
		return sharing.AccessRead, nil
	case "write":
		return sharing.AccessWrite, nil
	default:
		return 0, fmt.Errorf("unknown access %q (expected read or write)", s)
	}
}

func runLs(ctx context.Context, sess *session.Session, p fs.Path) error {
	children, err := sess.Children(ctx, p)
	if err != nil {
		return err
	}

	for _, child := range children {
		kind := "file"
		if child.IsDir() {
			kind = "dir"
		}
		fmt.Printf("%-4s %8d  %s\n", kind, child.Size(), child.Name())
	}
	return nil
}

func runSharedWith(ctx context.Context, sess *session.Session, p fs.Path) error {
	state, err := sess.SharedWith(ctx, p)
	if err != nil {
		return err
	}

	if state.IsEmpty() {
		fmt.Printf("%s is not shared\n", p)
		return nil
	}

	for _, name := range state.ReadAccess {
		fmt.Printf("read   %s\n", name)
	}
	for _, name := range state.WriteAccess {
		fmt.Printf("write  %s\n", name)
	}
	return nil
}

func runShares(ctx context.Context, sess *session.Session, p fs.Path) error {
	reads, err := sess.ReadShares(ctx, p)
	if err != nil {
		return err
	}
	writes, err := sess.WriteShares(ctx, p)
	if err != nil {
		return err
	}

	printShares("read", reads)
	printShares("write", writes)
	return nil
}

func printShares(kind string, shares map[fs.Path][]string) {
	paths := make([]string, 0, len(shares))
	for p := range shares {
		paths = append(paths, string(p))
	}
	sort.Strings(paths)

	for _, p := range paths {
		for _, name := range shares[fs.Path(p)] {
			fmt.Printf("%-6s %s  %s\n", kind, p, name)
		}
	}
}

func runGrantRevoke(ctx context.Context, sess *session.Session, command string, access sharing.Access, p fs.Path, names []string) error {
	switch {
	case command == "grant" && access == sharing.AccessRead:
		return sess.GrantRead(ctx, p, names...)
	case command == "grant":
		return sess.GrantWrite(ctx, p, names...)
	case access == sharing.AccessRead:
		return sess.RevokeRead(ctx, p, names...)
	default:
		return sess.RevokeWrite(ctx, p, names...)
	}
}
