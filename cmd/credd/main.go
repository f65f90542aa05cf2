package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"credchain/config"
	"credchain/core/state"
	"credchain/crypto"
	nativecommon "credchain/native/common"
	"credchain/native/credential"
	"credchain/native/vesting"
	"credchain/observability/logging"
	"credchain/rpc"
	"credchain/storage"
)

const rewardTokenName = "Zap Points"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genKey := flag.Bool("genkey", false, "Generate a key pair, print it and exit")
	flag.Parse()

	if *genKey {
		if err := runKeygen(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate key: %v\n", err)
			os.Exit(1)
		}
		return
	}

	env := strings.TrimSpace(os.Getenv("CREDCHAIN_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup("credd", envOrConfig(env, cfg.Env), logging.Options{File: cfg.LogFile})

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)

	admin, err := cfg.Admin()
	if err != nil {
		logger.Error("invalid administrator address", slog.Any("error", err))
		os.Exit(1)
	}

	if !manager.TokenExists(cfg.RewardToken) {
		if err := manager.RegisterToken(cfg.RewardToken, rewardTokenName, 18); err != nil {
			logger.Error("failed to register reward token", slog.Any("error", err))
			os.Exit(1)
		}
	}

	feed := rpc.NewEventFeed()
	pauses := nativecommon.NewStatePauses(manager)

	registry := credential.NewRegistry(manager)
	registry.SetEmitter(feed)
	registry.SetPauses(pauses)

	ledger := credential.NewLedger(manager, registry)
	ledger.SetEmitter(feed)
	ledger.SetPauses(pauses)
	if err := ledger.Bootstrap(admin); err != nil {
		logger.Error("failed to bootstrap administrator", slog.Any("error", err))
		os.Exit(1)
	}

	rewards := vesting.NewStateRewardLedger(manager, rewardCustodyAddress(cfg.NetworkName), cfg.RewardToken)
	engine := vesting.NewEngine(manager, registry, rewards, ledger)
	engine.SetEmitter(feed)
	engine.SetPauses(pauses)

	server := rpc.NewServer(ledger, registry, engine, feed, logger)

	logger.Info("credchain daemon starting",
		slog.String("network", cfg.NetworkName),
		slog.String("rpc", cfg.RPCAddress),
		slog.String("reward_token", cfg.RewardToken))

	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// rewardCustodyAddress derives the deterministic module address holding the
// reward pool for the given network.
func rewardCustodyAddress(network string) [20]byte {
	hash := ethcrypto.Keccak256([]byte("credchain/reward-custody/" + strings.TrimSpace(network)))
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}

// runKeygen prints a fresh secp256k1 key pair for operators setting up an
// administrator identity. The private key is hex, the address bech32.
func runKeygen(w io.Writer) error {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "private key: %x\naddress: %s\n", key.Bytes(), key.PubKey().Address().String())
	return err
}

func envOrConfig(env, fallback string) string {
	if env != "" {
		return env
	}
	return fallback
}
