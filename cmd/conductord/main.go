// Command conductord runs C10's conductor process (§4.8): loads a
// chainconfig.Config, boots every configured instance, and serves the
// JSON-RPC interface layer (C11, internal/rpcserver) for each configured
// interface. Each agent gets its own NoOpZome-backed instance unless a
// real zome implementation is linked in — the WASM execution engine
// itself is an external collaborator (§1) this binary does not provide.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lux-nexus/switchboard/internal/address"
	"github.com/lux-nexus/switchboard/internal/cas"
	"github.com/lux-nexus/switchboard/internal/chainconfig"
	"github.com/lux-nexus/switchboard/internal/conductor"
	"github.com/lux-nexus/switchboard/internal/eav"
	"github.com/lux-nexus/switchboard/internal/errs"
	"github.com/lux-nexus/switchboard/internal/instance"
	"github.com/lux-nexus/switchboard/internal/metrics"
	"github.com/lux-nexus/switchboard/internal/rpcserver"
	"github.com/lux-nexus/switchboard/internal/signer"
)

// Exit codes (§6 "Exit codes. Conductor CLI:").
const (
	exitOK              = 0
	exitConfigError     = 1
	exitNetworkBind     = 2
	exitKeyUnlockFailed = 3
	exitDependencyCycle = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "conductor.toml", "path to the conductor's TOML config file")
	passphrase := flag.String("passphrase", "", "keystore passphrase shared by every configured agent")
	flag.Parse()

	logger := log.NewLogger("conductord")

	cfg, err := chainconfig.Load(*cfgPath)
	if err != nil {
		logger.Error("conductord: loading config", log.Err(err))
		return exitConfigError
	}
	if err := chainconfig.CheckConsistency(cfg); err != nil {
		if errors.Is(err, errs.ErrBridgeCycle) {
			logger.Error("conductord: bridge dependency cycle", log.Err(err))
			return exitDependencyCycle
		}
		logger.Error("conductord: config consistency", log.Err(err))
		return exitConfigError
	}

	keystores, err := unlockKeystores(cfg, *passphrase)
	if err != nil {
		logger.Error("conductord: unlocking keystores", log.Err(err))
		return exitKeyUnlockFailed
	}

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)

	factory := instanceFactory(keystores, met, logger)
	cond := conductor.New(cfg, factory, logger, met)
	cond.SetConfigPath(*cfgPath)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cond.Boot(ctx); err != nil {
		if errors.Is(err, errs.ErrBridgeCycle) {
			logger.Error("conductord: bridge dependency cycle", log.Err(err))
			return exitDependencyCycle
		}
		logger.Error("conductord: boot failed", log.Err(err))
		return exitConfigError
	}

	srv := rpcserver.NewServer(cond, cfg, logger, met)
	srv.Start()

	<-ctx.Done()
	logger.Info("conductord: shutting down")
	srv.Shutdown(context.Background())
	cond.Shutdown()
	return exitOK
}

// unlockKeystores builds one shared *signer.Keystore per configured
// agent (§5 "Shared-resource policy": the keystore is shared by every
// instance of the same agent) and unlocks it under passphrase. Key
// persistence across restarts is the out-of-scope cryptographic
// primitive library's concern (§1); this binary always starts an agent
// from a fresh key, which is sufficient for exercising the rest of the
// system end to end.
func unlockKeystores(cfg *chainconfig.Config, passphrase string) (map[string]*signer.Keystore, error) {
	out := make(map[string]*signer.Keystore, len(cfg.Agents))
	for _, a := range cfg.Agents {
		ks := signer.NewKeystore()
		if err := ks.Unlock(passphrase); err != nil {
			return nil, fmt.Errorf("agent %s: %w", a.ID, err)
		}
		if _, err := ks.Generate(a.ID); err != nil {
			return nil, fmt.Errorf("agent %s: %w", a.ID, err)
		}
		out[a.ID] = ks
	}
	return out, nil
}

// instanceFactory returns a conductor.InstanceFactory that builds a
// NoOpZome-backed instance.Instance for each configured (agent, dna)
// pair, sharing met across all of them. Each instance gets its own
// in-process CAS/EAV database (§2's "storage engine itself is an
// external collaborator" — a real deployment would point these at a
// persistent `github.com/luxfi/database` backend instead of memdb).
func instanceFactory(keystores map[string]*signer.Keystore, met *metrics.Metrics, logger log.Logger) conductor.InstanceFactory {
	return func(ctx context.Context, instCfg chainconfig.Instance, dnaCfg chainconfig.DNA, agentCfg chainconfig.Agent) (conductor.Bundle, error) {
		ks, ok := keystores[instCfg.Agent]
		if !ok {
			return conductor.Bundle{}, fmt.Errorf("conductor: no keystore for agent %q", instCfg.Agent)
		}
		inst := instance.New(instance.Config{
			ID:       instCfg.ID,
			DNAID:    instCfg.DNA,
			KeyName:  instCfg.Agent,
			Keystore: ks,
			Zome:     instance.NoOpZome{},
			Metrics:  met,
			Log:      logger,
			CAS:      cas.New(memdb.New()),
			EAV:      eav.New(memdb.New()),
		})

		var fileHash address.Address
		if dnaCfg.File != "" {
			if b, err := os.ReadFile(dnaCfg.File); err == nil {
				fileHash = address.FromBytes(b)
			}
		}
		return conductor.Bundle{Instance: inst, FileHash: fileHash}, nil
	}
}
