package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rechain/rechain/internal/api"
	"github.com/rechain/rechain/internal/cas"
	"github.com/rechain/rechain/internal/consensus"
	"github.com/rechain/rechain/internal/gcl"
	"github.com/rechain/rechain/internal/gossip"
	"github.com/rechain/rechain/internal/security"
	"github.com/rechain/rechain/internal/storage"
	"github.com/spf13/viper"
)

func main() {
	// Parse command line flags
	configFile := flag.String("config", "./config/config.yaml", "Path to configuration file")
	flag.Parse()

	// Initialize configuration
	if err := initConfig(*configFile); err != nil {
		log.Fatalf("Error initializing config: %v", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	store, err := storage.NewBadgerStore(viper.GetString("storage.path"))
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Initialize security
	keyManager, err := security.NewKeyManager()
	if err != nil {
		log.Fatalf("Failed to initialize security: %v", err)
	}

	// Initialize CAS
	casStore, err := cas.NewCAS(
		viper.GetString("cas.endpoint"),
		viper.GetString("cas.access_key"),
		viper.GetString("cas.secret_key"),
		viper.GetString("cas.bucket"),
		viper.GetBool("cas.use_ssl"),
	)
	if err != nil {
		log.Fatalf("Failed to initialize CAS: %v", err)
	}

	// Initialize gossip protocol, the transport NetModerator rides on
	gossipProto, err := gossip.NewGossipProtocol(viper.GetString("network.listen_address"))
	if err != nil {
		log.Fatalf("Failed to initialize gossip: %v", err)
	}
	defer gossipProto.Stop()

	// Add bootstrap peers
	for _, peerAddr := range viper.GetStringSlice("network.bootstrap") {
		if err := gossipProto.AddPeer(peerAddr); err != nil {
			log.Printf("Failed to add bootstrap peer %s: %v", peerAddr, err)
		}
	}

	// network.transport selects which peer discovery layer runs alongside
	// the libp2p vote gossip NetModerator always rides on: the default
	// libp2p discovery already wired into gossipProto, or a devp2p-based
	// enode discovery layer for operators bridging into an existing
	// go-ethereum peer set. Either way NetModerator is what actually
	// carries Votes/Notifications; devp2p here only supplies peer addresses.
	var gclNode *gcl.Node
	if viper.GetString("network.transport") == "devp2p" {
		gclNode, err = gcl.NewNode(store, &gcl.Config{
			Port:   viper.GetInt("network.devp2p_port"),
			Seeds:  viper.GetStringSlice("network.bootstrap"),
			NodeID: viper.GetString("node.id"),
		})
		if err != nil {
			log.Fatalf("Failed to initialize devp2p discovery: %v", err)
		}
		if err := gclNode.Start(ctx); err != nil {
			log.Fatalf("Failed to start devp2p discovery: %v", err)
		}
		defer gclNode.Stop()
	}

	// Initialize the local validator identity and replay buffer.
	keychain := consensus.NewSecp256k1Keychain()
	privKey, err := consensus.GenerateLocalKey()
	if err != nil {
		log.Fatalf("Failed to generate validator key: %v", err)
	}
	keychain.AddKeyRange(consensus.HeightRange{Start: 0, End: consensus.HeightNever}, privKey)

	replay, err := consensus.NewReplayBuffer(ctx, store)
	if err != nil {
		log.Fatalf("Failed to initialize replay buffer: %v", err)
	}

	metadata := consensus.NewMetadata()
	if err := replay.Replay(ctx, metadata, keychain); err != nil {
		log.Printf("Replay buffer rebuild failed: %v", err)
	}

	moderator := consensus.NewNetModerator(gossipProto)
	cfg := consensus.DefaultConfig()
	reactor := consensus.NewReactor(cfg, metadata, keychain, moderator)

	audit := security.NewAuditLogger(viper.GetBool("security.audit_enabled"))
	if signer, ok := keychain.Signer(ctx); ok {
		audit.LogSecurityEvent("reactor_start", fmt.Sprintf("validator %s joined at height %d", signer.Hex(), reactor.Height()))
	}

	// Initialize API server.
	restServer := api.NewServer(reactor, casStore, gossipProto, keyManager)

	go func() {
		restAddr := viper.GetString("api.rest_address")
		log.Printf("Starting REST API server on %s", restAddr)
		if err := restServer.Start(restAddr); err != nil {
			log.Printf("REST API server error: %v", err)
		}
	}()

	// Start gossip protocol
	if err := gossipProto.Start(); err != nil {
		log.Fatalf("Failed to start gossip protocol: %v", err)
	}

	// Reactor heartbeat loop: this is the reactor's only internal timer,
	// purely to decide how often to pull the Moderator's inbound queue.
	// The reactor's own wall-clock round math needs no timer of its own.
	go func() {
		ticker := time.NewTicker(cfg.Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := reactor.Heartbeat(ctx, consensus.BlockID{}); err != nil {
					log.Printf("heartbeat error: %v", err)
				}
			}
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	// Shutdown sequence
	log.Println("Shutting down...")

	if err := restServer.Stop(); err != nil {
		log.Printf("Error stopping REST server: %v", err)
	}
}

func initConfig(configFile string) error {
	viper.SetConfigFile(configFile)
	viper.SetConfigType("yaml")

	// Set default values
	setDefaults()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		log.Printf("Config file not found at %s, using defaults", configFile)
	}

	// Override with environment variables
	viper.SetEnvPrefix("RECHAIN")
	viper.AutomaticEnv()

	return nil
}

func setDefaults() {
	// Node defaults
	viper.SetDefault("node.id", "")
	viper.SetDefault("node.data_dir", "./data")
	viper.SetDefault("node.log_level", "info")
	viper.SetDefault("node.enable_metrics", true)

	// Network defaults
	viper.SetDefault("network.listen_address", "/ip4/0.0.0.0/tcp/26656")
	viper.SetDefault("network.bootstrap", []string{})
	viper.SetDefault("network.max_peers", 50)
	viper.SetDefault("network.transport", "libp2p")
	viper.SetDefault("network.devp2p_port", 26657)

	// Storage defaults
	viper.SetDefault("storage.engine", "badger")
	viper.SetDefault("storage.path", "./data/chain")
	viper.SetDefault("storage.cache_size", 100*1024*1024)
	viper.SetDefault("storage.sync", true)

	// Consensus defaults
	viper.SetDefault("consensus.type", "bft")
	viper.SetDefault("consensus.block_time", "1s")
	viper.SetDefault("consensus.timeout_propose", "3s")
	viper.SetDefault("consensus.timeout_prevote", "1s")
	viper.SetDefault("consensus.timeout_precommit", "1s")
	viper.SetDefault("consensus.timeout_commit", "1s")

	// CAS defaults
	viper.SetDefault("cas.endpoint", "http://localhost:9000")
	viper.SetDefault("cas.access_key", "rechain")
	viper.SetDefault("cas.secret_key", "rechain123")
	viper.SetDefault("cas.bucket", "rechain-cas")
	viper.SetDefault("cas.use_ssl", false)
	viper.SetDefault("cas.chunk_size", 64*1024*1024)
	viper.SetDefault("cas.max_retries", 3)

	// Gossip defaults
	viper.SetDefault("gossip.enabled", true)
	viper.SetDefault("gossip.fanout", 3)
	viper.SetDefault("gossip.interval", "1s")
	viper.SetDefault("gossip.anti_entropy_interval", "30s")
	viper.SetDefault("gossip.message_ttl", 10)

	// API defaults
	viper.SetDefault("api.enabled", true)
	viper.SetDefault("api.rest_address", "0.0.0.0:1317")
	viper.SetDefault("api.grpc_address", "0.0.0.0:9090")
	viper.SetDefault("api.enable_cors", true)
	viper.SetDefault("api.cors_allowed_origins", []string{"*"})
	viper.SetDefault("api.rate_limiting_enabled", true)
	viper.SetDefault("api.rate_limit_rps", 100)

	// Security defaults
	viper.SetDefault("security.tls_enabled", true)
	viper.SetDefault("security.cert_file", "./certs/server.crt")
	viper.SetDefault("security.key_file", "./certs/server.key")
	viper.SetDefault("security.ca_file", "./certs/ca.crt")
	viper.SetDefault("security.client_cert_required", false)
	viper.SetDefault("security.hsm_enabled", false)
	viper.SetDefault("security.hsm_address", "tcp://localhost:12345")
	viper.SetDefault("security.audit_enabled", true)

	// Monitoring defaults
	viper.SetDefault("monitoring.prometheus_enabled", true)
	viper.SetDefault("monitoring.prometheus_address", "0.0.0.0:9091")
	viper.SetDefault("monitoring.metrics_prefix", "rechain")
	viper.SetDefault("monitoring.health_check_enabled", true)

	// Logging defaults
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_age", 30)
	viper.SetDefault("logging.max_backups", 5)
	viper.SetDefault("logging.compress", true)

	// Database defaults
	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.connection_string", "./data/metadata.db")
	viper.SetDefault("database.max_open_conns", 10)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "1h")

	// Backup defaults
	viper.SetDefault("backup.enabled", true)
	viper.SetDefault("backup.interval", "24h")
	viper.SetDefault("backup.retention", "168h")
	viper.SetDefault("backup.directory", "./backups")
	viper.SetDefault("backup.remote_enabled", false)

	// Development defaults
	viper.SetDefault("development.debug", false)
	viper.SetDefault("development.pprof_enabled", false)
	viper.SetDefault("development.mock_services", false)
}
