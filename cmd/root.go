package cmd

import (
	"context"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/registrar/internal/accesscontrol"
	"github.com/zjrosen/registrar/internal/config"
	"github.com/zjrosen/registrar/internal/deployer"
	"github.com/zjrosen/registrar/internal/infrastructure/sqlite"
	"github.com/zjrosen/registrar/internal/log"
	"github.com/zjrosen/registrar/internal/registry/application"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:     "registrar",
	Short:   "A registry for deployed instances with deterministic addressing",
	Long: `Registrar assigns sequential identifiers to deployed instances, derives
their addresses deterministically from caller-chosen salts, and tracks
mutable metadata with owner-gated updates and tombstoning.`,
	Version: version,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/registrar/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"enable debug logging")
	rootCmd.PersistentFlags().String("db", "", "path to the registry database")
	rootCmd.PersistentFlags().String("owner", "", "registry owner address")

	// Bind flags to viper
	_ = viper.BindPFlag("db_path", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("owner", rootCmd.PersistentFlags().Lookup("owner"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("db_path", defaults.DBPath)
	viper.SetDefault("template_init_code", defaults.TemplateInitCode)
	viper.SetDefault("api.addr", defaults.API.Addr)
	viper.SetDefault("chain.gas_fee_cap_gwei", defaults.Chain.GasFeeCapGwei)
	viper.SetDefault("chain.gas_tip_cap_gwei", defaults.Chain.GasTipCapGwei)
	viper.SetDefault("cache.ttl", defaults.Cache.TTL)
	viper.SetDefault("log.path", defaults.Log.Path)
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .registrar/config.yaml (current directory)
		// 2. ~/.config/registrar/config.yaml (user config)
		if _, err := os.Stat(".registrar/config.yaml"); err == nil {
			viper.SetConfigFile(".registrar/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "registrar"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .registrar/config.yaml
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := ".registrar/config.yaml"
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)

	if debugFlag || os.Getenv("REGISTRAR_DEBUG") != "" {
		cfg.Log.Enabled = true
		cfg.Log.Level = "debug"
	}
	if cfg.Log.Enabled {
		if _, err := log.Init(cfg.Log.Path); err == nil {
			log.SetEnabled(true)
			log.SetMinLevel(log.ParseLevel(cfg.Log.Level))
		}
	}
}

// buildService assembles the registry service from configuration. The
// returned cleanup closes the service and the database.
func buildService() (*application.Service, func(), error) {
	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}

	db, err := sqlite.NewDB(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}

	dep, err := buildDeployer()
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	var opts []application.Option
	if cfg.Cache.Disabled {
		opts = append(opts, application.WithCacheDisabled())
	}

	svc := application.NewService(db.EntryRepository(), dep, accesscontrol.NewGate(cfg.OwnerAddress()), opts...)

	// Occupancy lives in the deployer, not the database, so every fresh
	// process must replay the live entries into it.
	if err := svc.RestoreOccupancy(context.Background()); err != nil {
		_ = svc.Close()
		return nil, nil, err
	}

	cleanup := func() {
		_ = svc.Close()
	}
	return svc, cleanup, nil
}

func buildDeployer() (deployer.Deployer, error) {
	initCode, err := cfg.InitCode()
	if err != nil {
		return nil, err
	}

	if !cfg.Chain.Enabled {
		return deployer.NewLocalFactory(cfg.IdentityAddress(), initCode)
	}

	key, err := crypto.HexToECDSA(cfg.Chain.PrivateKey)
	if err != nil {
		return nil, err
	}
	gwei := big.NewInt(1_000_000_000)
	return deployer.NewChainFactory(
		cfg.Chain.RPCURL,
		cfg.Chain.ChainID,
		key,
		common.HexToAddress(cfg.Chain.FactoryAddress),
		initCode,
		new(big.Int).Mul(big.NewInt(cfg.Chain.GasFeeCapGwei), gwei),
		new(big.Int).Mul(big.NewInt(cfg.Chain.GasTipCapGwei), gwei),
	)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
