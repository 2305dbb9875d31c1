package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	commerce "github.com/goliatone/go-commerce"
	"github.com/goliatone/go-commerce/core"
	"github.com/goliatone/go-commerce/security"
	sqlstore "github.com/goliatone/go-commerce/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
)

type contextKey string

const sessionContextKey contextKey = "commerceSession"

// Session holds what every subcommand shares for one invocation.
type Session struct {
	Config  FileConfig
	Client  *commerce.Client
	Logger  *slogLogger
	Restore bool

	persistence *persistence.Client
	store       *recordingStore
}

// persistFields adds the outcome of the last credential save to fields.
// persisted is true only when a save ran during this invocation and succeeded.
func (s *Session) persistFields(fields map[string]any) map[string]any {
	persisted, err := s.store.outcome()
	fields["persisted"] = persisted
	if err != nil {
		fields["persist_error"] = err.Error()
	}
	return fields
}

func (s *Session) Close() error {
	if s == nil || s.persistence == nil {
		return nil
	}
	return s.persistence.Close()
}

var (
	configPath   string
	verbose      bool
	accessToken  string
	refreshToken string
	storeDSN     string
	storeDriver  string
)

func NewRootCommand() *cobra.Command {
	var session Session

	rootCmd := &cobra.Command{
		Use:           "commerce",
		Short:         "Command line client for the commerce API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			built, err := newSession(cmd.Context())
			if err != nil {
				return err
			}
			session = *built
			cmd.SetContext(context.WithValue(contextOrBackground(cmd.Context()), sessionContextKey, &session))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return session.Close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "commerce.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().StringVar(&accessToken, "access-token", os.Getenv("COMMERCE_ACCESS_TOKEN"), "OAuth access token")
	rootCmd.PersistentFlags().StringVar(&refreshToken, "refresh-token", os.Getenv("COMMERCE_REFRESH_TOKEN"), "OAuth refresh token")
	rootCmd.PersistentFlags().StringVar(&storeDSN, "store-dsn", "", "DSN of the credential store, overrides store.dsn")
	rootCmd.PersistentFlags().StringVar(&storeDriver, "store-driver", "", "Credential store driver (sqlite or postgres)")

	rootCmd.AddCommand(newRefreshCommand())
	rootCmd.AddCommand(newVerifyCallbackCommand())
	rootCmd.AddCommand(newTimeCommand())
	rootCmd.AddCommand(newSpotPriceCommand())
	rootCmd.AddCommand(newAccountsCommand())

	return rootCmd
}

func newSession(ctx context.Context) (*Session, error) {
	ctx = contextOrBackground(ctx)
	fileCfg, err := LoadFileConfig(configPath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(storeDSN) != "" {
		fileCfg.Store.DSN = storeDSN
	}
	if strings.TrimSpace(storeDriver) != "" {
		fileCfg.Store.Driver = storeDriver
	}

	logger := newSlogLogger(os.Stderr, verbose)
	session := &Session{Config: fileCfg, Logger: logger}

	opts := []commerce.Option{
		commerce.WithLogger(logger),
		commerce.WithConfigProvider(core.NewCfgxConfigProvider(YAMLConfigLoader{Values: fileCfg.Commerce})),
	}

	at := firstNonEmpty(accessToken, fileCfg.Tokens.AccessToken)
	rt := firstNonEmpty(refreshToken, fileCfg.Tokens.RefreshToken)
	if at != "" || rt != "" {
		opts = append(opts, commerce.WithTokens(at, rt))
	}

	if fileCfg.Store.Enabled() {
		store, client, err := openCredentialStore(ctx, fileCfg.Store)
		if err != nil {
			return nil, err
		}
		session.persistence = client
		session.store = &recordingStore{CredentialStore: store}
		session.Restore = at == "" && rt == ""
		opts = append(opts, commerce.WithCredentialStore(session.store))
	}

	client, err := commerce.NewClient(commerce.Config{}, opts...)
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	session.Client = client

	if session.Restore {
		if _, err := client.Restore(ctx); err != nil {
			logger.Debug("no persisted credentials restored", "error", err.Error())
		}
	}
	return session, nil
}

func openCredentialStore(ctx context.Context, cfg StoreConfig) (core.CredentialStore, *persistence.Client, error) {
	dbCfg := sqlstore.Config{Driver: cfg.Driver, DSN: cfg.DSN, Debug: cfg.Debug}
	client, err := sqlstore.Open(dbCfg)
	if err != nil {
		return nil, nil, err
	}
	if err := sqlstore.Migrate(ctx, client, dbCfg.Driver); err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	var storeOpts []sqlstore.CredentialStoreOption
	if strings.TrimSpace(cfg.SecretKey) != "" {
		provider, err := security.NewAppKeySecretProviderFromString(cfg.SecretKey)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		storeOpts = append(storeOpts, sqlstore.WithSecretProvider(provider))
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, storeOpts...)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return factory.CredentialStore(), client, nil
}

// recordingStore keeps the result of the last Save so commands can report
// whether a refreshed pair reached storage.
type recordingStore struct {
	core.CredentialStore

	mu    sync.Mutex
	saved bool
	err   error
}

func (s *recordingStore) Save(ctx context.Context, key string, creds core.Credentials) error {
	err := s.CredentialStore.Save(ctx, key, creds)
	s.mu.Lock()
	s.saved, s.err = err == nil, err
	s.mu.Unlock()
	return err
}

func (s *recordingStore) outcome() (bool, error) {
	if s == nil {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved, s.err
}

func sessionFrom(cmd *cobra.Command) (*Session, error) {
	session, ok := contextOrBackground(cmd.Context()).Value(sessionContextKey).(*Session)
	if !ok || session == nil || session.Client == nil {
		return nil, fmt.Errorf("commerce session is not initialized")
	}
	return session, nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
