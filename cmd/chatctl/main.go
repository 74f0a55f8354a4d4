package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"workforce-chat/config"
	"workforce-chat/internal/identity"
	"workforce-chat/internal/repository"
	"workforce-chat/internal/services"
	"workforce-chat/internal/storage"
	"workforce-chat/pkg/database"
	"workforce-chat/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	cfg *config.Config
	log *logger.Logger
)

func main() {
	root := &cobra.Command{
		Use:   "chatctl",
		Short: "Operator commands for the workforce chat service",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.LoadConfig()
			log = logger.New(cfg.AppMode)
			logger.SetGlobalLogger(log)
		},
		SilenceUsage: true,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(resyncTeamsCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(tokenCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func withDB(ctx context.Context, fn func(ctx context.Context, db *gorm.DB) error) error {
	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)
	return fn(ctx, db)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func migrateCmd() *cobra.Command {
	var withDirectory bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the conversation schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			return withDB(ctx, func(ctx context.Context, db *gorm.DB) error {
				if err := repository.InitSchema(db, withDirectory); err != nil {
					return err
				}
				log.InfoCtx(ctx, "schema migrated", zap.Bool("with_directory", withDirectory))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&withDirectory, "with-directory", false, "also create the users and teams tables (standalone deployments)")
	return cmd
}

func resyncTeamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resync-teams",
		Short: "Rebuild every team conversation from the team directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			return withDB(ctx, func(ctx context.Context, db *gorm.DB) error {
				teamSync := services.NewTeamSyncService(repository.NewConversationRepository(db), repository.NewUserDirectory(db), log, nil)
				n, err := teamSync.SyncAll(ctx, repository.NewTeamDirectory(db))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "synced %d teams\n", n)
				return nil
			})
		},
	}
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [conversation-id...]",
		Short: "Archive conversations to the export bucket (all when no ids are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			client, err := storage.NewClient(ctx, storage.S3Config{
				Region:    cfg.S3Region,
				Bucket:    cfg.S3Bucket,
				AccessKey: cfg.S3AccessKey,
				SecretKey: cfg.S3SecretKey,
				Endpoint:  cfg.S3Endpoint,
				PathStyle: cfg.S3PathStyle,
			})
			if err != nil {
				return err
			}

			return withDB(ctx, func(ctx context.Context, db *gorm.DB) error {
				export := services.NewExportService(repository.NewConversationRepository(db), client, log)
				keys, err := export.ExportAll(ctx, args)
				for _, key := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "s3://%s/%s\n", client.Bucket(), key)
				}
				return err
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var name, role string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an access token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, ok := identity.ToStorageID(args[0])
			if !ok {
				return fmt.Errorf("%q is not a valid user id", args[0])
			}
			token, err := services.NewAuthService(cfg.JWTSecret).IssueAccessToken(services.Caller{
				UserID: userID,
				Name:   name,
				Role:   role,
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	cmd.Flags().StringVar(&role, "role", "", "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
