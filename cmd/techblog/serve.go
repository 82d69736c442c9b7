package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Mark577-code/tech-blog/internal/auth"
	"github.com/Mark577-code/tech-blog/internal/content"
	"github.com/Mark577-code/tech-blog/internal/database"
	"github.com/Mark577-code/tech-blog/internal/schedule"
	"github.com/Mark577-code/tech-blog/internal/server"
	"github.com/Mark577-code/tech-blog/internal/syncer"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if servePort > 0 {
			cfg.Server.Port = servePort
		}

		authn, err := newAuthenticator()
		if err != nil {
			return err
		}

		sy, err := newSyncer(db)
		if err != nil {
			log.WithError(err).Warn("Knowledge sync unavailable")
		}

		ctx, stop := signalContext()
		defer stop()

		sched := schedule.New()
		if err := addJobs(sched, db, sy); err != nil {
			return err
		}
		if sched.Len() > 0 {
			sched.Start()
			defer sched.Stop(context.Background())
		}

		srv := server.New(server.Deps{
			DB:       db,
			Content:  content.NewService(db, cfg.Site.Author),
			Auth:     authn,
			Syncer:   sy,
			AutoSync: cfg.Knowledge.AutoSync,
		})
		fmt.Printf("Starting server at http://%s\n", cfg.Addr())
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, srv, cfg.Addr())
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (overrides server.port)")
}

func newAuthenticator() (*auth.Authenticator, error) {
	secret := cfg.JWTSecret()
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generating session secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
		log.Warnf("%s not set; using a random secret, sessions end on restart", cfg.Admin.JWTSecretEnv)
	}
	if cfg.AdminPassword() == "" {
		log.Warnf("%s not set; admin login is disabled", cfg.Admin.PasswordEnv)
	}
	return auth.New(auth.Options{
		Password:     cfg.AdminPassword(),
		Secret:       secret,
		TTL:          cfg.Admin.TokenTTL,
		Email:        cfg.Site.Email,
		SecureCookie: cfg.Admin.SecureCookie,
	})
}

// addJobs registers the scheduled knowledge sync when one is configured.
func addJobs(sched *schedule.Scheduler, db *database.DB, sy *syncer.Syncer) error {
	if sy == nil || cfg.Knowledge.Schedule == "" {
		return nil
	}
	return sched.Add("knowledge-sync", cfg.Knowledge.Schedule, func(ctx context.Context) error {
		articles, err := db.AllArticles(database.StatusPublished)
		if err != nil {
			return fmt.Errorf("loading published articles: %w", err)
		}
		r := sy.SyncAll(ctx, articles)
		if r.Failed > 0 {
			return fmt.Errorf("%d of %d articles failed to sync", r.Failed, r.Total)
		}
		return nil
	})
}
