package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/park285/cheese-session/internal/authority"
	"github.com/park285/cheese-session/internal/authority/local"
	"github.com/park285/cheese-session/internal/feed"
	"github.com/park285/cheese-session/internal/metrics"
	"github.com/park285/cheese-session/internal/sessionbuilder"
	"github.com/park285/cheese-session/pkg/chessdto"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const defaultFeedAddr = "127.0.0.1:8090"

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Resume the session and stream its projection over WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(ctx context.Context, d *sessionbuilder.Deps) error {
				feedAddr := cfg.FeedAddr
				if feedAddr == "" {
					feedAddr = defaultFeedAddr
				}
				d.Feed.Publish(d.Session.Projection())
				servers := listeners(feedAddr, cfg.MetricsAddr, d.Feed)
				return runHTTP(ctx, a.logger(), servers)
			})
		},
	}
}

// listeners puts the feed and metrics on one mux when they share an address.
func listeners(feedAddr, metricsAddr string, hub *feed.Hub) []*http.Server {
	feedMux := http.NewServeMux()
	feedMux.Handle("/feed", hub)
	out := []*http.Server{{Addr: feedAddr, Handler: feedMux, ReadHeaderTimeout: 10 * time.Second}}
	if metricsAddr == "" {
		return out
	}
	if metricsAddr == feedAddr {
		feedMux.Handle("/metrics", metrics.Handler())
		return out
	}
	mMux := http.NewServeMux()
	mMux.Handle("/metrics", metrics.Handler())
	return append(out, &http.Server{Addr: metricsAddr, Handler: mMux, ReadHeaderTimeout: 10 * time.Second})
}

func runHTTP(ctx context.Context, logger *zap.Logger, servers []*http.Server) error {
	errc := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Info("http_listen", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}(srv)
	}
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(shutdownCtx)
	}
	return runErr
}

func newServeAuthorityCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve-authority",
		Short: "Serve the built-in move authority over REST",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := a.logger().Named("authority")
			srv := &fasthttp.Server{
				Handler:      authority.NewHandler(local.New(logger), logger),
				Name:         "chess-session-authority",
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				logger.Info("authority_listen", zap.String("addr", addr))
				errc <- srv.ListenAndServe(addr)
			}()
			select {
			case <-cmd.Context().Done():
				return srv.Shutdown()
			case err := <-errc:
				return err
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8081", "listen address")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var reconnects int
	cmd := &cobra.Command{
		Use:   "watch <ws-url>",
		Short: "Follow a served session feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := feed.Watch(cmd.Context(), args[0], feed.WatchOptions{MaxReconnects: reconnects}, func(p chessdto.Projection) {
				a.printf("%s\n", renderProjection(p))
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVar(&reconnects, "reconnects", 5, "reconnect attempts before giving up")
	return cmd
}
