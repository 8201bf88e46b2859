// Command mc-server runs the in-memory ASCII test server from
// internal/testserver as a standalone process, for manual testing
// against pkg/client or any real memcached ASCII client.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cachemir/mc/internal/testserver"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	log := logrus.StandardLogger()

	root := &cobra.Command{
		Use:   "mc-server",
		Short: "Run a standalone in-memory ASCII memcached test server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logLevel := viper.GetString("log-level")

			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			log.SetLevel(level)

			srv, err := testserver.New()
			if err != nil {
				return fmt.Errorf("starting server: %w", err)
			}
			log.WithField("addr", srv.Addr()).Info("listening")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			log.Info("shutting down")
			return srv.Close()
		},
	}

	root.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log-level", root.Flags().Lookup("log-level"))
	viper.SetEnvPrefix("mc")
	viper.AutomaticEnv()

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Fatal("mc-server failed")
	}
}
