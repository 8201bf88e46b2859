// Command mc-cli is an interactive/one-shot command line client for the
// memcached ASCII client core in pkg/client, configured via flags,
// environment variables, and an optional config file through viper.
package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cachemir/mc/pkg/client"
	"github.com/cachemir/mc/pkg/hashfn"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newClient() (*client.Client, error) {
	servers := viper.GetStringSlice("servers")
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}

	return client.New(client.Config{
		Servers:       servers,
		Prefix:        viper.GetString("prefix"),
		HashFn:        hashfn.Name(viper.GetString("hash-fn")),
		Failover:      viper.GetBool("failover"),
		CompThreshold: viper.GetInt("comp-threshold"),
		Timeout:       viper.GetDuration("timeout"),
		RetryTimeout:  viper.GetDuration("retry-timeout"),
		Logger:        logrus.StandardLogger(),
	})
}

func main() {
	root := &cobra.Command{
		Use:   "mc-cli",
		Short: "Talk to a memcached cluster over the ASCII protocol",
	}

	root.PersistentFlags().StringSlice("servers", []string{"localhost:11211"}, "comma-separated host[:port] list")
	root.PersistentFlags().String("prefix", "", "key prefix")
	root.PersistentFlags().String("hash-fn", "md5", "hash function: md5, fnv1, fnv1a, crc32")
	root.PersistentFlags().Bool("failover", false, "skip failed servers on the continuum during their retry cooldown")
	root.PersistentFlags().Int("comp-threshold", 0, "compress values at or above this many bytes (0 disables)")
	root.PersistentFlags().Duration("timeout", 750*time.Millisecond, "per-batch timeout")
	root.PersistentFlags().Duration("retry-timeout", 5*time.Second, "hard-fail cooldown")

	_ = viper.BindPFlags(root.PersistentFlags())
	viper.SetEnvPrefix("mc")
	viper.AutomaticEnv()
	viper.SetConfigName("mc-cli")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig()

	root.AddCommand(
		getCmd(),
		setCmd(),
		deleteCmd(),
		incrCmd(),
		decrCmd(),
		versionCmd(),
		statsCmd(),
	)

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Fatal("mc-cli failed")
	}
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Fetch one value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			v, ok, err := c.Get(context.Background(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("(miss)")
				return nil
			}
			fmt.Printf("%v\n", v)
			return nil
		},
	}
}

func setCmd() *cobra.Command {
	var exptime int64
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			ok, err := c.Set(context.Background(), args[0], args[1], exptime)
			if err != nil {
				return err
			}
			if ok {
				fmt.Println("STORED")
			} else {
				fmt.Println("NOT_STORED")
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&exptime, "exptime", 0, "expiration in seconds (0 means never)")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			ok, err := c.Delete(context.Background(), args[0])
			if err != nil {
				return err
			}
			if ok {
				fmt.Println("DELETED")
			} else {
				fmt.Println("NOT_FOUND")
			}
			return nil
		},
	}
}

func deltaCmd(use, short string, incr bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid delta %q: %w", args[1], err)
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			var n uint64
			var ok bool
			if incr {
				n, ok, err = c.Incr(context.Background(), args[0], delta)
			} else {
				n, ok, err = c.Decr(context.Background(), args[0], delta)
			}
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("NOT_FOUND")
				return nil
			}
			fmt.Println(n)
			return nil
		},
	}
}

func incrCmd() *cobra.Command { return deltaCmd("incr <key> <delta>", "Increment a numeric value", true) }
func decrCmd() *cobra.Command { return deltaCmd("decr <key> <delta>", "Decrement a numeric value", false) }

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print each server's version string",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			versions, err := c.Version(context.Background())
			if err != nil {
				return err
			}
			for addr, v := range versions {
				fmt.Printf("%s\t%s\n", addr, v)
			}
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print each server's stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			stats, err := c.Stats(context.Background())
			if err != nil {
				return err
			}
			for addr, kv := range stats {
				fmt.Println(addr)
				for k, v := range kv {
					fmt.Printf("  %s = %s\n", k, v)
				}
			}
			return nil
		},
	}
}
