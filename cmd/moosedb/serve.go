package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/moosedb/moosedb/internal/app"
)

func (c *cli) serveCmd() *cobra.Command {
	var (
		host string
		port int
		grpc bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") || cmd.Flags().Changed("port") {
				h, p, err := net.SplitHostPort(cfg.HTTP.Addr)
				if err != nil {
					return fmt.Errorf("invalid http.addr %q: %w", cfg.HTTP.Addr, err)
				}
				if cmd.Flags().Changed("host") {
					h = host
				}
				if cmd.Flags().Changed("port") {
					p = strconv.Itoa(port)
				}
				cfg.HTTP.Addr = net.JoinHostPort(h, p)
			}
			if cmd.Flags().Changed("grpc") {
				cfg.GRPC.Enabled = grpc
			}

			a, err := app.New(cfg, version)
			if err != nil {
				return err
			}
			if err := a.Start(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "MooseDB %s listening on http://%s\n", version, a.HTTPAddr())
			return a.Wait(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "interface to bind the HTTP server to")
	cmd.Flags().IntVarP(&port, "port", "p", 8855, "HTTP port")
	cmd.Flags().BoolVar(&grpc, "grpc", false, "also start the gRPC health server")
	return cmd
}
