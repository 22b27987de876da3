package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/codefionn/codebridge/internal/collab"
	"github.com/codefionn/codebridge/internal/collabclient"
	"github.com/codefionn/codebridge/internal/collabserver"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	serverURL  string
	joinName   string
	joinColor  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the collaboration session server",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.Collab.ListenAddr
		if listenAddr != "" {
			addr = listenAddr
		}

		srv := collabserver.NewServer(collabserver.Options{
			Addr:      addr,
			SendQueue: cfg.Collab.SendQueue,
		})
		if err := srv.Start(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "collaboration server on %s\n", color.CyanString("%s", srv.URL()))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		return srv.Stop()
	},
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a session and print roster changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ccfg := collabclient.Config{
			ServerURL:      cfg.Collab.ServerURL,
			Name:           cfg.Collab.Name,
			Color:          cfg.Collab.Color,
			Reconnect:      cfg.Collab.Reconnect,
			InitialBackoff: cfg.InitialBackoff(),
			MaxBackoff:     cfg.MaxBackoff(),
		}
		if serverURL != "" {
			ccfg.ServerURL = serverURL
		}
		if joinName != "" {
			ccfg.Name = joinName
		}
		if joinColor != "" {
			ccfg.Color = joinColor
		}

		out := cmd.OutOrStdout()
		client := collabclient.New(ccfg)
		client.OnStateChanged(func(s collabclient.State, err error) {
			if err != nil {
				fmt.Fprintf(out, "%s (%v)\n", color.YellowString("%s", s), err)
				return
			}
			fmt.Fprintln(out, color.YellowString("%s", s))
		})
		client.OnRosterChanged(func(roster []collab.Participant) {
			renderRoster(out, roster, client.SelfID())
		})
		client.OnEditRelay(func(r collab.EditRelay) {
			fmt.Fprintf(out, "edit from %s: %s\n", r.SenderID, r.Payload)
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := client.Connect(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return client.Disconnect()
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default from config)")

	joinCmd.Flags().StringVar(&serverURL, "url", "", "Server websocket URL (default from config)")
	joinCmd.Flags().StringVar(&joinName, "name", "", "Display name (random if empty)")
	joinCmd.Flags().StringVar(&joinColor, "color", "", "Color as #rrggbb (random if empty)")

	rootCmd.AddCommand(serveCmd, joinCmd)
}
