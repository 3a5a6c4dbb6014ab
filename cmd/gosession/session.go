package main

import (
	"encoding/json"
	"errors"
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/gate"
	"github.com/spf13/cobra"
)

func newLoginCmd(h *host) *cobra.Command {
	var token string
	var fields map[string]string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Record a signed-in user and token",
		Long: `login stores the token of an already verified sign-in. The token survives
restarts; the user record lives only for the duration of this process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("token") {
				return errors.New("--token is required")
			}
			store, closeFn, err := h.openStore(cmd.Context(), goSession.NewQueue())
			if err != nil {
				return err
			}
			defer closeFn()

			user := goSession.User{}
			for k, v := range fields {
				user[k] = v
			}
			store.Login(user, token)
			if err := store.Flush(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(h.stdout, "signed in, token saved to slot %q\n", h.cfg.Session.Slot)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "auth token issued by the sign-in flow")
	cmd.Flags().StringToStringVar(&fields, "user", nil, "user fields as key=value pairs")
	return cmd
}

func newLogoutCmd(h *host) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the session and the persisted token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeFn, err := h.openStore(cmd.Context(), goSession.NewQueue())
			if err != nil {
				return err
			}
			defer closeFn()

			store.Logout()
			if err := store.Flush(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(h.stdout, "signed out")
			return nil
		},
	}
}

type whoamiOutput struct {
	Token           *string        `json:"token"`
	HasToken        bool           `json:"has_token"`
	IsAuthenticated bool           `json:"is_authenticated"`
	User            goSession.User `json:"user"`
}

func newWhoamiCmd(h *host) *cobra.Command {
	var asJSON, showToken bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the restored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeFn, err := h.openStore(cmd.Context(), goSession.NewQueue())
			if err != nil {
				return err
			}
			defer closeFn()

			snap := store.Snapshot()
			out := whoamiOutput{
				HasToken:        snap.HasToken,
				IsAuthenticated: snap.IsAuthenticated,
				User:            snap.User,
			}
			if snap.HasToken {
				tok := maskToken(snap.Token)
				if showToken {
					tok = snap.Token
				}
				out.Token = &tok
			}

			if asJSON {
				enc := json.NewEncoder(h.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			if out.Token == nil {
				fmt.Fprintln(h.stdout, "token: absent")
			} else {
				fmt.Fprintf(h.stdout, "token: %s\n", *out.Token)
			}
			fmt.Fprintf(h.stdout, "authenticated: %t\n", out.IsAuthenticated)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&showToken, "show-token", false, "print the full token")
	return cmd
}

func maskToken(tok string) string {
	if len(tok) <= 4 {
		return "****"
	}
	return tok[:4] + "****"
}

func newGateCmd(h *host) *cobra.Command {
	return &cobra.Command{
		Use:   "gate",
		Short: "Run the auth gate once and print where it navigates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeFn, err := h.openStore(cmd.Context(), goSession.NewQueue())
			if err != nil {
				return err
			}
			defer closeFn()

			var history gate.History
			g := gate.New(store, &history,
				gate.WithRoutes(h.cfg.Routes),
				gate.WithMetrics(store.Metrics()),
				gate.WithLogger(h.logger),
			)
			state := g.Activate(cmd.Context())
			g.Deactivate()

			fmt.Fprintf(h.stdout, "%s -> %s\n", state, history.Current())
			return nil
		},
	}
}
