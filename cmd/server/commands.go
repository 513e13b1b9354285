package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirespace-server/internal/app"
	"github.com/vovakirdan/wirespace-server/internal/auth"
	"github.com/vovakirdan/wirespace-server/internal/store"
	"github.com/vovakirdan/wirespace-server/internal/store/sqlite"
	"github.com/vovakirdan/wirespace-server/internal/utils"
)

func newSpacesCmd(opts *rootOptions) *cobra.Command {
	spaces := &cobra.Command{
		Use:   "spaces",
		Short: "Manage the space catalogue",
	}

	var name string
	var width, height int
	create := &cobra.Command{
		Use:   "create <id>",
		Short: "Add a space",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if width <= 0 || height <= 0 {
				return fmt.Errorf("width and height must be positive")
			}
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			st, err := sqlite.New(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			sp := &store.Space{ID: args[0], Name: name, Width: width, Height: height}
			if err := st.CreateSpace(cmd.Context(), sp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created space %s (%dx%d)\n", sp.ID, sp.Width, sp.Height)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "display name")
	create.Flags().IntVar(&width, "width", 20, "grid width")
	create.Flags().IntVar(&height, "height", 20, "grid height")

	list := &cobra.Command{
		Use:   "list",
		Short: "List spaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			st, err := sqlite.New(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			all, err := st.ListSpaces(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSIZE\tCREATED")
			for _, sp := range all {
				fmt.Fprintf(w, "%s\t%s\t%dx%d\t%s\n", sp.ID, sp.Name, sp.Width, sp.Height, sp.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a space",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			st, err := sqlite.New(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			if err := st.DeleteSpace(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted space %s\n", args[0])
			return nil
		},
	}

	spaces.AddCommand(create, list, remove)
	return spaces
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var userID, name string
	var guest bool
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed token for development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if userID == "" {
				userID = utils.NewID()
			}
			jwtCfg := app.JWTConfig(cfg)
			jwtCfg.TTL = ttl

			token, err := auth.GenerateToken(jwtCfg, userID, name, guest)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (random if empty)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().BoolVar(&guest, "guest", false, "mark the token as a guest")
	cmd.Flags().DurationVar(&ttl, "ttl", app.TokenTTL, "token lifetime")
	return cmd
}
