package main

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/iliyamo/campus-reservation/internal/model"
	"github.com/iliyamo/campus-reservation/internal/utils"
)

func newTokenCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "token <requester-id>",
		Short: "Mint a bearer token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			switch role {
			case model.RoleStudent, model.RoleFaculty, model.RoleAdmin:
			default:
				return errors.Errorf("unknown role %q", role)
			}
			ttl := time.Duration(cfg.AccessTTLMin) * time.Minute
			tok, err := utils.NewAccessToken(cfg.JWTSecret, args[0], role, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", model.RoleStudent, "student, faculty or admin")
	return cmd
}
