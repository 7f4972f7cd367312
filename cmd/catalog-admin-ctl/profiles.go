package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/target/catalog-admin/internal/bootstrap"
	"github.com/target/catalog-admin/internal/data"
	domainauth "github.com/target/catalog-admin/internal/domain/auth"
)

type setRoleOptions struct {
	UserID string
	Role   domainauth.Role
}

func runSetRole(cmdCtx *commandContext, args []string) error {
	opts, err := parseSetRoleFlags(args)
	if err != nil {
		return err
	}

	return withInfra(cmdCtx, defaultCommandTimeout, connectOptions{WantDB: true, OptionalRedis: true},
		func(ctx context.Context, conns *infra) error {
			repo := data.NewProfileRepo(conns.DB)
			if err := repo.SetRole(ctx, opts.UserID, opts.Role); err != nil {
				return fmt.Errorf("set role: %w", err)
			}
			if conns.Redis != nil {
				cache := data.NewCachedProfileStore(data.CachedProfileStoreOptions{
					Inner:  repo,
					Cache:  data.NewRedisCacheRepo(conns.Redis),
					TTL:    cmdCtx.Config.Session.ProfileCacheTTL,
					Prefix: bootstrap.ProfileCachePrefix,
					Logger: cmdCtx.Logger,
				})
				cache.Invalidate(ctx, opts.UserID)
			}
			return writef(cmdCtx.Out, "role for %s set to %s\n", opts.UserID, opts.Role)
		})
}

func parseSetRoleFlags(args []string) (setRoleOptions, error) {
	fs := flag.NewFlagSet("set-role", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var userID, role string
	fs.StringVar(&userID, "user", "", "User id (the identity provider subject)")
	fs.StringVar(&role, "role", "", "Role to assign: admin or employee")

	if err := fs.Parse(args); err != nil {
		return setRoleOptions{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return setRoleOptions{}, errors.New("--user is required")
	}
	parsed, err := domainauth.ParseRole(role)
	if err != nil {
		return setRoleOptions{}, fmt.Errorf("--role: %w", err)
	}
	return setRoleOptions{UserID: userID, Role: parsed}, nil
}

func runShowProfile(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("show-profile", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	userID := fs.String("user", "", "User id (the identity provider subject)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*userID) == "" {
		return errors.New("--user is required")
	}

	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, conns *infra) error {
		p, err := data.NewProfileRepo(conns.DB).GetByID(ctx, strings.TrimSpace(*userID))
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		return printProfile(cmdCtx, *userID, p)
	})
}

func printProfile(cmdCtx *commandContext, userID string, p *domainauth.Profile) error {
	if p == nil {
		return writef(cmdCtx.Out, "no profile stored for %s\n", userID)
	}
	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"ID", p.ID},
		{"Name", p.FullName},
		{"Role", string(p.Role)},
		{"Updated", formatTimePtr(p.UpdatedAt)},
	}
	for _, row := range rows {
		if err := writef(tw, "%s:\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
