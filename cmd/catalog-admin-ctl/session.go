package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	redisadapter "github.com/target/catalog-admin/internal/adapters/redis"
	domainauth "github.com/target/catalog-admin/internal/domain/auth"
)

func sessionPersistence(cmdCtx *commandContext, conns *infra) *redisadapter.SessionPersistence {
	return redisadapter.NewSessionPersistence(conns.Redis, cmdCtx.Config.Session.RedisKey, cmdCtx.Logger)
}

func runShowSession(cmdCtx *commandContext, _ []string) error {
	return withRedis(cmdCtx, defaultCommandTimeout, func(ctx context.Context, conns *infra) error {
		sess, err := sessionPersistence(cmdCtx, conns).Load(ctx)
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		return printSession(cmdCtx.Out, sess, time.Now())
	})
}

func printSession(w io.Writer, sess *domainauth.Session, now time.Time) error {
	if sess == nil {
		return writef(w, "no session stored\n")
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"User", sess.UserID},
		{"Email", sess.Email},
		{"Expires", formatTime(sess.ExpiresAt)},
		{"Remaining", sess.ExpiresAt.Sub(now).Truncate(time.Second).String()},
		{"Refreshable", fmt.Sprint(sess.RefreshToken != "")},
	}
	for _, row := range rows {
		if err := writef(tw, "%s:\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runClearSession(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("clear-session", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		if err := confirm(os.Stdin, os.Stderr, "This signs out every instance sharing the session."); err != nil {
			return err
		}
	}

	return withRedis(cmdCtx, defaultCommandTimeout, func(ctx context.Context, conns *infra) error {
		if err := sessionPersistence(cmdCtx, conns).Clear(ctx); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
		return writef(cmdCtx.Out, "session cleared\n")
	})
}

func confirm(in io.Reader, out io.Writer, warning string) error {
	if err := writef(out, "%s\nType \"yes\" to continue: ", warning); err != nil {
		return err
	}
	resp, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read confirmation: %w", err)
	}
	if strings.TrimSpace(resp) != "yes" {
		return errors.New("aborted by user")
	}
	return nil
}
