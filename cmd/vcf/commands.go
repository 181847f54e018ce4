package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/vcfgather/server/internal/app"
	"github.com/vcfgather/server/internal/artifact"
	"github.com/vcfgather/server/internal/auth"
	"github.com/vcfgather/server/internal/model"
	"github.com/vcfgather/server/internal/realtime"
	"github.com/vcfgather/server/internal/registry"
	"github.com/vcfgather/server/internal/session"
)

type command func(ctx context.Context, args []string) error

type cli struct {
	app      *app.App
	client   *session.Client
	callerID uuid.UUID
	log      *slog.Logger
}

func (c *cli) commands() map[string]command {
	return map[string]command{
		"create":   c.create,
		"sessions": c.sessions,
		"show":     c.show,
		"join":     c.join,
		"list":     c.list,
		"edit":     c.edit,
		"delete":   c.remove,
		"import":   c.importFile,
		"download": c.download,
		"watch":    c.watch,
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseArgs parses flags that may appear before or after positional arguments
func parseArgs(fs *flag.FlagSet, args []string, positional int) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
	if len(pos) != positional {
		return nil, fmt.Errorf("%s: expected %d argument(s), got %d", fs.Name(), positional, len(pos))
	}
	return pos, nil
}

func (c *cli) loadSession(ctx context.Context, arg string) (model.Session, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return model.Session{}, fmt.Errorf("invalid session id %q", arg)
	}
	s, _, err := c.client.Load(ctx, id)
	return s, err
}

func contactFlags(fs *flag.FlagSet) *registry.ContactInput {
	in := &registry.ContactInput{}
	fs.StringVar(&in.Name, "name", "", "contact name")
	fs.StringVar(&in.DialCode, "dial", "+1", "dial code, e.g. +44")
	fs.StringVar(&in.Number, "number", "", "phone number without dial code")
	return in
}

func cmdToken(jwtService *auth.JWTService, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	creator := fs.String("creator", "", "existing creator id (default: new identity)")
	if _, err := parseArgs(fs, args, 0); err != nil {
		return err
	}

	id := uuid.New()
	if *creator != "" {
		parsed, err := uuid.Parse(*creator)
		if err != nil {
			return fmt.Errorf("invalid creator id: %w", err)
		}
		id = parsed
	}
	token, err := jwtService.SignCreatorToken(id)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"creator_id": id, "access_token": token})
}

func (c *cli) create(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	var in session.CreateInput
	fs.StringVar(&in.Name, "name", "", "session name")
	fs.StringVar(&in.DestinationLink, "link", "", "where participants go after submitting")
	fs.IntVar(&in.DurationMinutes, "minutes", session.DefaultDurationMinutes, "session duration in minutes")
	if _, err := parseArgs(fs, args, 0); err != nil {
		return err
	}

	s, err := c.app.Sessions.Create(ctx, c.callerID, in)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"session":      s,
		"join_url":     c.app.Config.JoinURL(s.ID.String()),
		"download_url": c.app.Config.DownloadURL(s.ID.String()),
	})
}

func (c *cli) sessions(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	if _, err := parseArgs(fs, args, 0); err != nil {
		return err
	}
	d, err := c.app.Sessions.Dashboard(ctx, c.callerID)
	if err != nil {
		return err
	}
	return printJSON(d)
}

func (c *cli) show(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	pos, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}
	s, err := c.loadSession(ctx, pos[0])
	if err != nil {
		return err
	}
	remaining, err := c.client.Remaining(ctx, s)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"session":               s,
		"view":                  c.client.View(s),
		"expires_at":            s.ExpiresAt(),
		"remaining_submissions": remaining,
	})
}

func (c *cli) join(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("join", flag.ContinueOnError)
	in := contactFlags(fs)
	pos, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}
	s, err := c.loadSession(ctx, pos[0])
	if err != nil {
		return err
	}
	res, err := c.client.Submit(ctx, s, *in)
	if err != nil {
		return err
	}
	if res.LimitReached {
		fmt.Fprintln(os.Stderr, "submission limit reached for this device")
	}
	return printJSON(res)
}

func (c *cli) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	query := fs.String("q", "", "filter by name or phone")
	pos, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}
	s, err := c.loadSession(ctx, pos[0])
	if err != nil {
		return err
	}
	list, err := c.client.Search(ctx, s, *query)
	if err != nil {
		return err
	}
	return printJSON(list)
}

func (c *cli) edit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	in := contactFlags(fs)
	pos, err := parseArgs(fs, args, 2)
	if err != nil {
		return err
	}
	s, err := c.loadSession(ctx, pos[0])
	if err != nil {
		return err
	}
	pid, err := uuid.Parse(pos[1])
	if err != nil {
		return fmt.Errorf("invalid participant id %q", pos[1])
	}
	p, err := c.client.Edit(ctx, s, pid, *in)
	if err != nil {
		return err
	}
	return printJSON(p)
}

func (c *cli) remove(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	pos, err := parseArgs(fs, args, 2)
	if err != nil {
		return err
	}
	s, err := c.loadSession(ctx, pos[0])
	if err != nil {
		return err
	}
	pid, err := uuid.Parse(pos[1])
	if err != nil {
		return fmt.Errorf("invalid participant id %q", pos[1])
	}
	if err := c.client.Delete(ctx, s, pid); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "deleted", pid)
	return nil
}

func (c *cli) importFile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	path := fs.String("file", "", "file of \"name,phone\" lines (default: stdin)")
	pos, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}
	s, err := c.loadSession(ctx, pos[0])
	if err != nil {
		return err
	}

	var r io.Reader = os.Stdin
	if *path != "" {
		f, err := os.Open(*path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	n, err := c.client.Import(ctx, s, r)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "imported %d contacts\n", n)
	return nil
}

func (c *cli) download(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	dir := fs.String("dir", ".", "output directory")
	pos, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}
	s, err := c.loadSession(ctx, pos[0])
	if err != nil {
		return err
	}
	if !c.client.View(s).CanDownload() {
		return fmt.Errorf("download: %w", model.ErrPermissionDenied)
	}

	for left := int(artifact.ReadinessDelay / time.Second); left > 0; left-- {
		fmt.Fprintf(os.Stderr, "preparing contact file... %d\n", left)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}

	sink := artifact.DiskSink{Dir: *dir}
	f, err := c.client.Download(ctx, s, sink)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %d contacts to %s\n", f.Count, sink.Path(f.Filename))
	return nil
}

func (c *cli) watch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	pos, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(pos[0])
	if err != nil {
		return fmt.Errorf("invalid session id %q", pos[0])
	}

	enc := json.NewEncoder(os.Stdout)
	return c.client.Watch(ctx, id, func(snap realtime.Snapshot) {
		if err := enc.Encode(snap); err != nil {
			c.log.Warn("failed to print snapshot", "error", err)
		}
	})
}
