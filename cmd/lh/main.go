// Command lh is a CLI client for the learnhub API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/and161185/learnhub-client/internal/app"
	"github.com/and161185/learnhub-client/internal/config"
	"github.com/and161185/learnhub-client/internal/guard"
	"github.com/and161185/learnhub-client/internal/model"
	"github.com/and161185/learnhub-client/internal/progress"
	"github.com/and161185/learnhub-client/internal/session"
	"github.com/and161185/learnhub-client/internal/ui"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const usageText = `lh CLI
Usage:
  lh [-api URL] [-path ROUTE] <cmd> [args]

Commands:
  version
  login      -e <email> -p <password>
  register   -name <name> -e <email> -p <password> -occupation <text> -photo <file>
  logout
  whoami                                     (stored session, no network)
  check      [-force]                        (validate the session for -path)
  guard      <route>                         (allow / wait / redirect)
  next       -course <slug> [-content <id>]  (lesson after -content or -path)
  visit      -course <slug> [-content <id>]  (mark visited, print next)
  progress   -course <slug>
  reset      -course <slug>
`

// errUsage makes run print usage and exit with status 2.
var errUsage = errors.New("usage")

// main loads configuration and dispatches subcommands.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	os.Exit(run(ctx, cfg, os.Args[1:], os.Stdout, os.Stderr))
}

// cli carries the wired client and output streams of one invocation.
type cli struct {
	app    *app.App
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, cfg config.Config, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("lh", flag.ContinueOnError)
	fs.SetOutput(stderr)
	apiURL := fs.String("api", cfg.APIURL, "API base URL")
	path := fs.String("path", cfg.Path, "current client route")
	fs.Usage = func() { fmt.Fprint(stderr, usageText) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 2
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	if cmd == "version" {
		fmt.Fprintf(stdout, "lh %s (%s)\n", version, buildDate)
		return 0
	}

	cfg.APIURL = *apiURL
	cfg.Path = *path
	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	a, err := app.New(ctx, cfg, nil, ui.WriterNotifier{W: stderr})
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer a.Close()
	c := &cli{app: a, stdout: stdout, stderr: stderr}

	switch cmd {
	case "login":
		err = c.login(ctx, rest)
	case "register":
		err = c.register(ctx, rest)
	case "logout":
		err = a.Session.Logout(ctx)
		if err == nil {
			fmt.Fprintln(stdout, "ok")
		}
	case "whoami":
		c.printJSON(sessionView(a.Session.Snapshot()))
	case "check":
		err = c.check(ctx, rest)
	case "guard":
		err = c.guard(ctx, rest)
	case "next":
		err = c.next(ctx, rest, false)
	case "visit":
		err = c.next(ctx, rest, true)
	case "progress":
		err = c.progress(ctx, rest)
	case "reset":
		err = c.reset(ctx, rest)
	default:
		err = errUsage
	}
	return c.exit(err)
}

// exit maps an error to the process status and prints it.
func (c *cli) exit(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, errUsage) {
		fmt.Fprint(c.stderr, usageText)
		return 2
	}
	var fe *session.FormError
	if errors.As(err, &fe) {
		fmt.Fprintln(c.stderr, "error:", fe.Error())
		names := make([]string, 0, len(fe.Fields))
		for k := range fe.Fields {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			fmt.Fprintf(c.stderr, "  %s: %s\n", k, strings.Join(fe.Fields[k], "; "))
		}
		return 1
	}
	fmt.Fprintln(c.stderr, "error:", err)
	return 1
}

func (c *cli) printJSON(v any) {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

type sessionJSON struct {
	Authenticated bool             `json:"authenticated"`
	User          *model.Principal `json:"user,omitempty"`
	ExpiresAt     string           `json:"expires_at,omitempty"`
	Error         string           `json:"error,omitempty"`
}

func sessionView(s model.Snapshot) sessionJSON {
	v := sessionJSON{Authenticated: s.IsAuthenticated, User: s.User, Error: s.Error}
	if s.Credential != nil && !s.Credential.ExpiresAt.IsZero() {
		v.ExpiresAt = s.Credential.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return v
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	email := fs.String("e", "", "email")
	pass := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *email == "" || *pass == "" {
		return fmt.Errorf("need -e and -p")
	}
	if err := c.app.Session.Login(ctx, *email, *pass); err != nil {
		if msg := c.app.Session.Snapshot().Error; msg != "" {
			return errors.New(msg)
		}
		return err
	}
	fmt.Fprintln(c.stdout, "ok")
	return nil
}

func (c *cli) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	var p model.RegisterProfile
	fs.StringVar(&p.Name, "name", "", "full name")
	fs.StringVar(&p.Email, "e", "", "email")
	fs.StringVar(&p.Password, "p", "", "password")
	confirm := fs.String("confirm", "", "password confirmation (defaults to -p)")
	fs.StringVar(&p.Occupation, "occupation", "", "occupation")
	photoPath := fs.String("photo", "", "profile photo file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *photoPath == "" {
		return fmt.Errorf("need -photo")
	}
	p.PasswordConfirmation = *confirm
	if p.PasswordConfirmation == "" {
		p.PasswordConfirmation = p.Password
	}
	f, err := os.Open(*photoPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := c.app.Session.Register(ctx, p, model.Photo{Filename: filepath.Base(*photoPath), Content: f}); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, "ok")
	return nil
}

func (c *cli) check(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	force := fs.Bool("force", false, "validate even on public routes")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	err := c.app.Session.CheckAuth(ctx, *force)
	c.printJSON(sessionView(c.app.Session.Snapshot()))
	return err
}

type decisionJSON struct {
	Route  string `json:"route"`
	Class  string `json:"class"`
	Action string `json:"action"`
	Target string `json:"target,omitempty"`
}

func (c *cli) guard(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	route := args[0]
	c.app.Navigate(ctx, route)
	d, err := guard.Enter(ctx, c.app.Session, c.app.Routes, route)
	c.printJSON(decisionJSON{
		Route:  route,
		Class:  c.app.Routes.Classify(route).String(),
		Action: d.Action.String(),
		Target: d.Target,
	})
	return err
}

type nextJSON struct {
	Finished bool   `json:"finished"`
	Next     string `json:"next,omitempty"`
	Done     int    `json:"done"`
	Total    int    `json:"total"`
}

func courseFlags(name string, stderr io.Writer) (*flag.FlagSet, *string, *int64) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	slug := fs.String("course", "", "course slug")
	content := fs.Int64("content", 0, "current content id")
	return fs, slug, content
}

// next prints the lesson after the current one; with mark set the current one is recorded first.
// Without -content the current position comes from -path, and a non-lesson route starts at the first lesson.
func (c *cli) next(ctx context.Context, args []string, mark bool) error {
	fs, slug, content := courseFlags("next", c.stderr)
	if err := fs.Parse(args); err != nil || *slug == "" {
		return errUsage
	}
	course, err := c.app.API.Course(ctx, *slug)
	if err != nil {
		return err
	}

	var cur model.Position
	if *content != 0 {
		if cur, err = progress.Locate(course, *content); err != nil {
			return err
		}
	} else {
		p, perr := progress.PositionFromPath(c.app.Location.Path())
		if perr != nil {
			first, ok := progress.First(course)
			if !ok {
				return fmt.Errorf("course %q has no lessons", *slug)
			}
			c.printJSON(nextJSON{Next: progress.LessonPath(first)})
			return nil
		}
		cur = p
	}

	var n model.Next
	if mark {
		n, err = c.app.Progress.Advance(ctx, course, cur)
	} else {
		n, err = progress.ComputeNext(course, cur)
	}
	if err != nil {
		return err
	}
	done, total, err := c.app.Progress.Progress(ctx, course)
	if err != nil {
		return err
	}
	out := nextJSON{Finished: n.IsFinished, Done: done, Total: total}
	if n.Position != nil {
		out.Next = progress.LessonPath(*n.Position)
	}
	c.printJSON(out)
	return nil
}

type progressJSON struct {
	Course    string  `json:"course"`
	Done      int     `json:"done"`
	Total     int     `json:"total"`
	Completed []int64 `json:"completed"`
}

func (c *cli) progress(ctx context.Context, args []string) error {
	fs, slug, _ := courseFlags("progress", c.stderr)
	if err := fs.Parse(args); err != nil || *slug == "" {
		return errUsage
	}
	course, err := c.app.API.Course(ctx, *slug)
	if err != nil {
		return err
	}
	done, total, err := c.app.Progress.Progress(ctx, course)
	if err != nil {
		return err
	}
	ids, err := c.app.Progress.Completed(ctx, course.ID)
	if err != nil {
		return err
	}
	if ids == nil {
		ids = []int64{}
	}
	c.printJSON(progressJSON{Course: course.Slug, Done: done, Total: total, Completed: ids})
	return nil
}

func (c *cli) reset(ctx context.Context, args []string) error {
	fs, slug, _ := courseFlags("reset", c.stderr)
	if err := fs.Parse(args); err != nil || *slug == "" {
		return errUsage
	}
	course, err := c.app.API.Course(ctx, *slug)
	if err != nil {
		return err
	}
	if err := c.app.Progress.Reset(ctx, course.ID); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, "ok")
	return nil
}
