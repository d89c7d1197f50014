package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/atinyakov/todolist/internal/client/api"
	"github.com/atinyakov/todolist/internal/client/storage"
)

var (
	version   string
	buildDate string
)

const helpText = `Available commands:
  signup <email>     create an account and log in
  login <email>      log in
  whoami             show the current account
  list               list your tasks
  add                add a task
  edit <id>          change a task
  done <id>          mark a task completed
  rm <id>            delete a task
  passwd             change email and/or password
  logout             end the session
  delete-account     delete the account and all its tasks
  exit               quit`

// shell is the interactive client state.
type shell struct {
	api    *api.Client
	store  *storage.LocalStorage
	prompt *storage.Prompter
	out    io.Writer
	base   string
	email  string
}

// main parses command-line flags and starts the shell.
func main() {
	var (
		baseURL     string
		caFile      string
		sessionPath string
		showVer     bool
	)
	flag.StringVar(&baseURL, "url", "http://localhost:8000", "server base URL")
	flag.StringVar(&caFile, "ca", "", "PEM file with the server certificate to trust")
	flag.StringVar(&sessionPath, "session", storage.DefaultPath(), "where the session is saved")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("Todo Client\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
		return
	}

	client, err := api.New(baseURL, caFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sh := &shell{
		api:    client,
		store:  &storage.LocalStorage{Path: sessionPath},
		prompt: storage.NewPrompter(os.Stdin, os.Stdout),
		out:    os.Stdout,
		base:   baseURL,
	}
	sh.restore()
	sh.repl(ctx)
}

// restore reuses a saved session for the same server.
func (sh *shell) restore() {
	s, err := sh.store.Load()
	if err != nil {
		fmt.Fprintf(sh.out, "Ignoring saved session: %v\n", err)
		return
	}
	if s.Token == "" || s.BaseURL != sh.base {
		return
	}
	sh.api.SetSessionToken(s.Token)
	sh.email = s.Email
}

// repl runs the interactive shell loop until exit, EOF or ctx is done.
func (sh *shell) repl(ctx context.Context) {
	for ctx.Err() == nil {
		line, err := sh.prompt.Line("todo> ")
		if err != nil {
			fmt.Fprintln(sh.out)
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			fmt.Fprintln(sh.out, "Bye")
			return
		}
		if err := sh.exec(ctx, args); err != nil {
			fmt.Fprintf(sh.out, "Error: %v\n", err)
		}
	}
}

func (sh *shell) exec(ctx context.Context, args []string) error {
	switch args[0] {
	case "help":
		fmt.Fprintln(sh.out, helpText)
	case "signup", "login":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s <email>", args[0])
		}
		return sh.login(ctx, args[0] == "signup", args[1])
	case "whoami":
		email, err := sh.api.Me(ctx)
		if err != nil {
			return sh.authErr(err)
		}
		fmt.Fprintln(sh.out, email)
	case "list":
		return sh.list(ctx)
	case "add":
		in, err := sh.prompt.Task(false)
		if err != nil {
			return err
		}
		task, err := sh.api.Create(ctx, in)
		if err != nil {
			return sh.authErr(err)
		}
		fmt.Fprintf(sh.out, "Task %s added\n", task.ID)
	case "edit", "done", "rm":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s <id>", args[0])
		}
		return sh.changeTask(ctx, args[0], args[1])
	case "passwd":
		return sh.passwd(ctx)
	case "logout":
		if err := sh.api.Logout(ctx); err != nil {
			return err
		}
		sh.email = ""
		fmt.Fprintln(sh.out, "Logged out")
		return sh.store.Clear()
	case "delete-account":
		answer, err := sh.prompt.Line("This deletes the account and all tasks. Type 'yes' to confirm: ")
		if err != nil || answer != "yes" {
			return err
		}
		if err := sh.api.DeleteAccount(ctx); err != nil {
			return sh.authErr(err)
		}
		sh.email = ""
		fmt.Fprintln(sh.out, "Account deleted")
		return sh.store.Clear()
	default:
		fmt.Fprintln(sh.out, "Unknown command. Type 'help' for a list of commands.")
	}
	return nil
}

func (sh *shell) login(ctx context.Context, signup bool, email string) error {
	pw, err := sh.prompt.Password("Password: ")
	if err != nil {
		return err
	}
	if signup {
		err = sh.api.Signup(ctx, email, pw)
	} else {
		err = sh.api.Login(ctx, email, pw)
	}
	if err != nil {
		return err
	}
	return sh.saveSession(ctx)
}

// saveSession records the account behind the current cookie.
func (sh *shell) saveSession(ctx context.Context) error {
	email, err := sh.api.Me(ctx)
	if err != nil {
		return err
	}
	sh.email = email
	fmt.Fprintf(sh.out, "Logged in as %s\n", email)
	return sh.store.Save(storage.Session{BaseURL: sh.base, Email: email, Token: sh.api.SessionToken()})
}

func (sh *shell) list(ctx context.Context) error {
	if sh.email == "" {
		return errors.New("not logged in")
	}
	tasks, err := sh.api.List(ctx, sh.email)
	if err != nil {
		return sh.authErr(err)
	}
	if len(tasks) == 0 {
		fmt.Fprintln(sh.out, "No tasks")
		return nil
	}
	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDONE\tPRIO\tPROGRESS\tDATE\tTITLE")
	for _, t := range tasks {
		done := " "
		if t.Completed {
			done = "x"
		}
		fmt.Fprintf(tw, "%s\t[%s]\t%d\t%d%%\t%s\t%s\n",
			t.ID, done, t.Priority, t.Progress, t.Date.Format("2006-01-02"), t.Title)
	}
	return tw.Flush()
}

func (sh *shell) changeTask(ctx context.Context, cmd, id string) error {
	var err error
	switch cmd {
	case "edit":
		var in api.TaskInput
		if in, err = sh.prompt.Task(true); err != nil {
			return err
		}
		_, err = sh.api.Update(ctx, id, in)
	case "done":
		completed := true
		_, err = sh.api.Update(ctx, id, api.TaskInput{Completed: &completed})
	case "rm":
		err = sh.api.Delete(ctx, id)
	}
	if err != nil {
		return sh.authErr(err)
	}
	fmt.Fprintln(sh.out, "OK")
	return nil
}

func (sh *shell) passwd(ctx context.Context) error {
	current, err := sh.prompt.Password("Current password: ")
	if err != nil {
		return err
	}
	newEmail, err := sh.prompt.Line("New email (blank to keep): ")
	if err != nil {
		return err
	}
	newPassword, err := sh.prompt.Password("New password (blank to keep): ")
	if err != nil {
		return err
	}
	if _, err := sh.api.UpdateProfile(ctx, api.ProfileUpdate{
		CurrentPassword: current,
		NewEmail:        newEmail,
		NewPassword:     newPassword,
	}); err != nil {
		// 401 here means a wrong current password, not a lost session.
		return err
	}
	return sh.saveSession(ctx)
}

// authErr turns an expired session into a hint to log in again.
func (sh *shell) authErr(err error) error {
	if api.IsStatus(err, http.StatusUnauthorized) {
		sh.email = ""
		_ = sh.store.Clear()
		return errors.New("session expired or missing, please log in")
	}
	return err
}
