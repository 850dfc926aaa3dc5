package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/jayalms/lms/client"
	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/enrollment"
	"github.com/jayalms/lms/core/gate"
	"github.com/jayalms/lms/core/guard"
	"github.com/jayalms/lms/core/identity"
	"github.com/jayalms/lms/core/profile"
	"github.com/jayalms/lms/core/session"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp         = errors.New("help provided")
	errNotSignedIn  = errors.New("not signed in: run `signin` first")
	errNoPermission = errors.New("permission denied")
	errNoDashboard  = errors.New("no dashboard for your role: go home")
)

type commandLine struct {
	api        *client.Client
	store      identity.SessionStore
	logger     core.Logger
	in         *bufio.Reader
	out        io.Writer
	translator ut.Translator
	validate   *validator.Validate

	// set for the duration of run
	ctrl *session.Controller
	gate *gate.Gate
}

func newCommandLine(api *client.Client, store identity.SessionStore, logger core.Logger, in io.Reader, out io.Writer) *commandLine {
	translator := core.NewTranslator()
	return &commandLine{
		api:        api,
		store:      store,
		logger:     logger,
		in:         bufio.NewReader(in),
		out:        out,
		translator: translator,
		validate:   core.NewValidator(translator),
	}
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  signin [-name] EMAIL|NAME - sign in by email, or by display name with -name")
	fmt.Fprintln(cli.out, "  signup -email EMAIL -name NAME -role student|teacher - create an account")
	fmt.Fprintln(cli.out, "  signout - sign out")
	fmt.Fprintln(cli.out, "  whoami - show the signed in user")
	fmt.Fprintln(cli.out, "  dashboard [student|teacher] - show a dashboard, yours by default")
	fmt.Fprintln(cli.out, "  batches - list batches")
	fmt.Fprintln(cli.out, "  enroll BATCH_ID - request enrollment in a batch")
	fmt.Fprintln(cli.out, "  complete-profile - set your name & phone number")
	fmt.Fprintln(cli.out, "  notices - list your notices")
	fmt.Fprintln(cli.out, "  submit BATCH_ID FILE - submit a PDF homework")
	fmt.Fprintln(cli.out, "  watch [TABLE...] - print live changes until interrupted")
}

// run starts a session controller, dispatches args[1] and closes the controller.
func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	cli.ctrl = session.NewController(client.NewProvider(cli.api, cli.store, cli.logger), cli.api, cli.api, cli.logger)
	if err := cli.ctrl.Start(ctx); err != nil {
		return err
	}
	defer cli.ctrl.Close()
	cli.ctrl.Settle()
	cli.gate = gate.New(cli.ctrl, cli.api, cli.validate)

	cmd, cmdArgs := args[1], args[2:]
	switch cmd {
	case "signin":
		return cli.signIn(ctx, cmdArgs)
	case "signup":
		return cli.signUp(ctx, cmdArgs)
	case "signout":
		cli.ctrl.SignOut(ctx)
		fmt.Fprintln(cli.out, "Signed out.")
		return nil
	}

	if st := cli.ctrl.State(); st.User == nil {
		return errNotSignedIn
	}
	switch cmd {
	case "whoami":
		return cli.whoami()
	case "dashboard":
		if len(cmdArgs) > 1 {
			cli.printUsage()
			return errHelp
		}
		return cli.dashboard(ctx, cmdArgs)
	case "batches":
		return cli.batches(ctx)
	case "enroll":
		if len(cmdArgs) != 1 {
			cli.printUsage()
			return errHelp
		}
		return cli.enroll(ctx, cmdArgs[0])
	case "complete-profile":
		return cli.completeProfile(ctx)
	case "notices":
		return cli.notices(ctx)
	case "submit":
		if len(cmdArgs) != 2 {
			cli.printUsage()
			return errHelp
		}
		return cli.submit(ctx, cmdArgs[0], cmdArgs[1])
	case "watch":
		return cli.watch(ctx, cmdArgs)
	}
	cli.printUsage()
	return errHelp
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) prompt(label string) (string, error) {
	fmt.Fprint(cli.out, label+": ")
	line, err := cli.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", errors.Wrapf(err, "reading %s", strings.ToLower(label))
	}
	return strings.TrimSpace(line), nil
}

func (cli *commandLine) signIn(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signin", flag.ContinueOnError)
	byName := fs.Bool("name", false, "Sign in with your display name instead of your email.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errHelp
	}
	pwd, err := cli.promptPassword()
	if err != nil {
		return err
	}

	method := session.MethodEmail
	if *byName {
		method = session.MethodName
	}
	if err = cli.ctrl.SignIn(ctx, fs.Arg(0), pwd, method); err != nil {
		return err
	}
	cli.ctrl.Settle()
	return cli.whoami()
}

func (cli *commandLine) signUp(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	email := fs.String("email", "", "Your email.")
	name := fs.String("name", "", "Your display name.")
	roleStr := fs.String("role", "student", "Your role: student or teacher.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *name == "" {
		fs.Usage()
		return errHelp
	}
	role, err := profile.ParseRole(*roleStr)
	if err != nil {
		return err
	}
	pwd, err := cli.promptPassword()
	if err != nil {
		return err
	}

	if err = cli.ctrl.SignUp(ctx, *email, pwd, *name, role); err != nil {
		return err
	}
	cli.ctrl.Settle()
	return cli.whoami()
}

func (cli *commandLine) whoami() error {
	st := cli.ctrl.State()
	if st.User == nil {
		return errNotSignedIn
	}
	fmt.Fprintf(cli.out, "Signed in as %s\n", st.User.Email)
	if st.Profile == nil {
		fmt.Fprintln(cli.out, "Profile: unavailable")
		return nil
	}
	fmt.Fprintf(cli.out, "Name: %s\nRole: %s\n", st.Profile.DisplayName(), st.Role())
	if st.IsProfileComplete() {
		fmt.Fprintf(cli.out, "Phone: %s\n", st.Profile.Phone())
	} else {
		fmt.Fprintln(cli.out, "Profile: incomplete, run `complete-profile`")
	}
	return nil
}

// gated runs intent through the gate. When the profile is incomplete the completion form is prompted
// and intent resumes once the profile is complete.
func (cli *commandLine) gated(ctx context.Context, intent gate.Intent) error {
	err := cli.gate.Do(ctx, intent)
	if errors.Is(err, enrollment.ErrProfileIncomplete) {
		// the server saw an incomplete profile our state did not know about yet
		_ = cli.ctrl.RefreshProfile(ctx)
		cli.gate.Suspend(intent)
		err = gate.ErrProfileIncomplete
	}
	if err != gate.ErrProfileIncomplete {
		return err
	}
	fmt.Fprintln(cli.out, "Your profile is incomplete. Complete it to continue.")
	return cli.completeProfile(ctx)
}

func (cli *commandLine) completeProfile(ctx context.Context) error {
	name, err := cli.prompt("Name")
	if err != nil {
		return err
	}
	phone, err := cli.prompt("Phone number")
	if err != nil {
		return err
	}
	return cli.gate.Complete(ctx, profile.CompleteProfile{Name: name, PhoneNumber: phone}, func() {
		fmt.Fprintln(cli.out, "Profile completed.")
	})
}

// dashboard shows the dashboard of the role in args, or the caller's own one.
// Asking for another role's dashboard is redirected to the caller's own.
func (cli *commandLine) dashboard(ctx context.Context, args []string) error {
	st := cli.ctrl.State()
	required := st.Role()
	if len(args) == 1 {
		var err error
		if required, err = profile.ParseRole(args[0]); err != nil || required == profile.RoleUnset {
			cli.printUsage()
			return errHelp
		}
	}

	d := guard.Decide(st, required)
	// without a role there is no dashboard to admit to
	if d.Action == guard.Admit && required == profile.RoleUnset {
		d = guard.Decision{Action: guard.Redirect, Target: guard.DashboardPath(required)}
	}
	switch {
	case d.Action == guard.Wait:
		return errors.Errorf("cannot show dashboard: %s", d)
	case d.Action == guard.Redirect && d.Target == guard.PathSignIn:
		return errNotSignedIn
	case d.Action == guard.Redirect && d.Target == guard.PathHome:
		fmt.Fprintf(cli.out, "Redirected to %s\n", d.Target)
		return errNoDashboard
	case d.Action == guard.Redirect:
		fmt.Fprintf(cli.out, "Redirected to %s\n", d.Target)
	}
	role := st.Role()

	return cli.gated(ctx, func(ctx context.Context) error {
		w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
		switch role {
		case profile.RoleStudent:
			ov, err := cli.api.StudentDashboard(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Pending enrollments\t%d\n", ov.Pending)
			fmt.Fprintf(w, "Approved enrollments\t%d\n", ov.Approved)
			fmt.Fprintf(w, "Rejected enrollments\t%d\n", ov.Rejected)
			fmt.Fprintf(w, "Notices\t%d\n", ov.Notices)
			fmt.Fprintf(w, "Submissions\t%d\n", ov.Submissions)
		case profile.RoleTeacher:
			ov, err := cli.api.TeacherDashboard(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Batches\t%d\n", ov.Batches)
			fmt.Fprintf(w, "Pending requests\t%d\n", ov.PendingRequests)
			fmt.Fprintf(w, "Approved students\t%d\n", ov.ApprovedStudents)
			fmt.Fprintf(w, "Notices\t%d\n", ov.Notices)
			fmt.Fprintf(w, "Submissions\t%d\n", ov.Submissions)
		}
		return w.Flush()
	})
}

func (cli *commandLine) batches(ctx context.Context) error {
	batches, err := cli.api.Batches(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTART")
	for _, b := range batches {
		fmt.Fprintf(w, "%s\t%s\t%s\n", b.ID, b.Name, b.StartDate.Format("2006-01-02"))
	}
	return w.Flush()
}

func (cli *commandLine) enroll(ctx context.Context, batchID string) error {
	if cli.ctrl.State().Role() != profile.RoleStudent {
		return errNoPermission
	}
	return cli.gated(ctx, func(ctx context.Context) error {
		e, err := cli.api.RequestEnrollment(ctx, batchID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "Enrollment requested (%s): %s\n", e.Status, e.ID)
		return nil
	})
}

func (cli *commandLine) notices(ctx context.Context) error {
	notices, err := cli.api.Notices(ctx)
	if err != nil {
		return err
	}
	for _, n := range notices {
		scope := "all"
		if n.Batch != nil {
			scope = n.Batch.Name
		}
		fmt.Fprintf(cli.out, "[%s] %s (%s)\n  %s\n", n.CreatedAt.Format("2006-01-02"), n.Title, scope, n.Content)
	}
	return nil
}

func (cli *commandLine) submit(ctx context.Context, batchID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening homework")
	}
	defer f.Close()

	s, err := cli.api.Submit(ctx, batchID, f.Name(), f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Submitted: %s\n", s.ID)
	return nil
}

func (cli *commandLine) watch(ctx context.Context, tables []string) error {
	events, err := cli.api.Watch(ctx, tables...)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "Watching changes, interrupt to stop.")
	for ev := range events {
		fmt.Fprintf(cli.out, "%s %s %s\n", ev.Table, ev.Op, ev.RecordID)
	}
	return nil
}

// describe renders err for the terminal, with per-field validation messages.
func describe(err error, translator ut.Translator) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := verrs.Translate(translator)
		fields := make([]string, 0, len(msgs))
		for field, msg := range msgs {
			fields = append(fields, field+": "+msg)
		}
		sort.Strings(fields)
		return strings.Join(fields, ", ")
	}
	return err.Error()
}
