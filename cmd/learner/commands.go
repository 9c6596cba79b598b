package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"

	"github.com/ieltslisten/learner/internal/auth"
	"github.com/ieltslisten/learner/internal/catalog"
	"github.com/ieltslisten/learner/internal/payment"
	"github.com/ieltslisten/learner/internal/quiz"
)

func (e *env) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.out)
	return fs
}

func (e *env) table() *tabwriter.Writer {
	return tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
}

// prompt reads one line from stdin; used for secrets that should not end up
// in shell history.
func (e *env) prompt(label string) (string, error) {
	fmt.Fprint(e.out, label)
	line, err := e.in.ReadString('\n')
	if err != nil && line == "" {
		return "", errors.Wrap(err, "read input")
	}
	return strings.TrimSpace(line), nil
}

func argInt(args []string, i int, name string) (int64, error) {
	if len(args) <= i {
		return 0, errors.Errorf("missing %s", name)
	}
	n, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil || n <= 0 {
		return 0, errors.Errorf("invalid %s %q", name, args[i])
	}
	return n, nil
}

func argString(args []string, i int, name string) (string, error) {
	if len(args) <= i || args[i] == "" {
		return "", errors.Errorf("missing %s", name)
	}
	return args[i], nil
}

func cmdLogin(ctx context.Context, e *env, args []string) error {
	fs := e.flags("login")
	var f auth.LoginForm
	fs.StringVar(&f.Email, "email", "", "account e-mail")
	fs.StringVar(&f.Password, "password", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if f.Password == "" {
		p, err := e.prompt("Password: ")
		if err != nil {
			return err
		}
		f.Password = p
	}
	u, err := e.app.Auth.Login(ctx, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Signed in as %s\n", u.DisplayName())
	return nil
}

func cmdRegister(ctx context.Context, e *env, args []string) error {
	fs := e.flags("register")
	var f auth.RegisterForm
	fs.StringVar(&f.Email, "email", "", "account e-mail")
	fs.StringVar(&f.DisplayName, "name", "", "display name")
	fs.StringVar(&f.Password, "password", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if f.Password == "" {
		p, err := e.prompt("Password: ")
		if err != nil {
			return err
		}
		c, err := e.prompt("Confirm password: ")
		if err != nil {
			return err
		}
		f.Password, f.PasswordConfirm = p, c
	} else {
		f.PasswordConfirm = f.Password
	}
	u, err := e.app.Auth.Register(ctx, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Welcome, %s\n", u.DisplayName())
	return nil
}

func cmdLogout(ctx context.Context, e *env, _ []string) error {
	if err := e.app.Auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "Signed out")
	return nil
}

func cmdMe(ctx context.Context, e *env, _ []string) error {
	u, err := e.app.Auth.Me(ctx)
	if err != nil {
		return err
	}
	if e.json {
		return e.printJSON(u)
	}
	fmt.Fprintf(e.out, "%s <%s> (%s)\n", u.DisplayName(), u.Email, u.Role)
	if left, ok := e.app.Session.AccessExpiresIn(time.Now()); ok {
		fmt.Fprintf(e.out, "access token valid for %s\n", left.Round(time.Second))
	}
	es, err := e.app.Auth.Enrollments(ctx)
	if err != nil {
		return err
	}
	for _, en := range es {
		state := "active"
		if en.IsExpired {
			state = "expired"
		}
		fmt.Fprintf(e.out, "  %s (%s)\n", en.BookTitle, state)
	}
	return nil
}

func cmdProfile(ctx context.Context, e *env, args []string) error {
	fs := e.flags("profile")
	name := fs.String("display-name", "", "display name")
	phone := fs.String("phone", "", "phone number")
	dob := fs.String("dob", "", "date of birth, YYYY-MM-DD")
	bio := fs.String("bio", "", "short bio")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var f auth.ProfileForm
	set := false
	fs.Visit(func(fl *flag.Flag) {
		set = true
		switch fl.Name {
		case "display-name":
			f.DisplayName = name
		case "phone":
			f.Phone = phone
		case "dob":
			f.DateOfBirth = dob
		case "bio":
			f.Bio = bio
		}
	})
	if !set {
		p, err := e.app.Auth.Profile(ctx)
		if err != nil {
			return err
		}
		return e.printJSON(p)
	}
	p, err := e.app.Auth.UpdateProfile(ctx, f)
	if err != nil {
		return err
	}
	return e.printJSON(p)
}

func cmdPassword(ctx context.Context, e *env, _ []string) error {
	var f auth.ChangePasswordForm
	var err error
	if f.OldPassword, err = e.prompt("Current password: "); err != nil {
		return err
	}
	if f.NewPassword, err = e.prompt("New password: "); err != nil {
		return err
	}
	if f.NewPasswordConfirm, err = e.prompt("Confirm new password: "); err != nil {
		return err
	}
	if err := e.app.Auth.ChangePassword(ctx, f); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "Password changed")
	return nil
}

func cmdPrefs(ctx context.Context, e *env, args []string) error {
	fs := e.flags("prefs")
	lang := fs.String("lang", "", "interface language, vi or en")
	theme := fs.String("theme", "", "light or dark")
	toggle := fs.Bool("toggle-theme", false, "switch between light and dark")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p := e.app.Prefs
	if *lang != "" {
		if err := p.SetLanguage(ctx, *lang); err != nil {
			return err
		}
	}
	if *theme != "" {
		if err := p.SetTheme(ctx, *theme); err != nil {
			return err
		}
	}
	if *toggle {
		if _, err := p.ToggleTheme(ctx); err != nil {
			return err
		}
	}
	return e.printJSON(p.Get())
}

func cmdBooks(ctx context.Context, e *env, args []string) error {
	fs := e.flags("books")
	var f catalog.BookFilter
	fs.StringVar(&f.Search, "search", "", "search title and description")
	fs.StringVar(&f.Ordering, "ordering", "", "e.g. price, -created_at")
	fs.IntVar(&f.Page, "page", 0, "page number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	books, err := e.app.Catalog.Books(ctx, f)
	if err != nil {
		return err
	}
	if e.json {
		return e.printJSON(books)
	}
	tw := e.table()
	fmt.Fprintln(tw, "ID\tSLUG\tTITLE\tUNITS\tFREE\tPRICE\tOWNED")
	for _, b := range books {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%.0f\t%v\n", b.ID, b.Slug, b.Title, b.UnitCount, b.FreeUnitsCount, b.Price.Float(), b.IsOwned)
	}
	return tw.Flush()
}

func cmdBook(ctx context.Context, e *env, args []string) error {
	slug, err := argString(args, 0, "book slug")
	if err != nil {
		return err
	}
	b, err := e.app.Catalog.Book(ctx, slug)
	if err != nil {
		return err
	}
	return e.printJSON(b)
}

func cmdUnits(ctx context.Context, e *env, args []string) error {
	slug, err := argString(args, 0, "book slug")
	if err != nil {
		return err
	}
	units, err := e.app.Catalog.BookUnits(ctx, slug)
	if err != nil {
		return err
	}
	if e.json {
		return e.printJSON(units)
	}
	tw := e.table()
	fmt.Fprintln(tw, "ID\t#\tTITLE\tLENGTH\tFREE\tQUIZ")
	for _, u := range units {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%v\t%v\n", u.ID, u.Order, u.Title, u.DurationFormatted, u.IsFree, u.HasQuiz)
	}
	return tw.Flush()
}

func cmdUnit(ctx context.Context, e *env, args []string) error {
	id, err := argInt(args, 0, "unit id")
	if err != nil {
		return err
	}
	u, err := e.app.Catalog.Unit(ctx, id)
	if err != nil {
		return err
	}
	if e.json {
		return e.printJSON(u)
	}
	fmt.Fprintf(e.out, "%s (%s)\n", u.Title, u.DurationFormatted)
	for _, a := range u.Assets {
		fmt.Fprintf(e.out, "  %s %s\n", a.Type, a.SizeFormatted)
	}
	if pos, ok, err := e.app.Positions.Get(ctx, id); err == nil && ok {
		fmt.Fprintf(e.out, "resume at %s\n", (time.Duration(pos) * time.Second).String())
	}
	return nil
}

func cmdAsset(ctx context.Context, e *env, args []string) error {
	fs := e.flags("asset")
	typ := fs.String("type", catalog.AssetAudio, "audio, pdf or subtitle")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := argInt(fs.Args(), 0, "unit id")
	if err != nil {
		return err
	}
	u, err := e.app.Catalog.AssetURL(ctx, id, *typ)
	if err != nil {
		return err
	}
	if e.json {
		return e.printJSON(u)
	}
	fmt.Fprintf(e.out, "%s\n(expires in %ds)\n", u.URL, u.ExpiresIn)
	return nil
}

func cmdAttempts(ctx context.Context, e *env, args []string) error {
	fs := e.flags("attempts")
	unit := fs.Int64("unit", 0, "only attempts for this unit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	as, err := e.app.Quiz.Attempts(ctx, *unit)
	if err != nil {
		return err
	}
	if e.json {
		return e.printJSON(as)
	}
	tw := e.table()
	fmt.Fprintln(tw, "ID\tUNIT\tSCORE\tPASSED\tSUBMITTED")
	for _, a := range as {
		submitted := "-"
		if a.SubmittedAt != nil {
			submitted = a.SubmittedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%d\t%s\t%.1f%%\t%v\t%s\n", a.ID, a.UnitTitle, a.ScorePct.Float(), a.IsPassed, submitted)
	}
	return tw.Flush()
}

func cmdAttempt(ctx context.Context, e *env, args []string) error {
	id, err := argInt(args, 0, "attempt id")
	if err != nil {
		return err
	}
	a, err := e.app.Quiz.Attempt(ctx, id)
	if err != nil {
		return err
	}
	return e.printJSON(a)
}

func cmdBest(ctx context.Context, e *env, args []string) error {
	id, err := argInt(args, 0, "unit id")
	if err != nil {
		return err
	}
	a, err := e.app.Quiz.Best(ctx, id)
	if err != nil {
		return err
	}
	if a == nil {
		fmt.Fprintln(e.out, "No attempts yet")
		return nil
	}
	if e.json {
		return e.printJSON(a)
	}
	fmt.Fprintf(e.out, "Best: %.1f%% (%s)\n", a.ScorePct.Float(), quiz.Grade(a.ScorePct.Float()))
	return nil
}

func cmdStats(ctx context.Context, e *env, args []string) error {
	id, err := argInt(args, 0, "unit id")
	if err != nil {
		return err
	}
	s, err := e.app.Quiz.Stats(ctx, id)
	if err != nil {
		return err
	}
	if e.json {
		return e.printJSON(s)
	}
	fmt.Fprintf(e.out, "attempts %d  best %.1f%%  average %.1f%%\n", s.Attempts, s.Best, s.Average)
	for _, b := range s.Buckets {
		fmt.Fprintf(e.out, "  %3d-%-3d %s\n", b.Low, b.High, strings.Repeat("#", b.Count))
	}
	return nil
}

func cmdProgress(ctx context.Context, e *env, args []string) error {
	fs := e.flags("progress")
	book := fs.String("book", "", "only this book")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *book != "" {
		p, err := e.app.Progress.ForBook(ctx, *book)
		if err != nil {
			return err
		}
		return e.printJSON(p)
	}
	rows, err := e.app.Progress.Progress(ctx)
	if err != nil {
		return err
	}
	if e.json {
		return e.printJSON(rows)
	}
	tw := e.table()
	fmt.Fprintln(tw, "BOOK\tDONE\tUNITS\tLAST SCORE\tLISTENED")
	for _, p := range rows {
		fmt.Fprintf(tw, "%s\t%.0f%%\t%d\t%.1f%%\t%s\n", p.BookTitle, p.CompletionPct.Float(), p.CompletedUnits,
			p.LastScorePct.Float(), time.Duration(p.TotalListenSec)*time.Second)
	}
	return tw.Flush()
}

func cmdAnalytics(ctx context.Context, e *env, _ []string) error {
	a, err := e.app.Progress.Analytics(ctx)
	if err != nil {
		return err
	}
	if e.json {
		return e.printJSON(a)
	}
	fmt.Fprintf(e.out, "listened %s  average score %.1f%%  books started %d\n",
		time.Duration(a.TotalListenTime)*time.Second, a.AvgScore.Float(), a.BooksStarted)
	for _, s := range a.RecentSessions {
		fmt.Fprintf(e.out, "  %s  %s  %ds\n", s.CreatedAt.Local().Format("2006-01-02 15:04"), s.UnitTitle, s.DurationSec)
	}
	return nil
}

func cmdTick(ctx context.Context, e *env, args []string) error {
	fs := e.flags("tick")
	completed := fs.Bool("completed", false, "mark the unit completed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	unit, err := argInt(fs.Args(), 0, "unit id")
	if err != nil {
		return err
	}
	secs, err := argInt(fs.Args(), 1, "seconds")
	if err != nil {
		return err
	}
	s, err := e.app.Progress.Tick(ctx, unit, int(secs), *completed)
	if err != nil {
		return err
	}
	return e.printJSON(s)
}

func cmdPosition(ctx context.Context, e *env, args []string) error {
	fs := e.flags("position")
	set := fs.Float64("set", 0, "save this position, in seconds")
	forget := fs.Bool("clear", false, "forget the saved position")
	if err := fs.Parse(args); err != nil {
		return err
	}
	unit, err := argInt(fs.Args(), 0, "unit id")
	if err != nil {
		return err
	}
	switch {
	case *forget:
		return e.app.Positions.Clear(ctx, unit)
	case *set > 0:
		return e.app.Positions.Save(ctx, unit, *set)
	}
	pos, ok, err := e.app.Positions.Get(ctx, unit)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(e.out, "no saved position")
		return nil
	}
	fmt.Fprintf(e.out, "%.1f\n", pos)
	return nil
}

func cmdBuy(ctx context.Context, e *env, args []string) error {
	fs := e.flags("buy")
	provider := fs.String("provider", string(payment.VNPay), "vnpay or momo")
	if err := fs.Parse(args); err != nil {
		return err
	}
	book, err := argInt(fs.Args(), 0, "book id")
	if err != nil {
		return err
	}
	cfg := e.app.Config

	rs, err := payment.StartReturnServer(cfg.ReturnAddr)
	if err != nil {
		return err
	}
	defer rs.Close()

	o, co, err := e.app.Payment.Buy(ctx, book, payment.Provider(*provider))
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Order %d: %.0f %s\nOpen this page to pay:\n  %s\n", o.ID, o.Amount.Float(), o.Currency, co.PaymentURL)
	if co.Deeplink != "" {
		fmt.Fprintf(e.out, "MoMo app: %s\n", co.Deeplink)
	}
	fmt.Fprintf(e.out, "Waiting for the provider to return to %s ...\n", rs.URL())

	wctx, cancel := context.WithTimeout(ctx, 15*time.Minute)
	ret, err := rs.Wait(wctx)
	cancel()
	if err != nil {
		// no redirect reached us; the order status is still authoritative
		ret = payment.Return{OrderID: o.ID}
	}
	out, err := e.app.Payment.Settle(ctx, ret)
	if err != nil {
		if errors.Is(err, payment.ErrStillPending) {
			fmt.Fprintf(e.out, "Payment for order %d is still pending; check again with: learner order -wait %d\n", o.ID, o.ID)
			return nil
		}
		return err
	}
	return e.printOutcome(out)
}

func (e *env) printOutcome(out *payment.Outcome) error {
	if e.json {
		return e.printJSON(out)
	}
	if out.Succeeded() {
		fmt.Fprintf(e.out, "Payment succeeded, %s is unlocked\n", out.Order.BookTitle)
		return nil
	}
	fmt.Fprintf(e.out, "Payment %s", out.Status)
	if out.Message != "" {
		fmt.Fprintf(e.out, ": %s", out.Message)
	}
	fmt.Fprintln(e.out)
	return nil
}

func cmdOrders(ctx context.Context, e *env, _ []string) error {
	orders, err := e.app.Payment.Orders(ctx)
	if err != nil {
		return err
	}
	if e.json {
		return e.printJSON(orders)
	}
	tw := e.table()
	fmt.Fprintln(tw, "ID\tBOOK\tAMOUNT\tPROVIDER\tSTATUS\tCREATED")
	for _, o := range orders {
		fmt.Fprintf(tw, "%d\t%s\t%.0f\t%s\t%s\t%s\n", o.ID, o.BookTitle, o.Amount.Float(), o.Provider, o.Status,
			o.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func cmdOrder(ctx context.Context, e *env, args []string) error {
	fs := e.flags("order")
	wait := fs.Bool("wait", false, "poll until the order is paid or failed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := argInt(fs.Args(), 0, "order id")
	if err != nil {
		return err
	}
	if !*wait {
		o, err := e.app.Payment.Order(ctx, id)
		if err != nil {
			return err
		}
		return e.printJSON(o)
	}
	out, err := e.app.Payment.Settle(ctx, payment.Return{OrderID: id})
	if err != nil {
		return err
	}
	return e.printOutcome(out)
}

func cmdJournal(ctx context.Context, e *env, args []string) error {
	fs := e.flags("journal")
	typ := fs.String("type", "", "only events of this type")
	n := fs.Int("n", 20, "how many events")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if e.app.Journal == nil {
		return errors.New("journal needs a sqlite or postgres database")
	}
	events, err := e.app.Journal.List(ctx, *typ, *n)
	if err != nil {
		return err
	}
	if e.json {
		return e.printJSON(events)
	}
	for _, ev := range events {
		fmt.Fprintf(e.out, "%s  %-15s %-6s %s\n", time.Unix(ev.CreatedAt, 0).Local().Format("2006-01-02 15:04:05"), ev.Type, ev.Key, ev.Data)
	}
	return nil
}
