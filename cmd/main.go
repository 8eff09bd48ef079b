package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"githubexplorer/controller"
	"githubexplorer/detail"
	"githubexplorer/display"
	"githubexplorer/fetcher"
	"githubexplorer/models"
	"githubexplorer/query"
	"githubexplorer/service"
	"githubexplorer/viewstate"
)

const usage = `Usage: githubexplorer <command> [flags]

Commands:
  repos   search recently created repositories
  users   search users
  freq    show weekly code frequency of owner/name
  fav     manage favorites: list | add-repo owner/name | add-user login | remove-repo ID | remove-user ID
  watch   summarize favorite repositories periodically
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	svc, err := service.NewService()
	if err != nil {
		log.Fatalf("Failed to initialize service: %v", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Printf("Error during service shutdown: %v", err)
		}
	}()

	if err := run(svc, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		svc.Close()
		os.Exit(1)
	}
}

func run(svc *service.Service, cmd string, args []string, out io.Writer) error {
	ctx := svc.Context()

	switch cmd {
	case "repos":
		return runRepos(ctx, svc, args, out)
	case "users":
		return runUsers(ctx, svc, args, out)
	case "freq":
		return runFreq(ctx, svc, args, out)
	case "fav":
		if err := svc.OpenStore(ctx); err != nil {
			return err
		}
		return runFav(ctx, svc, args, out)
	case "watch":
		if err := svc.OpenStore(ctx); err != nil {
			return err
		}
		return svc.Watch()
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

type listingFlags struct {
	text     string
	language string
	sort     string
	order    string
	window   string
	pages    int
}

func parseListing(name string, args []string, withWindow bool) (listingFlags, error) {
	var lf listingFlags
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVarP(&lf.text, "query", "q", "", "free-text search")
	fs.StringVarP(&lf.language, "language", "l", "", "language qualifier")
	fs.StringVarP(&lf.sort, "sort", "s", "", "sort key")
	fs.StringVarP(&lf.order, "order", "o", string(query.Desc), "sort order (asc|desc)")
	fs.IntVarP(&lf.pages, "pages", "p", 1, "number of pages to load")
	if withWindow {
		fs.StringVarP(&lf.window, "window", "w", string(query.OneWeek), "created within (1week|2week|1month|6month|1year)")
	}
	if err := fs.Parse(args); err != nil {
		return lf, err
	}
	if withWindow {
		if _, err := query.ParseTimeWindow(lf.window); err != nil {
			return lf, err
		}
	}
	return lf, nil
}

func (lf listingFlags) events() []controller.Event {
	events := []controller.Event{
		controller.SetText(lf.text),
		controller.SetLanguage(lf.language),
		controller.SetOrder(query.Order(lf.order)),
	}
	if lf.sort != "" {
		events = append(events, controller.SetSort(query.SortKey(lf.sort)))
	}
	if lf.window != "" {
		events = append(events, controller.SetWindow(query.TimeWindow(lf.window)))
	}
	events = append(events, controller.Event{Type: controller.Mount})
	for i := 1; i < lf.pages; i++ {
		events = append(events, controller.Event{Type: controller.LoadMore})
	}
	return events
}

// drive dispatches events and returns the final listing, stopping at the
// first fetch error other than running out of pages.
func drive[T models.Item](ctx context.Context, c *controller.Controller[T], events []controller.Event) (fetcher.Result[T], error) {
	for _, ev := range events {
		for _, o := range c.Dispatch(ctx, ev) {
			if o.Err != nil && !errors.Is(o.Err, fetcher.ErrNoMorePages) {
				return o.Result, o.Err
			}
		}
	}
	return c.Snapshot(), nil
}

func runRepos(ctx context.Context, svc *service.Service, args []string, out io.Writer) error {
	lf, err := parseListing("repos", args, true)
	if err != nil {
		return err
	}

	c := svc.Repositories()
	res, err := drive(ctx, c, lf.events())
	if err != nil {
		return noticeOr(res.State, err)
	}

	printSummary(out, "repositories", c.Summarize(), res.State)
	now := time.Now()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREPOSITORY\tSTARS\tFORKS\tLANGUAGE\tUPDATED")
	for _, r := range res.Page.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.FullName,
			display.Count(r.StargazersCount), display.Count(r.ForksCount),
			orDash(r.Language), display.Ago(now, r.UpdatedAt))
	}
	return w.Flush()
}

func runUsers(ctx context.Context, svc *service.Service, args []string, out io.Writer) error {
	lf, err := parseListing("users", args, false)
	if err != nil {
		return err
	}

	c := svc.Users()
	res, err := drive(ctx, c, lf.events())
	if err != nil {
		return noticeOr(res.State, err)
	}

	printSummary(out, "users", c.Summarize(), res.State)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLOGIN\tNAME\tFOLLOWERS\tFOLLOWING\tREPOS\tLOCATION")
	for _, u := range res.Page.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			u.ID, u.Login, orDash(u.Name),
			display.OptionalCount(u.Followers), display.OptionalCount(u.Following),
			display.OptionalCount(u.PublicRepos), orDash(u.Location))
	}
	return w.Flush()
}

func runFreq(ctx context.Context, svc *service.Service, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("freq takes exactly one owner/name argument")
	}

	snap, err := svc.CodeFrequency(ctx, args[0])
	if err != nil {
		return noticeOr(snap.State, err)
	}
	printFrequency(out, snap)
	return nil
}

func printFrequency(out io.Writer, snap detail.Snapshot) {
	fmt.Fprintf(out, "%s\n", snap.Navigation.FullName)
	if snap.State.Kind == viewstate.Empty {
		fmt.Fprintln(out, snap.State.Notice)
		return
	}

	r := snap.Result
	fmt.Fprintf(out, "%d weeks: +%d -%d (net %d)\n\n",
		r.Weeks, r.Totals.Additions, r.Totals.Deletions, r.Totals.Net())

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "WEEK\tADDITIONS\tDELETIONS\tNET\t")
	for i := range r.Labels {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t\n", r.Labels[i], r.Additions[i], r.Deletions[i], r.Net[i])
	}
	w.Flush()
}

func runFav(ctx context.Context, svc *service.Service, args []string, out io.Writer) error {
	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "list":
		repos, users, err := svc.Favorites(ctx)
		if err != nil {
			return err
		}
		printFavorites(out, repos, users)
		return nil
	case "add-repo", "add-user", "remove-repo", "remove-user":
		if len(args) != 2 {
			return fmt.Errorf("fav %s takes exactly one argument", args[0])
		}
	default:
		return fmt.Errorf("unknown fav command %q", args[0])
	}

	var err error
	switch args[0] {
	case "add-repo":
		_, err = svc.AddFavoriteRepository(ctx, args[1])
	case "add-user":
		_, err = svc.AddFavoriteUser(ctx, args[1])
	case "remove-repo", "remove-user":
		var id int64
		if id, err = strconv.ParseInt(args[1], 10, 64); err != nil {
			return fmt.Errorf("invalid id %q: %w", args[1], err)
		}
		if args[0] == "remove-repo" {
			_, err = svc.RemoveFavoriteRepository(ctx, id)
		} else {
			_, err = svc.RemoveFavoriteUser(ctx, id)
		}
	}
	if err != nil {
		return err
	}

	repos, users, err := svc.Favorites(ctx)
	if err != nil {
		return err
	}
	printFavorites(out, repos, users)
	return nil
}

func printFavorites(out io.Writer, repos []models.Repository, users []models.User) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Favorite repositories (%d)\n", len(repos))
	for _, r := range repos {
		fmt.Fprintf(w, "  %d\t%s\t%s stars\n", r.ID, r.FullName, display.Count(r.StargazersCount))
	}
	fmt.Fprintf(w, "Favorite users (%d)\n", len(users))
	for _, u := range users {
		fmt.Fprintf(w, "  %d\t%s\t%s followers\n", u.ID, u.Login, display.OptionalCount(u.Followers))
	}
	w.Flush()
}

func printSummary(out io.Writer, noun string, s controller.Summary, state viewstate.State) {
	if state.Kind == viewstate.Empty {
		fmt.Fprintln(out, state.Notice)
		return
	}
	fmt.Fprintf(out, "Found %d %s", s.Found, noun)
	if len(s.Chips) > 0 {
		fmt.Fprintf(out, " [%s]", strings.Join(s.Chips, ", "))
	}
	fmt.Fprintf(out, "\nShowing %d of %d\n", s.Showing, s.Of)
	if state.Notice != "" {
		fmt.Fprintln(out, state.Notice)
	}
	fmt.Fprintln(out)
}

// noticeOr prefers the user-facing notice of a failed state over the raw error.
func noticeOr(state viewstate.State, err error) error {
	if state.Kind == viewstate.Error && state.Notice != "" {
		return errors.New(state.Notice)
	}
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
