package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/fang"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"rallyterm/internal/config"
	"rallyterm/internal/ownercache"
	"rallyterm/internal/rally"
	"rallyterm/internal/service"
	"rallyterm/internal/ui"
)

// globalOptions holds the flags shared by every subcommand.
type globalOptions struct {
	server     string
	apiKeyFile string
	verbose    bool
}

func (o *globalOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.server, "server", "", "Tracker server host (overrides config)")
	fs.StringVar(&o.apiKeyFile, "apikey-file", "", "Path to the API key file (overrides config)")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "Enable debug logging")
}

func (o *globalOptions) createService() (*service.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("cannot load configuration: %w", err)
	}

	if o.server != "" {
		cfg.Server = o.server
	}
	if o.apiKeyFile != "" {
		cfg.APIKeyFile = o.apiKeyFile
	}

	apiKey, err := cfg.APIKey()
	if err != nil {
		return nil, err
	}

	logger := logrus.NewEntry(logrus.StandardLogger())

	dispatcher := rally.NewDispatcher(rally.DispatcherConfig{
		BaseURL:     rally.BaseURL(cfg.Server),
		APIKey:      apiKey,
		MaxInFlight: cfg.MaxInFlight,
		Timeout:     cfg.RequestTimeout(),
		Logger:      logger,
	})

	client := rally.NewClient(dispatcher, logger)

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir, err = ownercache.DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine cache directory: %w", err)
		}
	}

	return service.New(client, ownercache.New(cacheDir, logger), logger), nil
}

func main() {
	globals := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "rallyterm",
		Short: "Terminal client for the Rally work tracker",
		Long: `rallyterm is a terminal client for a Rally-style agile work tracker.
It fetches tickets, iterations, releases and users through the tracker's
REST API and renders them as plain text or as an interactive sprint board.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if globals.verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	globals.addFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newTicketCmd(globals),
		newTicketsCmd(globals),
		newIterationsCmd(globals),
		newReleasesCmd(globals),
		newUsersCmd(globals),
		newSearchCmd(globals),
		newCommentCmd(globals),
		newSprintCmd(globals),
		newBoardCmd(globals),
		newCacheCmd(globals),
	)

	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		logrus.WithError(err).Fatal("command failed")
	}
}

func parseWindow(value string) (rally.Window, error) {
	switch value {
	case "", "all":
		return rally.WindowAll, nil
	case "current":
		return rally.WindowCurrent, nil
	case "future":
		return rally.WindowFuture, nil
	case "past":
		return rally.WindowPast, nil
	default:
		return rally.WindowAll, fmt.Errorf("unknown window %q (want all, current, future or past)", value)
	}
}

func newTicketCmd(globals *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ticket <formatted-id>",
		Short: "Show a single ticket by its formatted ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globals.createService()
			if err != nil {
				return err
			}

			ticket, err := svc.GetTicket(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("cannot fetch ticket: %w", err)
			}
			if ticket == nil {
				fmt.Printf("Ticket %s not found\n", args[0])
				return nil
			}

			printTicket(*ticket)

			discussions, err := svc.GetDiscussions(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("cannot fetch discussions: %w", err)
			}
			for _, discussion := range discussions {
				fmt.Printf("\n[%s] %s:\n%s\n",
					discussion.CreatedAt.Format("2006-01-02 15:04"),
					discussion.User,
					discussion.Text)
			}

			return nil
		},
	}
}

// ticketsOptions holds the flags of the tickets subcommand.
type ticketsOptions struct {
	iteration string
	owner     string
	states    []string
	limit     int
}

func (o *ticketsOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.iteration, "iteration", "i", "", "Filter by iteration name")
	fs.StringVarP(&o.owner, "owner", "o", "", "Filter by owner name")
	fs.StringSliceVarP(&o.states, "state", "s", nil, "Filter by schedule state (repeatable)")
	fs.IntVarP(&o.limit, "limit", "n", 20, "Maximum number of tickets")
}

func newTicketsCmd(globals *globalOptions) *cobra.Command {
	opts := &ticketsOptions{}

	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "List tickets, optionally filtered by iteration, owner and state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globals.createService()
			if err != nil {
				return err
			}

			tickets, err := svc.GetTickets(cmd.Context(), rally.TicketQuery{
				Iteration: opts.iteration,
				Owner:     opts.owner,
				States:    opts.states,
				Limit:     opts.limit,
			})
			if err != nil {
				return fmt.Errorf("cannot fetch tickets: %w", err)
			}

			printTicketList(tickets)
			return nil
		},
	}

	opts.addFlags(cmd.Flags())

	return cmd
}

// timeframeOptions holds the flags shared by the iterations and releases
// subcommands.
type timeframeOptions struct {
	window string
	limit  int
}

func (o *timeframeOptions) addFlags(fs *pflag.FlagSet, noun string) {
	fs.StringVarP(&o.window, "window", "w", "all", "Timeframe: all, current, future or past")
	fs.IntVarP(&o.limit, "limit", "n", 10, fmt.Sprintf("Maximum number of %s", noun))
}

func newIterationsCmd(globals *globalOptions) *cobra.Command {
	opts := &timeframeOptions{}

	cmd := &cobra.Command{
		Use:   "iterations",
		Short: "List iterations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := parseWindow(opts.window)
			if err != nil {
				return err
			}

			svc, err := globals.createService()
			if err != nil {
				return err
			}

			iterations, err := svc.GetIterations(cmd.Context(), window, opts.limit)
			if err != nil {
				return fmt.Errorf("cannot fetch iterations: %w", err)
			}

			for _, iteration := range iterations {
				marker := " "
				if iteration.IsCurrent(time.Now()) {
					marker = "*"
				}
				fmt.Printf("%s %s  %s - %s  (%s)\n", marker, iteration.Name,
					iteration.StartDate.Format("2006-01-02"),
					iteration.EndDate.Format("2006-01-02"),
					iteration.State)
			}
			return nil
		},
	}

	opts.addFlags(cmd.Flags(), "iterations")

	return cmd
}

func newReleasesCmd(globals *globalOptions) *cobra.Command {
	opts := &timeframeOptions{}

	cmd := &cobra.Command{
		Use:   "releases",
		Short: "List releases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := parseWindow(opts.window)
			if err != nil {
				return err
			}

			svc, err := globals.createService()
			if err != nil {
				return err
			}

			releases, err := svc.GetReleases(cmd.Context(), window, opts.limit)
			if err != nil {
				return fmt.Errorf("cannot fetch releases: %w", err)
			}

			for _, release := range releases {
				marker := " "
				if release.IsCurrent(time.Now()) {
					marker = "*"
				}
				fmt.Printf("%s %s  %s - %s  (%s)\n", marker, release.Name,
					release.StartDate.Format("2006-01-02"),
					release.EndDate.Format("2006-01-02"),
					release.State)
			}
			return nil
		},
	}

	opts.addFlags(cmd.Flags(), "releases")

	return cmd
}

func newUsersCmd(globals *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "users [iteration]",
		Short: "List ticket owners in an iteration (default: current)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var iterationName string
			if len(args) == 1 {
				iterationName = args[0]
			}

			svc, err := globals.createService()
			if err != nil {
				return err
			}

			owners, err := svc.GetUsers(cmd.Context(), iterationName)
			if err != nil {
				return fmt.Errorf("cannot fetch users: %w", err)
			}

			if owners.Len() == 0 {
				fmt.Println("No owners found")
				return nil
			}

			for _, owner := range owners.Values() {
				if owner.UserName != "" {
					fmt.Printf("%s (%s)\n", owner.DisplayName, owner.UserName)
				} else {
					fmt.Println(owner.DisplayName)
				}
			}
			return nil
		},
	}
}

// searchOptions holds the flags of the search subcommand.
type searchOptions struct {
	limit int
}

func (o *searchOptions) addFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&o.limit, "limit", "n", 20, "Maximum number of results")
}

func newSearchCmd(globals *globalOptions) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search tickets by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globals.createService()
			if err != nil {
				return err
			}

			tickets, err := svc.SearchTickets(cmd.Context(), args[0], opts.limit)
			if err != nil {
				return fmt.Errorf("cannot search tickets: %w", err)
			}

			printTicketList(tickets)
			return nil
		},
	}

	opts.addFlags(cmd.Flags())

	return cmd
}

func newCommentCmd(globals *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <formatted-id> <text>",
		Short: "Add a comment to a ticket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := globals.createService()
			if err != nil {
				return err
			}

			discussion, err := svc.AddComment(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("cannot add comment: %w", err)
			}

			fmt.Printf("Comment added to %s at %s\n", args[0],
				discussion.CreatedAt.Format("2006-01-02 15:04"))
			return nil
		},
	}
}

func newSprintCmd(globals *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sprint [iteration]",
		Short: "Print a sprint summary (default: current iteration)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var iterationName string
			if len(args) == 1 {
				iterationName = args[0]
			}

			svc, err := globals.createService()
			if err != nil {
				return err
			}

			summary, err := svc.GetSprintSummary(cmd.Context(), iterationName)
			if err != nil {
				return fmt.Errorf("cannot build sprint summary: %w", err)
			}

			fmt.Printf("Sprint: %s (%s - %s)\n", summary.Iteration.Name,
				summary.Iteration.StartDate.Format("2006-01-02"),
				summary.Iteration.EndDate.Format("2006-01-02"))
			fmt.Printf("%d tickets, %.1f points, %.1f accepted\n\n",
				len(summary.Tickets), summary.TotalPoints, summary.AcceptedPoints)

			printTicketList(summary.Tickets)
			return nil
		},
	}
}

func newBoardCmd(globals *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "board [iteration]",
		Short: "Open the interactive sprint board (default: current iteration)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var iterationName string
			if len(args) == 1 {
				iterationName = args[0]
			}

			svc, err := globals.createService()
			if err != nil {
				return err
			}

			model := ui.NewModel(svc, iterationName)
			if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
				return fmt.Errorf("cannot run TUI: %w", err)
			}
			return nil
		},
	}
}

func newCacheCmd(globals *globalOptions) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the owner cache",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear [scope]",
		Short: "Clear one cached iteration scope, or everything",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var scope string
			if len(args) == 1 {
				scope = args[0]
			}

			svc, err := globals.createService()
			if err != nil {
				return err
			}

			if err := svc.ClearUserCache(scope); err != nil {
				return fmt.Errorf("cannot clear cache: %w", err)
			}

			if scope == "" {
				fmt.Println("Owner cache cleared")
			} else {
				fmt.Printf("Owner cache cleared for %q\n", scope)
			}
			return nil
		},
	})

	return cacheCmd
}

func printTicket(ticket rally.Ticket) {
	fmt.Printf("%s: %s\n", ticket.FormattedID, ticket.Name)
	fmt.Printf("  Type:      %s\n", ticket.Type)
	fmt.Printf("  State:     %s\n", ticket.State)
	if ticket.Owner != "" {
		fmt.Printf("  Owner:     %s\n", ticket.Owner)
	}
	if ticket.Iteration != "" {
		fmt.Printf("  Iteration: %s\n", ticket.Iteration)
	}
	if ticket.Points > 0 {
		fmt.Printf("  Points:    %.1f\n", ticket.Points)
	}
	if ticket.ParentID != "" {
		fmt.Printf("  Parent:    %s\n", ticket.ParentID)
	}
	if ticket.Description != "" {
		fmt.Printf("\n%s\n", strings.TrimSpace(ticket.Description))
	}
}

func printTicketList(tickets []rally.Ticket) {
	if len(tickets) == 0 {
		fmt.Println("No tickets found")
		return
	}

	for _, ticket := range tickets {
		owner := ticket.Owner
		if owner == "" {
			owner = "-"
		}
		fmt.Printf("%-8s %-14s %-20s %s\n", ticket.FormattedID, ticket.State, owner, ticket.Name)
	}
}
