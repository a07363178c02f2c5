package cli

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	authsession "github.com/trackwise/authsession"
	"github.com/trackwise/authsession/api"
	"github.com/trackwise/authsession/internal/output"
)

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func parseRouteID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, output.Usage("route id %q must be a positive integer", arg)
	}
	return id, nil
}

// signedIn returns the API client when a session exists.
func (a *app) signedIn(cmd *cobra.Command) (*api.Client, error) {
	mgr, err := a.session(cmd.Context())
	if err != nil {
		return nil, err
	}
	if mgr.State() != authsession.StateAuthenticated {
		return nil, errNotSignedIn
	}
	return mgr.API(), nil
}

func (a *app) routesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Manage saved routes",
	}
	cmd.AddCommand(a.routesListCommand(), a.routesAddCommand(), a.routesRemoveCommand(), a.routesFavoriteCommand())
	return cmd
}

func (a *app) routesListCommand() *cobra.Command {
	var opts api.ListRoutesOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.signedIn(cmd)
			if err != nil {
				return err
			}
			list, err := client.ListRoutes(cmd.Context(), opts)
			if err != nil {
				if errors.Is(err, api.ErrInvalidPaging) {
					return output.Usage("--skip must be >= 0 and --limit between 1 and 100")
				}
				return err
			}
			if len(list.Routes) == 0 {
				a.printer.Info("no saved routes")
				return nil
			}

			table := output.NewTable(a.printer.Out(), []string{"ID", "Name", "Origin", "Destination", "Favorite"})
			for _, r := range list.Routes {
				fav := ""
				if r.IsFavorite {
					fav = "★"
				}
				table.AddRow(itoa(r.ID), r.Name, r.Origin, r.Destination, fav)
			}
			if err := table.Render(); err != nil {
				return err
			}
			a.printer.Print("%s", a.printer.Dim(strconv.Itoa(len(list.Routes))+" of "+strconv.Itoa(list.Total)+" routes, "+strconv.Itoa(list.FavoritesCount)+" favorites"))
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Skip, "skip", 0, "routes to skip")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "page size, 1 to 100 (default server-side 100)")
	cmd.Flags().BoolVar(&opts.FavoritesOnly, "favorites", false, "only favorites")
	return cmd
}

func (a *app) routesAddCommand() *cobra.Command {
	var in api.NewRoute
	var notes, routeTypes string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Save a route",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.Name == "" || in.Origin == "" || in.Destination == "" {
				return output.Usage("--name, --origin and --destination are required")
			}
			if notes != "" {
				in.Notes = &notes
			}
			if routeTypes != "" {
				in.RouteTypes = &routeTypes
			}
			client, err := a.signedIn(cmd)
			if err != nil {
				return err
			}
			route, err := client.CreateRoute(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.printer.Success("saved route %d (%s)", route.ID, route.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "route name")
	cmd.Flags().StringVar(&in.Origin, "origin", "", "origin stop or address")
	cmd.Flags().StringVar(&in.Destination, "destination", "", "destination stop or address")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	cmd.Flags().StringVar(&routeTypes, "types", "", "comma-separated transit types")
	cmd.Flags().BoolVar(&in.IsFavorite, "favorite", false, "mark as favorite")
	return cmd
}

func (a *app) routesRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Delete a saved route",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRouteID(args[0])
			if err != nil {
				return err
			}
			client, err := a.signedIn(cmd)
			if err != nil {
				return err
			}
			if err := client.DeleteRoute(cmd.Context(), id); err != nil {
				return err
			}
			a.printer.Success("deleted route %d", id)
			return nil
		},
	}
}

func (a *app) routesFavoriteCommand() *cobra.Command {
	var unset bool
	cmd := &cobra.Command{
		Use:   "favorite <id>",
		Short: "Mark or unmark a route as favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRouteID(args[0])
			if err != nil {
				return err
			}
			client, err := a.signedIn(cmd)
			if err != nil {
				return err
			}
			fav := !unset
			route, err := client.UpdateRoute(cmd.Context(), id, api.RouteUpdate{IsFavorite: &fav})
			if err != nil {
				return err
			}
			if route.IsFavorite {
				a.printer.Success("route %d is a favorite", route.ID)
			} else {
				a.printer.Success("route %d is no longer a favorite", route.ID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&unset, "unset", false, "remove the favorite mark")
	return cmd
}
