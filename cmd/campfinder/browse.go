package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/abelbrown/campfinder/internal/coord"
	"github.com/abelbrown/campfinder/internal/home"
	"github.com/abelbrown/campfinder/internal/otel"
	"github.com/abelbrown/campfinder/internal/store"
	"github.com/abelbrown/campfinder/internal/ui"
)

// debugRingSize is how many recent events the debug overlay keeps.
const debugRingSize = 256

func (c *cli) newBrowseCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse homepage sections in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			ring := otel.NewRingBuffer(debugRingSize)
			c.events.SetRingBuffer(ring)

			builder := c.newBuilder(st)
			sources := c.backendSources()
			coordinator := coord.NewCoordinator(st, sources, c.cfg.SyncInterval(), c.events)

			app := ui.NewApp(
				loadSectionsCmd(ctx, builder, st, user),
				toggleFavoriteCmd(st, user),
				triggerSyncCmd(ctx, coordinator),
			).WithObservability(c.events, ring).WithClock(c.now)

			program := tea.NewProgram(app, tea.WithAltScreen())

			if len(sources) > 0 {
				coordinator.Start(ctx, program)
			}

			_, runErr := program.Run()

			cancel()
			coordinator.Wait()
			return runErr
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "local", "User whose favorites are shown")
	return cmd
}

func loadSectionsCmd(ctx context.Context, b *home.Builder, st *store.Store, user string) func() tea.Cmd {
	return func() tea.Cmd {
		return func() tea.Msg {
			sections, err := b.Build(ctx)
			if err != nil {
				return ui.SectionsLoaded{Err: err}
			}
			favorites, err := st.Favorites(user)
			if err != nil {
				return ui.SectionsLoaded{Err: err}
			}
			return ui.SectionsLoaded{Sections: sections, Favorites: favorites}
		}
	}
}

func toggleFavoriteCmd(st *store.Store, user string) func(string) tea.Cmd {
	return func(listingID string) tea.Cmd {
		return func() tea.Msg {
			favorite, err := st.ToggleFavorite(user, listingID)
			return ui.FavoriteToggled{ListingID: listingID, Favorite: favorite, Err: err}
		}
	}
}

// triggerSyncCmd pulls every source now. With no sources configured it
// reports errNoBackend.
func triggerSyncCmd(ctx context.Context, coordinator *coord.Coordinator) func() tea.Cmd {
	return func() tea.Cmd {
		return func() tea.Msg {
			results := coordinator.SyncOnce(ctx)
			if len(results) == 0 {
				return ui.SyncComplete{Source: "backend", Err: errNoBackend}
			}
			return coord.Summarize(results)
		}
	}
}
