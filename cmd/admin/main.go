package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"anonchat/backend/internal/api/handler"
	"anonchat/backend/internal/config"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/storage"

	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

// app carries what every subcommand needs once the configuration is loaded.
type app struct {
	configPath string
	cfg        *config.Config
}

func (a *app) load() error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// openStore connects the configured backends. release closes them.
func (a *app) openStore(ctx context.Context) (store *storage.Service, release func(), err error) {
	if err := a.load(); err != nil {
		return nil, nil, err
	}
	db, err := storage.OpenDatabase(a.cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	rdb, err := storage.NewRedisClient(ctx, a.cfg.Redis)
	if err != nil {
		storage.CloseDatabase(db)
		return nil, nil, err
	}
	release = func() {
		storage.CloseDatabase(db)
		if rdb != nil {
			rdb.Close()
		}
	}
	return storage.NewStorageService(db, rdb, a.cfg.Redis), release, nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "anonchat-admin",
		Short:         "Operator tools for the anonymous chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "conf", os.Getenv("ANONCHAT_CONFIG"), "path to the YAML configuration file")
	root.AddCommand(a.tokenCmd(), a.roomsCmd(), a.historyCmd(), a.statsCmd(), a.watchCmd())
	return root
}

func (a *app) tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator token for the /admin endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = a.cfg.Admin.TokenTTL
			}
			token, err := handler.GenerateAdminToken(a.cfg.Admin.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to admin.token_ttl)")
	return cmd
}

func (a *app) roomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List rooms recorded as active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			rooms, err := store.GetActiveRooms(cmd.Context())
			if err != nil {
				return err
			}
			printRooms(cmd.OutOrStdout(), rooms)
			return nil
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <roomId>",
		Short: "Print the stored messages of a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			room, err := store.GetRoomByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			messages, err := store.GetChatHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), room, messages)
			return nil
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print presence counters mirrored to Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			if store.Redis == nil {
				return errors.New("redis is not enabled in the configuration")
			}

			online, err := store.CountOnline(cmd.Context())
			if err != nil {
				return err
			}
			searching, err := store.GetSearchingUsers(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "online:    %d\nsearching: %d\n", online, len(searching))
			return nil
		},
	}
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream room events published by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			store, closeStore, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			sub := store.SubscribeEvents(ctx)
			if sub == nil {
				return errors.New("redis is not enabled in the configuration")
			}
			defer sub.Close()
			if _, err := sub.Receive(ctx); err != nil {
				return fmt.Errorf("subscribe: %w", err)
			}

			out := cmd.OutOrStdout()
			ch := sub.Channel()
			for {
				select {
				case <-ctx.Done():
					return nil
				case msg, ok := <-ch:
					if !ok {
						return nil
					}
					var ev storage.RoomEvent
					if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
						fmt.Fprintf(out, "unreadable event: %s\n", msg.Payload)
						continue
					}
					printEvent(out, ev)
				}
			}
		},
	}
}

func printRooms(w io.Writer, rooms []models.ChatRoom) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROOM\tUSER 1\tUSER 2\tSYNTHETIC\tSTARTED")
	for _, r := range rooms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", r.RoomID, r.User1ID, r.User2ID, r.IsSynthetic, r.StartedAt.Format(timeLayout))
	}
	tw.Flush()
}

func printHistory(w io.Writer, room *models.ChatRoom, messages []models.ChatHistory) {
	status := "active"
	if !room.IsActive {
		status = "closed"
	}
	fmt.Fprintf(w, "%s (%s, %d messages)\n", room.RoomID, status, len(messages))
	for _, m := range messages {
		line := m.Body
		if m.MediaURL != "" {
			line = fmt.Sprintf("%s [%s %s]", line, m.MediaKind, m.MediaURL)
		}
		fmt.Fprintf(w, "%s #%d %s: %s\n", m.SentAt.Format(timeLayout), m.Seq, m.DisplayName, line)
	}
}

func printEvent(w io.Writer, ev storage.RoomEvent) {
	fmt.Fprintf(w, "%s %-12s %s", ev.At.Format(timeLayout), ev.Type, ev.RoomID)
	if ev.MessageID != "" {
		fmt.Fprintf(w, " message=%s", ev.MessageID)
	}
	if ev.SessionID != "" {
		fmt.Fprintf(w, " session=%s", ev.SessionID)
	}
	fmt.Fprintln(w)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
