package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/powerd/pkg/events"
	"github.com/charlie0129/powerd/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

type action struct {
	use   string
	short string
	run   func() (string, error)
}

// NewActionCommands returns one command per power action.
func NewActionCommands() []*cobra.Command {
	actions := []action{
		{"suspend", "Suspend to RAM", func() (string, error) { return apiClient.Suspend() }},
		{"hibernate", "Hibernate to disk", func() (string, error) { return apiClient.Hibernate() }},
		{"hybrid-sleep", "Suspend to RAM and disk", func() (string, error) { return apiClient.HybridSleep() }},
		{"restart", "Restart the machine", func() (string, error) { return apiClient.Restart() }},
		{"poweroff", "Power off the machine", func() (string, error) { return apiClient.PowerOff() }},
		{"lock", "Lock the screen", func() (string, error) { return apiClient.LockScreen() }},
	}

	var cmds []*cobra.Command
	for _, a := range actions {
		a := a
		cmds = append(cmds, &cobra.Command{
			Use:     a.use,
			Short:   a.short,
			GroupID: gPower,
			Args:    cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				ret, err := a.run()
				if err != nil {
					return fmt.Errorf("failed to %s: %v", a.use, err)
				}
				logrus.Debugf("daemon responded: %s", ret)
				logrus.Infof("%s requested", a.use)
				return nil
			},
		})
	}
	return cmds
}

func NewReloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "reload",
		Short:   "Reload the daemon configuration",
		GroupID: gBasic,
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if _, err := apiClient.ReloadConfig(); err != nil {
				return fmt.Errorf("failed to reload config: %v", err)
			}
			logrus.Info("config reload requested")
			return nil
		},
	}
}

func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		Short:   "Print daemon events as they happen",
		GroupID: gBasic,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return apiClient.Watch(ctx, func(ev events.Event) {
				cmd.Printf("%s %s\n", time.Now().Format(time.TimeOnly), formatEvent(ev))
			})
		},
	}
}

// formatEvent renders one event for the watch command.
func formatEvent(ev events.Event) string {
	if ev.Name == string(events.ActionDispatched) {
		a, err := events.DecodeAs[events.ActionEvent](ev)
		if err == nil {
			outcome := "ok"
			if a.Outcome != "" {
				outcome = a.Outcome
			}
			return fmt.Sprintf("%s %s by %s: %s", bold("%s", ev.Name), a.Action, a.Source, outcome)
		}
	}
	data := string(ev.Data)
	if data == "" || data == "{}" || data == "null" {
		return bold("%s", ev.Name)
	}
	return fmt.Sprintf("%s %s", bold("%s", ev.Name), data)
}
