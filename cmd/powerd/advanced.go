package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/powerd/pkg/power"
)

func NewDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "devices",
		GroupID: gBasic,
		Short:   "List power devices known to the daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			devs, err := apiClient.GetDevices()
			if err != nil {
				return fmt.Errorf("failed to get devices: %v", err)
			}
			if len(devs) == 0 {
				cmd.Println("No devices found")
				return nil
			}
			for _, d := range devs {
				kind := "line power"
				if d.IsBattery {
					kind = "battery"
				}
				cmd.Printf("%s\n", bold("%s", d.Path))
				cmd.Printf("  Kind: %s  Present: %s\n", kind, bool2Text(d.IsPresent))
				if d.NativePath != "" {
					cmd.Printf("  Native path: %s\n", d.NativePath)
				}
				if d.IsBattery {
					cmd.Printf("  Charge: %s\n", bold("%.0f%%", d.Percentage))
					cmd.Printf("  Time to empty: %s  Time to full: %s\n", formatSeconds(d.TimeToEmpty), formatSeconds(d.TimeToFull))
				}
			}
			return nil
		},
	}
}

func NewHostCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "host",
		GroupID: gBasic,
		Short:   "Show host information reported by the daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := apiClient.GetHost()
			if err != nil {
				return fmt.Errorf("failed to get host info: %v", err)
			}
			cmd.Printf("Hostname: %s\n", bold("%s", h.Hostname))
			cmd.Printf("OS: %s %s (%s)\n", h.Platform, h.PlatformVersion, h.OS)
			cmd.Printf("Kernel: %s\n", h.KernelVersion)
			cmd.Printf("Uptime: %s\n", (time.Duration(h.Uptime) * time.Second).String())
			cmd.Printf("CPU: %s  Memory: %s\n", bold("%.1f%%", h.CPUUsage), bold("%.1f%%", h.MemoryUsage))
			return nil
		},
	}
}

func NewInhibitorsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "inhibitors",
		GroupID: gBasic,
		Short:   "List, add or remove screensaver and power management inhibitors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			inh, err := apiClient.GetInhibitors()
			if err != nil {
				return fmt.Errorf("failed to get inhibitors: %v", err)
			}
			cmd.Println(bold("Screensaver:"))
			if len(inh.ScreenSaver) == 0 {
				cmd.Println("  none")
			}
			for _, i := range inh.ScreenSaver {
				cmd.Printf("  %d %s %s\n", i.Cookie, bold("%s", i.Application), i.Reason)
			}
			cmd.Println(bold("Power management:"))
			if len(inh.PowerManagement) == 0 {
				cmd.Println("  none")
			}
			for _, i := range inh.PowerManagement {
				cmd.Printf("  %d %s %s\n", i.Cookie, bold("%s", i.Application), i.Reason)
			}
			return nil
		},
	}

	application := "powerd"
	add := &cobra.Command{
		Use:   "add <screensaver|pm> <cookie> [reason]",
		Short: "Hold an inhibitor with the given cookie",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(_ *cobra.Command, args []string) error {
			class, cookie, err := parseInhibitorArgs(args)
			if err != nil {
				return err
			}
			reason := ""
			if len(args) == 3 {
				reason = args[2]
			}
			if _, err := apiClient.AddInhibitor(class, cookie, application, reason); err != nil {
				return fmt.Errorf("failed to add inhibitor: %v", err)
			}
			logrus.Infof("added %s inhibitor %d", class, cookie)
			return nil
		},
	}
	add.Flags().StringVar(&application, "application", application, "application name recorded with the inhibitor")

	remove := &cobra.Command{
		Use:   "remove <screensaver|pm> <cookie>",
		Short: "Release an inhibitor",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			class, cookie, err := parseInhibitorArgs(args)
			if err != nil {
				return err
			}
			if _, err := apiClient.RemoveInhibitor(class, cookie); err != nil {
				return fmt.Errorf("failed to remove inhibitor: %v", err)
			}
			logrus.Infof("removed %s inhibitor %d", class, cookie)
			return nil
		},
	}

	cmd.AddCommand(add, remove)

	return cmd
}

func parseInhibitorArgs(args []string) (string, uint32, error) {
	class, err := power.ParseInhibitClass(args[0])
	if err != nil {
		return "", 0, err
	}
	cookie, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil || cookie == 0 {
		return "", 0, fmt.Errorf("invalid cookie %q", args[1])
	}
	return class.String(), uint32(cookie), nil
}

func NewIdleCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "idle <battery|ac> <minutes> <action>",
		GroupID: gAdvanced,
		Short:   "Set the idle policy for a power source",
		Long: `Set what happens after the session has been idle for the given number of minutes.

Valid actions are none, sleep, hibernate, shutdown and lock.
Setting minutes to 0 disables the idle action for that power source.

Example:
  powerd idle battery 15 sleep
  powerd idle ac 0 none`,
		Args: cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			source := strings.ToLower(args[0])
			if source != "battery" && source != "ac" {
				return fmt.Errorf("invalid power source %q, must be battery or ac", args[0])
			}
			minutes, err := parseIntArg(args[1:2], "minutes")
			if err != nil {
				return err
			}
			if minutes < 0 {
				return fmt.Errorf("minutes must not be negative")
			}
			if _, err := power.ParsePolicyAction(args[2]); err != nil {
				return err
			}
			if _, err := apiClient.SetIdlePolicy(source, minutes, args[2]); err != nil {
				return fmt.Errorf("failed to set idle policy: %v", err)
			}
			logrus.Infof("successfully set idle policy on %s to %s after %d minutes", source, args[2], minutes)
			return nil
		},
	}
}

func NewCriticalCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "critical <percent>",
		GroupID: gAdvanced,
		Short:   "Set the critical battery level",
		Long: `Set the battery level at which the critical action is taken while on battery.

Example:
  powerd critical 8`,
		RunE: func(_ *cobra.Command, args []string) error {
			level, err := parseIntArg(args, "percent")
			if err != nil {
				return err
			}
			if level < 0 || level > 100 {
				return fmt.Errorf("percent must be in range [0, 100]")
			}
			if _, err := apiClient.SetCriticalBattery(level); err != nil {
				return fmt.Errorf("failed to set critical battery: %v", err)
			}
			logrus.Infof("successfully set critical battery to %d%%", level)
			return nil
		},
	}
}

func NewLockOnSleepCommand() *cobra.Command {
	return newEnableDisableCommand(
		"lock-on-sleep",
		"locking the screen before sleep",
		"Lock the screen with the configured lock command before the system suspends.",
		func(b bool) (string, error) { return apiClient.SetLockOnSleep(b) },
	)
}

func NewLidExternalMonitorCommand() *cobra.Command {
	return newEnableDisableCommand(
		"lid-external-monitor",
		"ignoring the lid while an external monitor is connected",
		"Skip the lid action when the lid is closed and an external monitor is connected.",
		func(b bool) (string, error) { return apiClient.SetDisableLidOnExternalMonitors(b) },
	)
}
