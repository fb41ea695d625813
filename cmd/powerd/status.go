package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/charlie0129/powerd/pkg/config"
	"github.com/charlie0129/powerd/pkg/powerinfo"
)

type statusData struct {
	status *powerinfo.Status
	config *config.RawFileConfig
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	st, err := apiClient.GetStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	return &statusData{status: st, config: conf}, nil
}

// statusJSON is the machine-readable form of the status command.
type statusJSON struct {
	Status        *powerinfo.Status     `json:"status"`
	Configuration *config.RawFileConfig `json:"configuration"`
}

func NewStatusCommand() *cobra.Command {
	asJSON := false

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current power status",
		Long:    `Get power source, battery, lid, capabilities, inhibitors and policy configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			if asJSON {
				b, err := json.MarshalIndent(statusJSON{Status: data.status, Configuration: data.config}, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(b))
				return nil
			}

			printStatus(cmd, data)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print status as JSON")

	return cmd
}

func printStatus(cmd *cobra.Command, data *statusData) {
	st := data.status
	conf := config.NewFileFromConfig(data.config, "")

	// Power source.
	cmd.Println(bold("Power:"))
	if st.OnBattery {
		cmd.Printf("  Source: %s\n", color.New(color.Bold, color.FgYellow).Sprint("battery"))
	} else {
		cmd.Printf("  Source: %s\n", color.New(color.Bold, color.FgGreen).Sprint("AC"))
	}
	cmd.Printf("  Docked: %s\n", bool2Text(st.Docked))
	cmd.Printf("  External monitor: %s\n", bool2Text(st.ExternalMonitor))
	if st.LidPresent {
		lid := "open"
		if st.LidClosed {
			lid = "closed"
		}
		cmd.Printf("  Lid: %s\n", bold("%s", lid))
	}

	cmd.Println()

	// Battery.
	cmd.Println(bold("Battery:"))
	if !st.Battery.Present {
		cmd.Println("  No battery found")
	} else {
		left := st.Battery.Left
		charge := bold("%.0f%%", left)
		switch {
		case left <= float64(conf.CriticalBattery()):
			charge = color.New(color.Bold, color.FgRed).Sprintf("%.0f%%", left)
		case left >= 80:
			charge = color.New(color.Bold, color.FgGreen).Sprintf("%.0f%%", left)
		}
		cmd.Printf("  Charge: %s\n", charge)

		state := "not charging"
		switch {
		case st.Battery.Charging:
			state = color.GreenString("charging")
		case st.OnBattery:
			state = color.RedString("discharging")
		}
		cmd.Printf("  State: %s\n", bold("%s", state))
		if st.OnBattery {
			cmd.Printf("  Time to empty: %s\n", bold("%s", formatSeconds(st.Battery.TimeToEmpty)))
		} else if st.Battery.Charging {
			cmd.Printf("  Time to full: %s\n", bold("%s", formatSeconds(st.Battery.TimeToFull)))
		}
	}

	cmd.Println()

	// Capabilities.
	cmd.Println(bold("Capabilities:"))
	cmd.Printf("  Suspend: %s  Hibernate: %s  Hybrid sleep: %s  Restart: %s  Power off: %s\n",
		bool2Text(st.Capabilities.Suspend),
		bool2Text(st.Capabilities.Hibernate),
		bool2Text(st.Capabilities.HybridSleep),
		bool2Text(st.Capabilities.Restart),
		bool2Text(st.Capabilities.PowerOff),
	)

	cmd.Println()

	// Inhibitors.
	cmd.Println(bold("Inhibitors:"))
	cmd.Printf("  Screensaver: %s\n", listOrNone(st.ScreenSaverInhibitors))
	cmd.Printf("  Power management: %s\n", listOrNone(st.PowerManagementInhibitors))
	cmd.Printf("  Idle ticks: %s\n", bold("%d", st.IdleTicks))

	cmd.Println()

	// Config.
	cmd.Println(bold("Policy:"))
	cmd.Printf("  Idle on battery: %s\n", bold("%s", idleText(conf.SuspendBatteryTimeout(), conf.SuspendBatteryAction())))
	cmd.Printf("  Idle on AC: %s\n", bold("%s", idleText(conf.SuspendACTimeout(), conf.SuspendACAction())))
	cmd.Printf("  Lid closed on battery: %s\n", bold("%s", conf.LidBatteryAction()))
	cmd.Printf("  Lid closed on AC: %s\n", bold("%s", conf.LidACAction()))
	cmd.Printf("  Critical battery: %s\n", bold("%s at %d%%", conf.CriticalAction(), conf.CriticalBattery()))
	cmd.Printf("  Ignore lid with external monitors: %s\n", bool2Text(conf.DisableLidOnExternalMonitors()))
	cmd.Printf("  Lock screen before sleep: %s\n", bool2Text(conf.LockOnSleep()))
	cmd.Printf("  Allow non-root users to access the daemon: %s\n", bool2Text(conf.AllowNonRootAccess()))
}

func idleText(timeout int, action string) string {
	if timeout <= 0 || action == "none" {
		return "disabled"
	}
	return fmt.Sprintf("%s after %d minutes", action, timeout)
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return bold("%s", strings.Join(items, ", "))
}
