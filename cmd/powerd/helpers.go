package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/powerd/pkg/version"
)

func parseIntArg(args []string, valueName string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("invalid number of arguments")
	}

	value, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", valueName, err)
	}

	return value, nil
}

func getVersion() (clientVersion, daemonVersion string, err error) {
	daemonVersion, err = apiClient.GetVersion()
	return version.Version, daemonVersion, err
}

func newEnableDisableCommand(
	use, short, long string,
	setFunc func(bool) (string, error),
) *cobra.Command {
	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Long:    long,
		GroupID: gAdvanced,
	}

	for _, enable := range []bool{true, false} {
		enable := enable
		verb, title := "enable", "Enable "
		if !enable {
			verb, title = "disable", "Disable "
		}
		cmd.AddCommand(&cobra.Command{
			Use:   verb,
			Short: title + short,
			RunE: func(_ *cobra.Command, _ []string) error {
				ret, err := setFunc(enable)
				if err != nil {
					return fmt.Errorf("failed to %s %s: %v", verb, use, err)
				}
				if ret != "" {
					logrus.Infof("daemon responded: %s", ret)
				}
				logrus.Infof("successfully %sd %s", verb, use)
				return nil
			},
		})
	}

	return cmd
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

// formatSeconds renders a duration in seconds, or "unknown" for 0.
func formatSeconds(secs int64) string {
	if secs <= 0 {
		return "unknown"
	}
	h, m := secs/3600, (secs%3600)/60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
