package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/charlie0129/powerd/pkg/client"
	"github.com/charlie0129/powerd/pkg/config"
)

var (
	logLevel       = "info"
	logFile        = ""
	unixSocketPath = defaultSocketPath()
	configPath     = config.DefaultPath()
)

var apiClient *client.Client

var (
	gBasic        = "Basic:"
	gPower        = "Power:"
	gAdvanced     = "Advanced:"
	gInstallation = "Installation:"
	commandGroups = []string{
		gBasic,
		gPower,
		gAdvanced,
		gInstallation,
	}
)

// defaultSocketPath puts the socket in the user's runtime directory.
func defaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "powerd.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("powerd-%d.sock", os.Getuid()))
}

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	if logFile != "" {
		logrus.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
		}))
	}

	return nil
}

func handleCmdError(err error) {
	if errors.Is(err, client.ErrDaemonNotRunning) {
		fmt.Fprintln(os.Stderr, "\nError: powerd daemon is not running")
		fmt.Fprintln(os.Stderr, "Is the daemon running? Have you installed it with 'powerd install'?")
	} else if errors.Is(err, client.ErrPermissionDenied) {
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - The daemon socket belongs to another user")
		fmt.Fprintln(os.Stderr, "  - Or reinstall the daemon with the '--allow-non-root-access' flag")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "powerd",
		Short: "powerd manages power on Linux desktops",
		Long: `powerd manages power on Linux desktops.

It watches batteries, the lid and user activity through UPower, logind,
ConsoleKit and X11, suspends or locks according to your policy and serves
the ScreenSaver and PowerManagement inhibit interfaces.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			err := setupLogger()
			if err != nil {
				return err
			}

			apiClient = client.NewClient(unixSocketPath)

			if cmd.Name() == "daemon" || cmd.GroupID == gInstallation {
				return nil
			}

			if clientVersion, daemonVersion, err := getVersion(); err == nil {
				if daemonVersion != clientVersion {
					logrus.WithFields(logrus.Fields{
						"clientVersion": clientVersion,
						"daemonVersion": daemonVersion,
					}).Warn("Version mismatch between client and daemon. Restart the daemon after upgrading.")
				}
			} else if errors.Is(err, client.ErrNotFound) {
				logrus.Error("powerd daemon is too old to report its version. Restart the daemon after upgrading.")
			}

			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&logFile, "log-file", "", "also write logs to this file, rotated at 10MB")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")
	globalFlags.StringVar(&unixSocketPath, "daemon-socket", unixSocketPath, "powerd daemon unix socket path")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewStatusCommand(),
		NewDevicesCommand(),
		NewInhibitorsCommand(),
		NewHostCommand(),
		NewWatchCommand(),
		NewReloadCommand(),
		NewIdleCommand(),
		NewCriticalCommand(),
		NewLockOnSleepCommand(),
		NewLidExternalMonitorCommand(),
		NewInstallCommand(),
		NewUninstallCommand(),
	)
	cmd.AddCommand(NewActionCommands()...)

	return cmd
}
