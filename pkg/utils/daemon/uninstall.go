package daemon

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

func Uninstall() error {
	logrus.Infof("stopping powerd")

	if err := systemctl("disable", "--now", unitName); err != nil {
		logrus.Warnf("failed to stop the unit: %v", err)
	}

	logrus.Infof("removing systemd user unit")

	unitPath, err := UnitPath()
	if err != nil {
		return err
	}

	// if the file doesn't exist, we don't need to remove it
	_, err = os.Stat(unitPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", unitPath, err)
	}

	err = os.Remove(unitPath)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", unitPath, err)
	}

	return systemctl("daemon-reload")
}
