package peer

import (
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 5 * time.Second

type Config struct {
	TrackerAddr string
	// Timeout bounds each request when ctx has no deadline.
	Timeout time.Duration
	Logger  *logrus.Logger
}
