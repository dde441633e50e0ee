package feed

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "feed")
