package web

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "web")
