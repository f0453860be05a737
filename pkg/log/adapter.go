// Package log bridges third-party loggers onto logrus.
package log

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// BadgerLogrusAdapter satisfies badger.Logger. Badger's own info chatter
// (compactions, value log replay) is demoted to debug so a statification run
// log only carries store problems at info and above.
type BadgerLogrusAdapter struct {
	entry *logrus.Entry
}

func NewBadgerLogrusAdapter(entry *logrus.Entry) *BadgerLogrusAdapter {
	return &BadgerLogrusAdapter{entry: entry.WithField("subsystem", "badger")}
}

func (l *BadgerLogrusAdapter) Errorf(f string, v ...interface{}) {
	l.entry.Error(clean(f, v))
}

func (l *BadgerLogrusAdapter) Warningf(f string, v ...interface{}) {
	l.entry.Warn(clean(f, v))
}

func (l *BadgerLogrusAdapter) Infof(f string, v ...interface{}) {
	l.entry.Debug(clean(f, v))
}

func (l *BadgerLogrusAdapter) Debugf(f string, v ...interface{}) {
	l.entry.Trace(clean(f, v))
}

// badger terminates most messages with a newline
func clean(f string, v []interface{}) string {
	return strings.TrimRight(fmt.Sprintf(f, v...), "\n")
}
