package coordinator

import "github.com/hashicorp/go-hclog"

// LogNotifier writes user-facing messages to a logger. Hosts without a message UI use it.
type LogNotifier struct {
	Logger hclog.Logger
}

func (n LogNotifier) Info(msg string)  { n.Logger.Info(msg) }
func (n LogNotifier) Warn(msg string)  { n.Logger.Warn(msg) }
func (n LogNotifier) Error(msg string) { n.Logger.Error(msg) }
