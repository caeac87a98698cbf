package download

import "github.com/vertextoedge/stockfill/internal/port"

type nopNotifier struct{}

func (nopNotifier) Alert(port.Level, string)  {}
func (nopNotifier) Status(port.Level, string) {}
func (nopNotifier) Progress(string)           {}
func (nopNotifier) Done()                     {}
