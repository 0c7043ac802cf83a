package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	SubjectDispatch          = "hub.dispatch.v1"
	SubjectDispatchCompleted = "hub.dispatch.completed"
)

// BuildCompletedSubject builds a granular completion event subject from a
// route path, e.g. "/stocks/load" -> "hub.dispatch.completed.stocks.load".
func BuildCompletedSubject(path string) string {
	safe := strings.ReplaceAll(strings.Trim(path, "/"), "/", ".")
	return fmt.Sprintf("%s.%s", SubjectDispatchCompleted, safe)
}
