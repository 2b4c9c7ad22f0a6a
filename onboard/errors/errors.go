package errors

import "fmt"

// BadCommandError reports a command line from a remote source that could not
// be understood. The connection stays up; the command is simply dropped.
type BadCommandError struct {
	Raw string
}

func (err BadCommandError) Error() string {
	if len(err.Raw) == 0 {
		err.Raw = "<empty>"
	}
	return fmt.Sprintf("bad command %q", err.Raw)
}

// UnknownBehaviorError reports a request for a scripted behavior that does
// not exist.
type UnknownBehaviorError struct {
	Name string
}

func (err UnknownBehaviorError) Error() string {
	return fmt.Sprintf("no such behavior %s", err.Name)
}
