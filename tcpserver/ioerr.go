// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tcpserver

import (
	"errors"
	"net"
	"time"
)

// immediateDeadline returns a deadline one millisecond ahead, emulating
// non-blocking I/O on top of net.Conn (no raw syscall/epoll dependency): an
// Accept/Read/Write that is ready completes at once, and one with nothing
// ready returns a timeout after at most about a millisecond. An
// already-past deadline cannot be used, since Go then fails the call with a
// timeout before trying the socket at all.
func immediateDeadline() time.Time { return time.Now().Add(time.Millisecond) }

// isTimeout reports whether err is the deadline-exceeded error produced by
// immediateDeadline(), meaning "would block", not a real failure.
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// classifyIOErr turns a timeout into nil (the caller already recorded
// whatever partial progress was made) and passes any other error through
// unchanged, so the caller can tell "try again later" apart from
// "this connection is dead."
func classifyIOErr(err error) error {
	if isTimeout(err) {
		return nil
	}
	return err
}
