// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tcpclient

import (
	"errors"
	"net"
	"time"
)

// immediateDeadline returns a deadline one millisecond ahead, so the next
// Read returns buffered data at once or a timeout after at most about a
// millisecond — the same non-blocking-over-net.Conn emulation tcpserver
// uses. An already-past deadline would fail the Read before it touches the
// socket.
func immediateDeadline() time.Time { return time.Now().Add(time.Millisecond) }

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
