//go:build !unix

package udp

import "syscall"

func setSocketOptions(_, _ string, _ syscall.RawConn) error { return nil }
