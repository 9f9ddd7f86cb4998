//go:build !windows

package runnersvc

import "syscall"

var syscallTerm = syscall.SIGTERM
