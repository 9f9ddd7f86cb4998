//go:build windows

package runnersvc

import "os"

var syscallTerm = os.Kill
