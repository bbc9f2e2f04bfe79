//go:build linux

package pipeline

import (
	"golang.org/x/sys/unix"
)

// pinThread restricts the calling OS thread to cpu.
func pinThread(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}

// setThreadPriority maps priority onto the nice value of the calling thread,
// two nice steps per level. Raising priority needs CAP_SYS_NICE.
func setThreadPriority(priority int) error {
	if priority == 0 {
		return nil
	}
	return unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), -2*priority)
}
