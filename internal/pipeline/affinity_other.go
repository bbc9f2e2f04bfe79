//go:build !linux

package pipeline

func pinThread(int) error { return nil }

func setThreadPriority(int) error { return nil }
