package log

import "log/slog"

func Pipeline(name string) slog.Attr {
	return slog.String("pipeline", name)
}

func Snapshot(name string) slog.Attr {
	return slog.String("snapshot", name)
}

func StepID[T ~int64](id T) slog.Attr {
	return slog.Int64("step_id", int64(id))
}

func Command(cmd string) slog.Attr {
	return slog.String("command", cmd)
}

func ExitCode(code int) slog.Attr {
	return slog.Int("exit_code", code)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
