package logger

import "log/slog"

// Error records a single error under "error". Nil yields an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under "user_id". Nil yields an empty Attr.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Provider(name string) slog.Attr {
	return slog.String("provider", name)
}

// FailureKind records the classified reason of a swallowed failure.
func FailureKind(kind string) slog.Attr {
	return slog.String("failure_kind", kind)
}

func Email(email string) slog.Attr {
	return slog.String("email", email)
}

func Username(name string) slog.Attr {
	return slog.String("username", name)
}

func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

func Size(n int) slog.Attr {
	return slog.Int("size", n)
}

func Key(key string) slog.Attr {
	return slog.String("key", key)
}
