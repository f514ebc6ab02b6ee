// Package logger builds the service's *slog.Logger.
//
// New picks a JSON or text handler, attaches static attributes, and wraps the
// result with LogHandlerDecorator so request-scoped values (request id,
// authenticated user) are pulled from context.Context on every record.
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "kfchess-user"),
//	    logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	logger.SetAsDefault(log)
//
//	log.ErrorContext(ctx, "login callback failed",
//	    logger.FailureKind("missing_email"),
//	    logger.Error(err),
//	)
//
// Attribute helpers in attr.go keep key names consistent across packages.
// Helpers taking an error or an id return an empty slog.Attr for nil input, so
// call sites need no nil checks.
package logger
