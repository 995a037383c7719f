// Package middleware provides composable interceptors around job
// execution.
//
// A Middleware wraps a Handler and can run code before and after the job
// handler, short-circuit execution, or decorate the context. Middleware
// are composed with Chain and applied by the worker executor so every
// job passes through the full stack regardless of which queue it came
// from.
//
// Built-in middleware:
//
//   - Recover: converts handler panics into retryable errors
//   - Logging: structured start/finish log lines via slog
//   - Timeout: enforces the job's configured execution deadline
//   - Metrics: OpenTelemetry duration histogram and execution counter
//   - Tracing: OpenTelemetry span per execution
//
// Example:
//
//	stack := middleware.Chain(
//		middleware.Recover(logger),
//		middleware.Logging(logger),
//		middleware.Timeout(logger),
//	)
package middleware
