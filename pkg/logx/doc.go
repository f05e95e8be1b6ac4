// Package logx wraps zerolog behind a small, swap-safe logging facade.
//
// The Service owns the sinks (console and/or JSON file) and can rebuild
// them at runtime via Apply() without invalidating Loggers already handed
// out. The zero Logger value is a no-op, so optional components can log
// unconditionally.
package logx
