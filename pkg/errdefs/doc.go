// Package errdefs defines the classified error kinds of the hosting
// service. Kinds are stable for programmatic dispatch by the front end;
// messages are safe to render and never leak internal paths.
package errdefs
